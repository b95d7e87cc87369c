// Package doctor runs interactive diagnostics covering every permission the
// dictation pipeline needs: hotkey input, microphone capture, clipboard and
// keystroke output, and focus introspection.
package doctor

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"murmur/audio"
	"murmur/clipboard"
	"murmur/encoder"
	"murmur/focus"
	"murmur/hotkey"
)

// Run executes the checks and returns an exit code (0=all pass, 1=any fail).
func Run() int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("murmur doctor - interactive system diagnostics")
	fmt.Println("==============================================")

	allPass := true

	if !checkHotkey() {
		allPass = false
	}
	if allPass && !checkMicrophone() {
		allPass = false
	}
	if allPass && !checkClipboard() {
		allPass = false
	}
	checkFocus() // informational; fallback keeps working without it

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkHotkey() bool {
	fmt.Println()
	fmt.Println("[1/4] Hotkey detection")

	if msg, err := hotkey.Diagnose(); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	} else {
		fmt.Printf("  %s\n", msg)
	}

	fmt.Println("Press Ctrl+Shift+Space...")
	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		fmt.Printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
		fmt.Println("  PASS: hotkey detected")
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for hotkey")
		return false
	}
}

func checkMicrophone() bool {
	fmt.Println()
	fmt.Println("[2/4] Microphone capture")

	actx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer actx.Close()

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Press Enter and speak for 3 seconds...")
	reader.ReadString('\n')

	ctrl := audio.NewController(actx, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})

	var mu sync.Mutex
	var samples []float32
	var captureErr error
	ctrl.Subscribe(func(chunk audio.Chunk) {
		mu.Lock()
		samples = append(samples, chunk.Samples...)
		mu.Unlock()
	})
	ctrl.OnError(func(err error) {
		mu.Lock()
		captureErr = err
		mu.Unlock()
	})

	ctrl.Start()
	fmt.Print("  Recording")
	for i := 0; i < 6; i++ {
		time.Sleep(500 * time.Millisecond)
		fmt.Print(".")
	}
	ctrl.Stop()
	fmt.Println(" done")

	mu.Lock()
	defer mu.Unlock()
	if captureErr != nil {
		fmt.Printf("  FAIL: capture error: %v\n", captureErr)
		return false
	}
	if len(samples) == 0 {
		fmt.Println("  FAIL: no audio captured")
		return false
	}

	chunk := audio.Chunk{Samples: samples, SampleRate: encoder.SampleRate}
	rms := chunk.RMS()
	fmt.Printf("  Captured %.1fs, RMS level %.4f\n", chunk.Duration().Seconds(), rms)
	if rms < 0.001 {
		fmt.Println("  FAIL: audio level near zero (muted mic or wrong device?)")
		return false
	}

	if path := dumpFlac(samples); path != "" {
		fmt.Printf("  Wrote diagnostic recording to %s\n", path)
	}
	fmt.Println("  PASS: microphone captures audio")
	return true
}

// dumpFlac writes the captured audio losslessly so users can listen back
// when transcription quality is in question.
func dumpFlac(samples []float32) string {
	enc, err := encoder.NewFlac()
	if err != nil {
		return ""
	}
	if err := enc.Write(samples); err != nil {
		return ""
	}
	if err := enc.Close(); err != nil {
		return ""
	}
	path := filepath.Join(os.TempDir(), "murmur-doctor.flac")
	if err := os.WriteFile(path, enc.Bytes(), 0644); err != nil {
		return ""
	}
	return path
}

func checkClipboard() bool {
	fmt.Println()
	fmt.Println("[3/4] Clipboard and paste")

	clip := clipboard.NewSystem()
	sentinel := fmt.Sprintf("murmur-doctor-%d", time.Now().UnixNano())

	prev, _ := clip.Read()
	token, err := clip.Write(sentinel)
	if err != nil {
		fmt.Printf("  FAIL: clipboard write failed: %v\n", err)
		return false
	}
	got, err := clip.Read()
	if err != nil {
		fmt.Printf("  FAIL: clipboard read failed: %v\n", err)
		return false
	}
	if got != sentinel || !clip.Owns(token) {
		fmt.Printf("  FAIL: clipboard mismatch: wrote %q, got %q\n", sentinel, got)
		return false
	}
	if prev != "" {
		clip.Write(prev)
	} else {
		clip.Clear()
	}
	fmt.Println("  PASS: clipboard round-trip verified")

	fmt.Println("Focus a text editor window...")
	for i := 5; i > 0; i-- {
		fmt.Printf("  %d...\n", i)
		time.Sleep(1 * time.Second)
	}

	testStr := "murmur-doctor-test"
	if _, err := clip.Write(testStr); err != nil {
		fmt.Printf("  FAIL: clipboard write failed: %v\n", err)
		return false
	}
	keys := clipboard.NewKeystroker()
	if err := keys.Paste(); err != nil {
		fmt.Printf("  FAIL: paste keystroke failed: %v\n", err)
		fmt.Println("  Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
		return false
	}

	resetTerminal()
	confirmReader := bufio.NewReader(os.Stdin)
	fmt.Println()
	fmt.Printf("Did the text %q appear? [y/n]: ", testStr)
	confirm, _ := confirmReader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))

	if confirm != "y" && confirm != "yes" {
		fmt.Println("  FAIL: paste not confirmed")
		return false
	}
	fmt.Println("  PASS: paste verified by user")
	return true
}

func checkFocus() {
	fmt.Println()
	fmt.Println("[4/4] Focus introspection")

	intro := focus.NewIntrospector()
	if !intro.Available() {
		fmt.Println("  INFO: focus introspection unavailable; every paste will use the clipboard fallback")
		return
	}
	snap := intro.Capture()
	if snap == nil {
		fmt.Println("  WARN: introspection available but no focus snapshot captured")
		return
	}
	fmt.Printf("  PASS: focused process %d", snap.ProcessID)
	if snap.Element.Role != "" {
		fmt.Printf(", element %s", snap.Element.Role)
	}
	fmt.Println()
	if intro.SecureInput() {
		fmt.Println("  NOTE: secure input is currently active (a password field has focus?)")
	}
}
