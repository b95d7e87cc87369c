package session

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"murmur/audio"
	"murmur/clipboard"
	"murmur/config"
	"murmur/focus"
	"murmur/observe"
	"murmur/paste"
	"murmur/transcriber"
)

type testSink struct {
	mu          sync.Mutex
	phases      []Phase
	toasts      []string
	runs        []RunMetrics
	transcripts []string
}

func (s *testSink) PhaseChanged(p Phase) {
	s.mu.Lock()
	s.phases = append(s.phases, p)
	s.mu.Unlock()
}
func (s *testSink) AudioLevel(float64)     {}
func (s *testSink) WarmupProgress(float64) {}
func (s *testSink) Toast(msg string) {
	s.mu.Lock()
	s.toasts = append(s.toasts, msg)
	s.mu.Unlock()
}
func (s *testSink) Transcription(text string, _ bool) {
	s.mu.Lock()
	s.transcripts = append(s.transcripts, text)
	s.mu.Unlock()
}
func (s *testSink) LastTranscript(bool) {}
func (s *testSink) RunCompleted(m RunMetrics) {
	s.mu.Lock()
	s.runs = append(s.runs, m)
	s.mu.Unlock()
}

func (s *testSink) Runs() []RunMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RunMetrics(nil), s.runs...)
}

func (s *testSink) Toasts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.toasts...)
}

func (s *testSink) Transcripts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.transcripts...)
}

type fixture struct {
	actx  *audio.FakeContext
	eng   *transcriber.Fake
	clip  *clipboard.Fake
	keys  *clipboard.FakeKeys
	intro *focus.Fake
	sink  *testSink
	coord *Coordinator
}

func testPrefs() config.Preferences {
	return config.Preferences{
		RecordingMode:   config.ModeToggle,
		TrailingSilence: config.TrailingSilence{Mode: config.SilenceAuto, Seconds: 0.2},
	}
}

func newFixture(t *testing.T, prefs config.Preferences, intro *focus.Fake, eng *transcriber.Fake) *fixture {
	t.Helper()

	actx := audio.NewFakeContext(16000, 1)
	cap := audio.NewController(actx, audio.CaptureConfig{SampleRate: 16000, Channels: 1})
	clip := clipboard.NewFake()
	keys := &clipboard.FakeKeys{}
	paster := paste.NewController(clip, keys, intro)
	paster.RestoreDelay = time.Millisecond
	paster.SegmentDelay = 0
	sink := &testSink{}

	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}

	c := New(Deps{
		Capture: cap,
		Engine:  eng,
		Clip:    clip,
		Paster:  paster,
		Intro:   intro,
		Metrics: metrics,
		Sink:    sink,
		Prefs:   prefs,
	})
	c.ToastDuration = 20 * time.Millisecond
	c.BaselineDelays = []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}
	go c.Run()
	t.Cleanup(c.Close)

	return &fixture{actx: actx, eng: eng, clip: clip, keys: keys, intro: intro, sink: sink, coord: c}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

// feed emits seconds of constant-amplitude audio in 50ms chunks.
func (f *fixture) feed(t *testing.T, seconds float64, amplitude int16) {
	t.Helper()
	waitFor(t, func() bool {
		cap := f.actx.Last()
		return cap != nil && cap.Started()
	}, "capture never started")

	cap := f.actx.Last()
	const chunkSamples = 800 // 50ms at 16kHz
	chunks := int(seconds * 16000 / chunkSamples)
	data := make([]byte, chunkSamples*2)
	for i := 0; i < chunkSamples; i++ {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(amplitude))
	}
	for i := 0; i < chunks; i++ {
		cap.Emit(data)
	}
	// Let the loop drain before the caller issues the next command.
	waitFor(t, func() bool { return len(f.coord.msgs) == 0 }, "loop did not drain")
}

func TestSessionPastesTranscript(t *testing.T) {
	intro := &focus.Fake{Snapshots: []*focus.Snapshot{{ProcessID: 1}}}
	f := newFixture(t, testPrefs(), intro, &transcriber.Fake{Text: "hello world"})

	f.coord.Start()
	f.feed(t, 1.0, 3000)
	f.coord.Stop("manual")

	waitFor(t, func() bool { return len(f.sink.Runs()) == 1 }, "session never completed")
	run := f.sink.Runs()[0]
	if run.Result != ResultPasted {
		t.Errorf("result = %q, want pasted", run.Result)
	}
	if got := f.sink.Transcripts(); len(got) != 1 || got[0] != "hello world" {
		t.Errorf("transcripts = %v", got)
	}
	if got := f.keys.Log(); len(got) != 1 || got[0] != "paste" {
		t.Errorf("keystrokes = %v", got)
	}
	if f.eng.Transcribes() != 1 {
		t.Errorf("transcribes = %d", f.eng.Transcribes())
	}
	waitFor(t, func() bool { return f.coord.Phase() == PhaseIdle }, "never returned to idle")
}

func TestDoubleStopRunsOneTranscription(t *testing.T) {
	intro := &focus.Fake{Snapshots: []*focus.Snapshot{{ProcessID: 1}}}
	f := newFixture(t, testPrefs(), intro, &transcriber.Fake{Text: "once"})

	f.coord.Start()
	f.feed(t, 1.0, 3000)
	f.coord.Stop("manual")
	f.coord.Stop("manual")

	waitFor(t, func() bool { return len(f.sink.Runs()) == 1 }, "session never completed")
	time.Sleep(50 * time.Millisecond)
	if f.eng.Transcribes() != 1 {
		t.Errorf("transcribes = %d, want 1", f.eng.Transcribes())
	}
	if len(f.sink.Runs()) != 1 {
		t.Errorf("runs = %d, want 1", len(f.sink.Runs()))
	}
}

func TestTooShortUtteranceAborts(t *testing.T) {
	intro := &focus.Fake{Snapshots: []*focus.Snapshot{{ProcessID: 1}}}
	f := newFixture(t, testPrefs(), intro, &transcriber.Fake{Text: "never"})

	f.coord.Start()
	f.feed(t, 0.3, 3000)
	f.coord.Stop("manual")

	waitFor(t, func() bool { return len(f.sink.Runs()) == 1 }, "session never completed")
	if run := f.sink.Runs()[0]; run.Result != ResultTooShort {
		t.Errorf("result = %q, want too_short", run.Result)
	}
	if f.eng.Transcribes() != 0 {
		t.Errorf("engine invoked on too-short utterance")
	}
	toasts := f.sink.Toasts()
	if len(toasts) == 0 || toasts[0] != "Too short" {
		t.Errorf("toasts = %v", toasts)
	}
	waitFor(t, func() bool { return f.coord.Phase() == PhaseIdle }, "never returned to idle")
}

func TestCancelMidTranscriptionHasNoSideEffects(t *testing.T) {
	intro := &focus.Fake{Snapshots: []*focus.Snapshot{{ProcessID: 1}}}
	f := newFixture(t, testPrefs(), intro, &transcriber.Fake{Text: "dropped", Delay: 300 * time.Millisecond})

	f.coord.Start()
	f.feed(t, 1.0, 3000)
	f.coord.Stop("manual")
	waitFor(t, func() bool { return f.coord.Phase() == PhaseTranscribing }, "never reached transcribing")
	f.coord.Cancel()

	waitFor(t, func() bool { return f.coord.Phase() == PhaseIdle }, "cancel did not reach idle")
	time.Sleep(400 * time.Millisecond) // let the cancelled task finish

	if got := f.keys.Log(); len(got) != 0 {
		t.Errorf("keystrokes after cancel: %v", got)
	}
	if got := f.clip.Writes(); len(got) != 0 {
		t.Errorf("clipboard writes after cancel: %v", got)
	}
	if got := f.sink.Runs(); len(got) != 0 {
		t.Errorf("run metrics after cancel: %v", got)
	}
	if got := f.sink.Transcripts(); len(got) != 0 {
		t.Errorf("transcripts after cancel: %v", got)
	}
}

func TestAutoStopOnTrailingSilence(t *testing.T) {
	intro := &focus.Fake{Snapshots: []*focus.Snapshot{{ProcessID: 1}}}
	f := newFixture(t, testPrefs(), intro, &transcriber.Fake{Text: "auto"})

	f.coord.Start()
	f.feed(t, 0.5, 3000) // speech
	f.feed(t, 0.5, 0)    // silence past the 200ms trailing threshold

	waitFor(t, func() bool { return len(f.sink.Runs()) == 1 }, "auto-stop never fired")
	if run := f.sink.Runs()[0]; run.Result != ResultPasted {
		t.Errorf("result = %q, want pasted", run.Result)
	}
}

func TestHoldModeIgnoresVADStop(t *testing.T) {
	prefs := testPrefs()
	prefs.RecordingMode = config.ModeHold
	intro := &focus.Fake{Snapshots: []*focus.Snapshot{{ProcessID: 1}}}
	f := newFixture(t, prefs, intro, &transcriber.Fake{Text: "held"})

	f.coord.Start()
	f.feed(t, 0.5, 3000)
	f.feed(t, 0.5, 0)

	time.Sleep(50 * time.Millisecond)
	if f.eng.Transcribes() != 0 {
		t.Fatal("VAD end-of-speech stopped a hold-mode session")
	}

	f.coord.Stop("release")
	waitFor(t, func() bool { return len(f.sink.Runs()) == 1 }, "explicit stop never completed")
}

func TestMissingBaselineFallsBackToCopy(t *testing.T) {
	intro := &focus.Fake{Snapshots: []*focus.Snapshot{nil}} // introspection present, capture always fails
	f := newFixture(t, testPrefs(), intro, &transcriber.Fake{Text: "fallback text"})

	f.coord.Start()
	f.feed(t, 1.0, 3000)
	f.coord.Stop("manual")

	waitFor(t, func() bool { return len(f.sink.Runs()) == 1 }, "session never completed")
	if run := f.sink.Runs()[0]; run.Result != ResultCopiedFallback {
		t.Errorf("result = %q, want copied_fallback", run.Result)
	}
	if got := f.keys.Log(); len(got) != 0 {
		t.Errorf("keystrokes synthesized without a focus baseline: %v", got)
	}
	if f.clip.Content() != "fallback text" {
		t.Errorf("clipboard = %q", f.clip.Content())
	}
	if intro.CaptureLog < 4 {
		t.Errorf("capture attempts = %d, want initial try plus retries", intro.CaptureLog)
	}
}

func TestClipboardFailureRecordedAsSkipped(t *testing.T) {
	intro := &focus.Fake{Snapshots: []*focus.Snapshot{{ProcessID: 1}}, Secure: true}
	f := newFixture(t, testPrefs(), intro, &transcriber.Fake{Text: "lost words"})
	f.clip.FailAll = true

	f.coord.Start()
	f.feed(t, 1.0, 3000)
	f.coord.Stop("manual")

	waitFor(t, func() bool { return len(f.sink.Runs()) == 1 }, "session never completed")
	if run := f.sink.Runs()[0]; run.Result != ResultSkipped {
		t.Errorf("result = %q, want skipped", run.Result)
	}
	if got := f.keys.Log(); len(got) != 0 {
		t.Errorf("keystrokes synthesized with a dead clipboard: %v", got)
	}
	waitFor(t, func() bool {
		for _, toast := range f.sink.Toasts() {
			if toast == "Clipboard error" {
				return true
			}
		}
		return false
	}, "clipboard failure never surfaced")

	// The transcript stays cached so a later CopyLast can retry.
	f.clip.FailAll = false
	f.coord.CopyLast()
	waitFor(t, func() bool { return f.clip.Content() == "lost words" }, "copy-last retry failed")
}

func TestSecondSessionIsWarm(t *testing.T) {
	intro := &focus.Fake{Snapshots: []*focus.Snapshot{{ProcessID: 1}}}
	f := newFixture(t, testPrefs(), intro, &transcriber.Fake{Text: "again"})

	f.coord.Start()
	f.feed(t, 1.0, 3000)
	f.coord.Stop("manual")
	waitFor(t, func() bool { return len(f.sink.Runs()) == 1 }, "first session never completed")
	waitFor(t, func() bool { return f.coord.Phase() == PhaseIdle }, "never idle")

	f.coord.Start()
	f.feed(t, 1.0, 3000)
	f.coord.Stop("manual")
	waitFor(t, func() bool { return len(f.sink.Runs()) == 2 }, "second session never completed")

	if run := f.sink.Runs()[1]; !run.WarmStart {
		t.Error("second session should be a warm start")
	}
}

func TestTranscriptionFailureForcesColdRestart(t *testing.T) {
	intro := &focus.Fake{Snapshots: []*focus.Snapshot{{ProcessID: 1}}}
	f := newFixture(t, testPrefs(), intro, &transcriber.Fake{Err: context.DeadlineExceeded})

	f.coord.Start()
	f.feed(t, 1.0, 3000)
	f.coord.Stop("manual")

	waitFor(t, func() bool { return len(f.sink.Runs()) == 1 }, "session never completed")
	if run := f.sink.Runs()[0]; run.Result != ResultFailed {
		t.Errorf("result = %q, want failed", run.Result)
	}
	toasts := f.sink.Toasts()
	if len(toasts) == 0 || toasts[len(toasts)-1] != "Transcription failed" {
		t.Errorf("toasts = %v", toasts)
	}
	waitFor(t, func() bool { return f.coord.Phase() == PhaseIdle }, "never returned to idle")
}

func TestPasteLastAndCopyLast(t *testing.T) {
	intro := &focus.Fake{Snapshots: []*focus.Snapshot{{ProcessID: 1}}}
	f := newFixture(t, testPrefs(), intro, &transcriber.Fake{Text: "remember me"})

	// Nothing cached yet: both are no-ops.
	f.coord.PasteLast()
	f.coord.CopyLast()
	time.Sleep(20 * time.Millisecond)
	if len(f.keys.Log()) != 0 || len(f.clip.Writes()) != 0 {
		t.Fatal("paste/copy last acted without a cached transcript")
	}

	f.coord.Start()
	f.feed(t, 1.0, 3000)
	f.coord.Stop("manual")
	waitFor(t, func() bool { return len(f.sink.Runs()) == 1 }, "session never completed")
	pastes := len(f.keys.Log())

	f.coord.PasteLast()
	waitFor(t, func() bool { return len(f.keys.Log()) == pastes+1 }, "paste-last never pasted")

	f.clip.Clear()
	f.coord.CopyLast()
	waitFor(t, func() bool { return f.clip.Content() == "remember me" }, "copy-last never copied")
}

func TestCaptureOpenFailureReturnsIdle(t *testing.T) {
	intro := &focus.Fake{Snapshots: []*focus.Snapshot{{ProcessID: 1}}}
	f := newFixture(t, testPrefs(), intro, &transcriber.Fake{Text: "unused"})
	f.actx.FailOpen = true

	f.coord.Start()
	waitFor(t, func() bool {
		toasts := f.sink.Toasts()
		return len(toasts) > 0 && toasts[0] == "Microphone error"
	}, "capture failure never surfaced")
	waitFor(t, func() bool { return f.coord.Phase() == PhaseIdle }, "never returned to idle")
	if f.eng.Transcribes() != 0 {
		t.Error("engine invoked after capture failure")
	}
}

func TestPrefsChangeRebuildsDetector(t *testing.T) {
	intro := &focus.Fake{Snapshots: []*focus.Snapshot{{ProcessID: 1}}}
	f := newFixture(t, testPrefs(), intro, &transcriber.Fake{Text: "tuned"})

	prefs := testPrefs()
	prefs.TrailingSilence.Seconds = 0.05
	f.coord.SetPreferences(prefs)

	f.coord.Start()
	f.feed(t, 0.5, 3000)
	f.feed(t, 0.1, 0) // only 100ms of silence, above the new 50ms threshold

	waitFor(t, func() bool { return len(f.sink.Runs()) == 1 }, "auto-stop with rebuilt detector never fired")
}
