package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func s16le(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestControllerDeliversChunks(t *testing.T) {
	ctx := NewFakeContext(16000, 1)
	c := NewController(ctx, CaptureConfig{SampleRate: 16000, Channels: 1})

	var got []Chunk
	c.Subscribe(func(ch Chunk) { got = append(got, ch) })
	c.Start()
	defer c.Stop()

	ctx.Last().Emit(s16le([]int16{0, 16384, -16384, 0}))

	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
	if len(got[0].Samples) != 4 {
		t.Errorf("expected 4 samples, got %d", len(got[0].Samples))
	}
	if got[0].SampleRate != 16000 {
		t.Errorf("expected 16000 Hz, got %v", got[0].SampleRate)
	}
	if math.Abs(float64(got[0].Samples[1])-0.5) > 0.001 {
		t.Errorf("expected sample ~0.5, got %v", got[0].Samples[1])
	}
}

func TestControllerConvertsMismatchedFormat(t *testing.T) {
	// Fake hardware delivers stereo 32kHz; target is mono 16kHz.
	ctx := NewFakeContext(32000, 2)
	c := NewController(ctx, CaptureConfig{SampleRate: 16000, Channels: 1})

	var total int
	c.Subscribe(func(ch Chunk) {
		total += len(ch.Samples)
		if ch.SampleRate != 16000 {
			t.Errorf("expected resampled rate 16000, got %v", ch.SampleRate)
		}
	})
	c.Start()
	defer c.Stop()

	// 3200 stereo frames at 32kHz = 100ms -> ~1600 mono samples at 16kHz.
	frames := make([]int16, 3200*2)
	ctx.Last().Emit(s16le(frames))

	if total < 1500 || total > 1700 {
		t.Errorf("expected ~1600 resampled samples, got %d", total)
	}
}

func TestControllerOpenFailureIsEvent(t *testing.T) {
	ctx := NewFakeContext(16000, 1)
	ctx.FailOpen = true
	c := NewController(ctx, CaptureConfig{SampleRate: 16000, Channels: 1})

	var captureErr error
	c.OnError(func(err error) { captureErr = err })
	c.Start()

	if captureErr == nil {
		t.Fatal("expected error event on open failure")
	}
	if c.Running() {
		t.Error("controller must not be running after open failure")
	}
}

func TestControllerStartFailureIsEvent(t *testing.T) {
	ctx := NewFakeContext(16000, 1)
	ctx.FailStart = true
	c := NewController(ctx, CaptureConfig{SampleRate: 16000, Channels: 1})

	var captureErr error
	c.OnError(func(err error) { captureErr = err })
	c.Start()

	if captureErr == nil {
		t.Fatal("expected error event on stream init failure")
	}
	if !ctx.Last().Closed() {
		t.Error("device must be closed after start failure")
	}
}

func TestControllerStopIdempotent(t *testing.T) {
	ctx := NewFakeContext(16000, 1)
	c := NewController(ctx, CaptureConfig{SampleRate: 16000, Channels: 1})
	c.Subscribe(func(Chunk) {})
	c.Start()

	c.Stop()
	c.Stop() // must not panic or double-close

	if c.Running() {
		t.Error("expected stopped controller")
	}
}

func TestDeviceChangeQueuedNotAppliedMidCapture(t *testing.T) {
	ctx := NewFakeContext(16000, 1)
	ctx.SetDevices([]DeviceInfo{{ID: "a", Name: "mic-a"}, {ID: "b", Name: "mic-b"}})
	c := NewController(ctx, CaptureConfig{SampleRate: 16000, Channels: 1})
	c.Subscribe(func(Chunk) {})

	c.SetInputDevice(&DeviceInfo{ID: "a", Name: "mic-a"})
	c.Start()
	first := ctx.Last()
	if first.DeviceName() != "mic-a" {
		t.Fatalf("expected mic-a, got %s", first.DeviceName())
	}

	// Queued mid-capture: the live stream keeps running on mic-a.
	c.SetInputDevice(&DeviceInfo{ID: "b", Name: "mic-b"})
	if ctx.Opened() != 1 {
		t.Fatal("device change must not reopen a live stream")
	}
	if !first.Started() {
		t.Fatal("live stream must keep running across a queued change")
	}

	c.Stop()
	c.Start()
	if ctx.Last().DeviceName() != "mic-b" {
		t.Errorf("queued device must apply on next idle start, got %s", ctx.Last().DeviceName())
	}
	c.Stop()
}

func TestNoDeliveryAfterStop(t *testing.T) {
	ctx := NewFakeContext(16000, 1)
	c := NewController(ctx, CaptureConfig{SampleRate: 16000, Channels: 1})

	var count int
	c.Subscribe(func(Chunk) { count++ })
	c.Start()
	dev := ctx.Last()
	dev.Emit(s16le(make([]int16, 160)))
	c.Stop()
	dev.Emit(s16le(make([]int16, 160)))

	if count != 1 {
		t.Errorf("expected exactly 1 delivery, got %d", count)
	}
}
