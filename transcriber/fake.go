package transcriber

import (
	"context"
	"sync"
	"time"
)

// Fake is a scripted Engine for tests.
type Fake struct {
	Text       string
	Err        error
	PrepareErr error
	Delay      time.Duration // how long Transcribe blocks (interruptible)

	mu          sync.Mutex
	prepares    int
	transcribes int
	lastSamples []float32
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Prepare(ctx context.Context, progress func(float64)) error {
	f.mu.Lock()
	f.prepares++
	f.mu.Unlock()
	if progress != nil {
		progress(1)
	}
	return f.PrepareErr
}

func (f *Fake) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	f.mu.Lock()
	f.transcribes++
	f.lastSamples = samples
	f.mu.Unlock()
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.Text, f.Err
}

func (f *Fake) Prepares() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prepares
}

func (f *Fake) Transcribes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transcribes
}

func (f *Fake) LastSamples() []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSamples
}
