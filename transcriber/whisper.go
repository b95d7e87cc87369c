package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Whisper runs inference locally through the whisper.cpp CGO bindings. The
// model loads lazily on the first Prepare so startup stays instant; each
// Transcribe gets a fresh context because contexts are not thread-safe while
// the model itself is shareable.
type Whisper struct {
	modelPath string
	language  string

	mu    sync.Mutex
	model whisperlib.Model
}

func NewWhisper(modelPath, language string) *Whisper {
	if language == "" {
		language = "en"
	}
	return &Whisper{modelPath: modelPath, language: language}
}

func (w *Whisper) Name() string { return "whisper" }

func (w *Whisper) Prepare(ctx context.Context, progress func(float64)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.model != nil {
		if progress != nil {
			progress(1)
		}
		return nil
	}
	if w.modelPath == "" {
		return errors.New("whisper: no model path configured")
	}
	if progress != nil {
		progress(0)
	}
	model, err := whisperlib.New(w.modelPath)
	if err != nil {
		return fmt.Errorf("whisper: load model %q: %w", w.modelPath, err)
	}
	w.model = model
	if progress != nil {
		progress(1)
	}
	return nil
}

func (w *Whisper) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if sampleRate != whisperlib.SampleRate {
		return "", fmt.Errorf("whisper: expected %d Hz input, got %d", whisperlib.SampleRate, sampleRate)
	}
	if err := w.Prepare(ctx, nil); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	w.mu.Lock()
	model := w.model
	w.mu.Unlock()

	wctx, err := model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(w.language); err != nil {
		return "", fmt.Errorf("whisper: set language %q: %w", w.language, err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// Close releases the loaded model.
func (w *Whisper) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.model != nil {
		err := w.model.Close()
		w.model = nil
		return err
	}
	return nil
}
