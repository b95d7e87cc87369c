// Package transcriber converts captured utterances to text. Engines share a
// small interface so the session layer can swap a local whisper.cpp model
// for a hosted API without caring which is behind it.
package transcriber

import (
	"context"
	"fmt"
	"os"
)

// Engine is one speech-to-text backend.
type Engine interface {
	Name() string

	// Prepare performs the engine's warm-up (model load, connection
	// establishment). It is idempotent and safe to call concurrently;
	// progress, when non-nil, receives values in [0, 1].
	Prepare(ctx context.Context, progress func(float64)) error

	// Transcribe runs inference over a complete utterance of mono float32
	// PCM. It honors ctx cancellation between pipeline stages.
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}

// New selects an engine by name. An empty name picks the local model when a
// path is configured, otherwise the hosted API.
func New(name, modelPath, language string) (Engine, error) {
	switch name {
	case "whisper", "":
		if modelPath != "" || name == "whisper" {
			return NewWhisper(modelPath, language), nil
		}
		fallthrough
	case "groq":
		key := os.Getenv("GROQ_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("GROQ_API_KEY not set and no local model configured")
		}
		return NewGroq(key, language), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", name)
	}
}
