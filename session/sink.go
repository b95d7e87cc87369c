package session

// Sink abstracts the display layer so the status TUI and any future surface
// receive the same session events. Calls arrive on the coordinator
// goroutine; implementations must not block.
type Sink interface {
	PhaseChanged(phase Phase)
	AudioLevel(rms float64)
	WarmupProgress(p float64)
	Toast(msg string)
	Transcription(text string, copied bool)
	LastTranscript(available bool)
	RunCompleted(m RunMetrics)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) PhaseChanged(Phase)          {}
func (NopSink) AudioLevel(float64)          {}
func (NopSink) WarmupProgress(float64)      {}
func (NopSink) Toast(string)                {}
func (NopSink) Transcription(string, bool)  {}
func (NopSink) LastTranscript(bool)         {}
func (NopSink) RunCompleted(RunMetrics)     {}
