// Package session owns the recording state machine: it wires capture to the
// voice-activity detector, decides when to stop, runs transcription, and
// hands the result to the paste path. All mutable session state lives on a
// single goroutine; everything else talks to it through messages.
package session

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"murmur/audio"
	"murmur/clipboard"
	"murmur/config"
	"murmur/encoder"
	"murmur/focus"
	"murmur/log"
	"murmur/normalize"
	"murmur/observe"
	"murmur/paste"
	"murmur/transcriber"
	"murmur/vad"
)

type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseInitializing
	PhaseListening
	PhaseTranscribing
	PhaseToast
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseInitializing:
		return "initializing"
	case PhaseListening:
		return "listening"
	case PhaseTranscribing:
		return "transcribing"
	case PhaseToast:
		return "toast"
	}
	return "unknown"
}

// Session results as recorded in metrics and RunMetrics.
const (
	ResultPasted         = "pasted"
	ResultCopiedFallback = "copied_fallback"
	ResultNoSpeech       = "no_speech"
	ResultTooShort       = "too_short"
	ResultFailed         = "failed"
	ResultSkipped        = "skipped"
)

// RunMetrics summarizes one completed session for the UI and logs.
type RunMetrics struct {
	Result       string
	WarmStart    bool
	AudioSeconds float64
	TranscribeMs float64
	LatencyMs    float64
}

// Deps carries the coordinator's collaborators.
type Deps struct {
	Capture *audio.Controller
	Engine  transcriber.Engine
	Clip    clipboard.Clipboard
	Paster  *paste.Controller
	Intro   focus.Introspector
	Metrics *observe.Metrics
	Sink    Sink
	Prefs   config.Preferences
}

// Coordinator is the session state machine. Construct with New, drive with
// Run, then issue commands from any goroutine.
type Coordinator struct {
	capture *audio.Controller
	engine  transcriber.Engine
	clip    clipboard.Clipboard
	paster  *paste.Controller
	intro   focus.Introspector
	metrics *observe.Metrics
	sink    Sink

	// Tunables, set before Run.
	MinUtterance   time.Duration
	ToastDuration  time.Duration
	BaselineDelays []time.Duration

	msgs chan any
	done chan struct{}

	phase atomic.Int32

	warmGroup singleflight.Group
	warmReady atomic.Bool

	// Loop-owned state. Never touched outside run().
	prefs          config.Preferences
	det            *vad.Detector
	buffer         []float32
	baseline       *focus.Snapshot
	gen            uint64
	cancelInflight context.CancelFunc
	stoppedAt      time.Time
	startWasWarm   bool
	audioSeconds   float64
	lastTranscript string
}

// Command and event messages consumed by the run loop.
type (
	cmdStart     struct{}
	cmdStop      struct{ reason string }
	cmdCancel    struct{}
	cmdPasteLast struct{}
	cmdCopyLast  struct{}
	cmdSetPrefs  struct{ prefs config.Preferences }

	evChunk    struct{ chunk audio.Chunk }
	evCapErr   struct{ err error }
	evBaseline struct {
		gen  uint64
		snap *focus.Snapshot
	}
	evWarmup struct{ err error }
	evDone   struct {
		gen  uint64
		text string
		err  error
		took time.Duration
	}
	evToastOver struct{ gen uint64 }
)

func New(d Deps) *Coordinator {
	c := &Coordinator{
		capture: d.Capture,
		engine:  d.Engine,
		clip:    d.Clip,
		paster:  d.Paster,
		intro:   d.Intro,
		metrics: d.Metrics,
		sink:    d.Sink,

		MinUtterance:   500 * time.Millisecond,
		ToastDuration:  2 * time.Second,
		BaselineDelays: []time.Duration{50 * time.Millisecond, 150 * time.Millisecond, 300 * time.Millisecond},

		msgs:  make(chan any, 128),
		done:  make(chan struct{}),
		prefs: d.Prefs,
	}
	if c.sink == nil {
		c.sink = NopSink{}
	}
	c.det = c.buildDetector(d.Prefs)

	c.capture.Subscribe(func(chunk audio.Chunk) { c.post(evChunk{chunk}) })
	c.capture.OnError(func(err error) { c.post(evCapErr{err}) })
	return c
}

func (c *Coordinator) buildDetector(p config.Preferences) *vad.Detector {
	cfg := vad.DefaultConfig()
	if p.TrailingSilence.Seconds > 0 {
		cfg.TrailingSilence = time.Duration(p.TrailingSilence.Seconds * float64(time.Second))
	}
	det, err := vad.New(cfg)
	if err != nil {
		det, _ = vad.New(vad.DefaultConfig())
	}
	return det
}

// Phase is safe to read from any goroutine.
func (c *Coordinator) Phase() Phase {
	return Phase(c.phase.Load())
}

func (c *Coordinator) setPhase(p Phase) {
	if Phase(c.phase.Swap(int32(p))) != p {
		c.sink.PhaseChanged(p)
	}
}

func (c *Coordinator) Start()             { c.post(cmdStart{}) }
func (c *Coordinator) Stop(reason string) { c.post(cmdStop{reason}) }
func (c *Coordinator) Cancel()            { c.post(cmdCancel{}) }
func (c *Coordinator) PasteLast()         { c.post(cmdPasteLast{}) }
func (c *Coordinator) CopyLast()          { c.post(cmdCopyLast{}) }

// SetPreferences applies a live preferences change.
func (c *Coordinator) SetPreferences(p config.Preferences) { c.post(cmdSetPrefs{p}) }

func (c *Coordinator) post(msg any) {
	select {
	case c.msgs <- msg:
	case <-c.done:
	}
}

// Close stops the run loop. Any live capture is torn down.
func (c *Coordinator) Close() {
	close(c.done)
}

// Run processes messages until Close. Call it on its own goroutine.
func (c *Coordinator) Run() {
	for {
		select {
		case <-c.done:
			c.capture.Stop()
			if c.cancelInflight != nil {
				c.cancelInflight()
			}
			return
		case msg := <-c.msgs:
			c.handle(msg)
		}
	}
}

func (c *Coordinator) handle(msg any) {
	switch m := msg.(type) {
	case cmdStart:
		c.startListening()
	case cmdStop:
		c.stopListening(m.reason)
	case cmdCancel:
		c.cancelAndReturnToIdle()
	case cmdPasteLast:
		c.pasteLast()
	case cmdCopyLast:
		c.copyLast()
	case cmdSetPrefs:
		c.applyPrefs(m.prefs)
	case evChunk:
		c.onChunk(m.chunk)
	case evCapErr:
		c.onCaptureError(m.err)
	case evBaseline:
		if m.gen == c.gen {
			c.baseline = m.snap
		}
	case evWarmup:
		c.onWarmup(m.err)
	case evDone:
		c.onTranscribeDone(m)
	case evToastOver:
		if m.gen == c.gen && c.Phase() == PhaseToast {
			c.setPhase(PhaseIdle)
		}
	}
}

func (c *Coordinator) startListening() {
	switch c.Phase() {
	case PhaseIdle, PhaseInitializing, PhaseToast:
	default:
		return
	}

	c.gen++
	c.buffer = c.buffer[:0]
	c.baseline = nil
	c.det.Reset()
	c.stoppedAt = time.Time{}
	c.audioSeconds = 0

	c.triggerWarmup()

	if c.intro.Available() {
		go c.captureBaseline(c.gen)
	}

	c.capture.Start()
	if c.metrics != nil {
		c.metrics.ActiveSessions.Add(context.Background(), 1)
	}
	if c.warmReady.Load() {
		c.setPhase(PhaseListening)
	} else {
		c.setPhase(PhaseInitializing)
	}
	log.Infof("listening on %s", c.capture.DeviceName())
}

// triggerWarmup starts (or joins) the single in-flight engine warm-up.
func (c *Coordinator) triggerWarmup() {
	if c.warmReady.Load() {
		return
	}
	go func() {
		_, err, _ := c.warmGroup.Do("warmup", func() (any, error) {
			return nil, c.engine.Prepare(context.Background(), func(p float64) {
				c.sink.WarmupProgress(p)
			})
		})
		c.post(evWarmup{err})
	}()
}

// captureBaseline retries the focus snapshot a few times with increasing
// delays; transient capture failures right after the hotkey are common.
// If every attempt fails it gives up silently.
func (c *Coordinator) captureBaseline(gen uint64) {
	if snap := c.intro.Capture(); snap != nil {
		c.post(evBaseline{gen, snap})
		return
	}
	for _, d := range c.BaselineDelays {
		time.Sleep(d)
		if snap := c.intro.Capture(); snap != nil {
			c.post(evBaseline{gen, snap})
			return
		}
	}
}

func (c *Coordinator) onWarmup(err error) {
	if err != nil {
		c.warmReady.Store(false)
		c.warmGroup.Forget("warmup")
		log.Errorf("engine warm-up failed: %v", err)
	} else {
		c.warmReady.Store(true)
	}
	if c.Phase() == PhaseInitializing {
		c.setPhase(PhaseListening)
	}
}

func (c *Coordinator) onChunk(chunk audio.Chunk) {
	switch c.Phase() {
	case PhaseListening, PhaseInitializing:
	default:
		return
	}

	c.buffer = append(c.buffer, chunk.Samples...)
	dec := c.det.Process(chunk)
	c.sink.AudioLevel(dec.RMS)

	autoStop := c.prefs.TrailingSilence.Mode == config.SilenceAuto &&
		c.prefs.RecordingMode == config.ModeToggle
	if dec.DidEndSpeech && autoStop {
		c.stopListening("silence")
	}
}

func (c *Coordinator) onCaptureError(err error) {
	log.Errorf("capture error: %v", err)
	c.sink.Toast("Microphone error")
	c.cancelAndReturnToIdle()
}

func (c *Coordinator) stopListening(reason string) {
	switch c.Phase() {
	case PhaseListening, PhaseInitializing:
	default:
		// Re-entrant stop while one is already in progress.
		return
	}

	c.capture.Stop()
	c.setPhase(PhaseTranscribing)
	c.stoppedAt = time.Now()
	c.startWasWarm = c.warmReady.Load()

	samples := c.buffer
	c.buffer = nil
	audioDur := time.Duration(float64(len(samples)) / encoder.SampleRate * float64(time.Second))
	c.audioSeconds = audioDur.Seconds()
	log.Infof("stopped (%s), %.2fs buffered", reason, audioDur.Seconds())

	if audioDur < c.MinUtterance {
		c.sink.Toast("Too short")
		c.finishSession(ResultTooShort, 0)
		return
	}

	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelInflight = cancel
	go func() {
		start := time.Now()
		text, err := c.transcribe(ctx, samples)
		c.post(evDone{gen: gen, text: text, err: err, took: time.Since(start)})
	}()
}

func (c *Coordinator) transcribe(ctx context.Context, samples []float32) (string, error) {
	if err := c.engine.Prepare(ctx, nil); err != nil {
		return "", err
	}
	return c.engine.Transcribe(ctx, samples, encoder.SampleRate)
}

func (c *Coordinator) onTranscribeDone(m evDone) {
	if m.gen != c.gen || c.Phase() != PhaseTranscribing {
		// Stale result from a cancelled or superseded session.
		return
	}
	c.cancelInflight = nil

	if m.err != nil {
		log.Errorf("transcription failed: %v", m.err)
		c.sink.Toast("Transcription failed")
		c.warmReady.Store(false)
		c.warmGroup.Forget("warmup")
		c.finishSession(ResultFailed, m.took)
		return
	}

	text := normalize.Normalize(m.text, normalize.Options{
		Numbers:           c.prefs.Normalize.Numbers,
		SpokenPunctuation: c.prefs.Normalize.SpokenPunctuation,
		NewlinePhrases:    c.prefs.Normalize.NewlinePhrases,
		AutoCapitalize:    c.prefs.Normalize.AutoCapitalize,
	})
	if clipboard.IsBlank(text) {
		c.sink.Toast("No speech detected")
		c.finishSession(ResultNoSpeech, m.took)
		return
	}

	baseline := c.baseline
	if baseline == nil {
		// The retry loop never delivered one; one last just-in-time try.
		baseline = c.intro.Capture()
	}
	outcome := c.paster.Paste(paste.Request{
		Text:              text,
		Baseline:          baseline,
		PreserveClipboard: c.prefs.KeepTranscriptOnClipboard,
		PlainTextOnly:     c.prefs.PlainTextOnly,
		AutoClearDelay:    time.Duration(c.prefs.AutoClearSeconds * float64(time.Second)),
	})

	c.lastTranscript = text
	c.sink.LastTranscript(true)
	c.sink.Transcription(text, outcome == paste.OutcomeCopiedFallback)
	log.TranscriptionText(text)

	var result string
	switch outcome {
	case paste.OutcomePasted:
		result = ResultPasted
	case paste.OutcomeCopiedFallback:
		result = ResultCopiedFallback
	default:
		// Clipboard write failed inside the fallback; the transcript is
		// still cached for PasteLast/CopyLast.
		result = ResultSkipped
		c.sink.Toast("Clipboard error")
	}
	if c.metrics != nil {
		c.metrics.RecordPaste(context.Background(), outcome.String())
	}
	c.finishSession(result, m.took)
}

// finishSession records telemetry and moves to Toast (visible outcomes) or
// straight back to Idle.
func (c *Coordinator) finishSession(result string, transcribeTook time.Duration) {
	latency := time.Duration(0)
	if !c.stoppedAt.IsZero() {
		latency = time.Since(c.stoppedAt)
	}

	if c.metrics != nil {
		c.metrics.ActiveSessions.Add(context.Background(), -1)
		c.metrics.RecordSession(context.Background(), result, c.startWasWarm, latency)
		if transcribeTook > 0 {
			c.metrics.TranscribeDuration.Record(context.Background(), transcribeTook.Seconds())
		}
	}

	rm := RunMetrics{
		Result:       result,
		WarmStart:    c.startWasWarm,
		AudioSeconds: c.audioSeconds,
		TranscribeMs: float64(transcribeTook.Milliseconds()),
		LatencyMs:    float64(latency.Milliseconds()),
	}
	c.sink.RunCompleted(rm)
	log.Session(log.SessionMetrics{
		Engine:       c.engine.Name(),
		Result:       result,
		WarmStart:    c.startWasWarm,
		AudioS:       c.audioSeconds,
		TranscribeMs: rm.TranscribeMs,
		LatencyMs:    rm.LatencyMs,
	})

	switch result {
	case ResultPasted:
		c.setPhase(PhaseIdle)
	default:
		c.setPhase(PhaseToast)
		gen := c.gen
		time.AfterFunc(c.ToastDuration, func() { c.post(evToastOver{gen}) })
	}
}

// cancelAndReturnToIdle drops the session without side effects: the
// in-flight transcription is cancelled and its late result, if any, is
// discarded by the generation check.
func (c *Coordinator) cancelAndReturnToIdle() {
	if c.Phase() == PhaseIdle {
		return
	}
	wasActive := c.Phase() == PhaseListening || c.Phase() == PhaseInitializing || c.Phase() == PhaseTranscribing

	c.gen++
	if c.cancelInflight != nil {
		c.cancelInflight()
		c.cancelInflight = nil
	}
	c.capture.Stop()
	c.buffer = nil
	c.baseline = nil
	c.det.Reset()

	if wasActive && c.metrics != nil {
		c.metrics.ActiveSessions.Add(context.Background(), -1)
	}
	c.setPhase(PhaseIdle)
}

// pasteLast re-inserts the cached transcript. No session is active, so
// there is no baseline; the paste is forced and the controller's own
// just-in-time capture applies.
func (c *Coordinator) pasteLast() {
	if c.lastTranscript == "" {
		return
	}
	outcome := c.paster.Paste(paste.Request{
		Text:                 c.lastTranscript,
		PreserveClipboard:    c.prefs.KeepTranscriptOnClipboard,
		PlainTextOnly:        c.prefs.PlainTextOnly,
		AutoClearDelay:       time.Duration(c.prefs.AutoClearSeconds * float64(time.Second)),
		ForceWithoutBaseline: true,
	})
	if c.metrics != nil {
		c.metrics.RecordPaste(context.Background(), outcome.String())
	}
}

func (c *Coordinator) copyLast() {
	if c.lastTranscript == "" {
		return
	}
	if _, err := c.clip.Write(c.lastTranscript); err != nil {
		log.Errorf("copy last transcript: %v", err)
		return
	}
	c.sink.Toast("Copied to clipboard")
}

// applyPrefs reacts to a live preferences change. The detector is rebuilt,
// not mutated, when trailing silence changes.
func (c *Coordinator) applyPrefs(p config.Preferences) {
	if p.TrailingSilence != c.prefs.TrailingSilence {
		c.det = c.buildDetector(p)
	}
	c.prefs = p
}
