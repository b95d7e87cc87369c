// Package paste performs clipboard-based text insertion with a focus-safety
// check: if focus moved since the recording began, or the OS is shielding a
// password field, the transcript is left on the clipboard instead of being
// pasted into the wrong place.
package paste

import (
	"strings"
	"time"

	"murmur/clipboard"
	"murmur/focus"
)

// Outcome classifies an insertion attempt for logging and UI telemetry.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomePasted
	OutcomeCopiedFallback
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomePasted:
		return "pasted"
	case OutcomeCopiedFallback:
		return "copied_fallback"
	}
	return "unknown"
}

// Request carries one insertion. Text is the final normalized transcript;
// newline runs are re-derived from it here, at insertion time, so whatever
// the normalizer produced is exactly what gets segmented.
type Request struct {
	Text     string
	Baseline *focus.Snapshot

	// PreserveClipboard keeps the transcript on the clipboard instead of
	// restoring the previous contents after an in-place paste.
	PreserveClipboard bool

	// PlainTextOnly suppresses rich-text flavors. The transcript is always
	// written as plain text regardless.
	PlainTextOnly bool

	// AutoClearDelay schedules a privacy clear of the transcript this long
	// after the operation, guarded so it never clobbers content written by
	// anything else. Zero disables it.
	AutoClearDelay time.Duration

	// ForceWithoutBaseline pastes even when no baseline snapshot exists
	// (explicit user-initiated re-paste).
	ForceWithoutBaseline bool
}

// Controller decides paste-vs-copy and drives the clipboard and keystroke
// synthesis. The delays are fields so tests run in milliseconds.
type Controller struct {
	Clip  clipboard.Clipboard
	Keys  clipboard.Keystroker
	Intro focus.Introspector

	// RestoreDelay is how long after a paste the previous clipboard content
	// is put back: long enough for the target application to have consumed
	// the synthesized chord.
	RestoreDelay time.Duration

	// SegmentDelay paces multi-segment insertions.
	SegmentDelay time.Duration

	// Notify, when set, receives a short user-facing message on the copy
	// fallback path.
	Notify func(msg string)
}

func NewController(clip clipboard.Clipboard, keys clipboard.Keystroker, intro focus.Introspector) *Controller {
	return &Controller{
		Clip:         clip,
		Keys:         keys,
		Intro:        intro,
		RestoreDelay: 600 * time.Millisecond,
		SegmentDelay: 50 * time.Millisecond,
	}
}

// Paste runs the insertion policy and returns how the text was delivered.
func (c *Controller) Paste(req Request) Outcome {
	if clipboard.IsBlank(req.Text) {
		return OutcomeSkipped
	}

	current := c.Intro.Capture()
	reason := focus.Diff(req.Baseline, current)
	focusChanged := reason != focus.ChangeNone
	if reason == focus.ChangeMissingBaseline && req.ForceWithoutBaseline {
		focusChanged = false
	}

	if c.Intro.SecureInput() || focusChanged {
		// Copy fallback. The transcript must stay retrievable, so the
		// previous clipboard content is not restored on this path.
		token, err := c.Clip.Write(req.Text)
		if err != nil {
			return OutcomeSkipped
		}
		if c.Notify != nil {
			c.Notify("Copied to clipboard (" + reasonLabel(c.Intro.SecureInput(), reason) + ")")
		}
		c.scheduleAutoClear(token, req.AutoClearDelay)
		return OutcomeCopiedFallback
	}

	var prev string
	if !req.PreserveClipboard {
		prev, _ = c.Clip.Read()
	}

	token := c.insert(req.Text)

	// PreserveClipboard means the user asked to keep the transcript, so
	// neither the restore nor the privacy clear applies.
	if !req.PreserveClipboard {
		if prev != "" {
			time.AfterFunc(c.RestoreDelay, func() {
				c.Clip.Write(prev)
			})
		}
		// A restore advances the sequence, so the ownership guard turns
		// this into a no-op once the previous content is back.
		c.scheduleAutoClear(token, req.AutoClearDelay)
	}
	return OutcomePasted
}

// insert writes and pastes the text. Single-line text is one write + one
// chord; multi-line text is segmented so newline runs survive applications
// that treat a pasted "\n\n" differently from typed Returns.
func (c *Controller) insert(text string) clipboard.Token {
	if !strings.Contains(text, "\n") {
		token, _ := c.Clip.Write(text)
		c.Keys.Paste()
		return token
	}

	var token clipboard.Token
	rest := text
	first := true
	for len(rest) > 0 {
		if rest[0] == '\n' {
			run := 0
			for run < len(rest) && rest[run] == '\n' {
				run++
			}
			for i := 0; i < run; i++ {
				c.Keys.Newline()
			}
			rest = rest[run:]
			continue
		}
		end := strings.IndexByte(rest, '\n')
		if end < 0 {
			end = len(rest)
		}
		if !first && c.SegmentDelay > 0 {
			time.Sleep(c.SegmentDelay)
		}
		token, _ = c.Clip.Write(rest[:end])
		c.Keys.Paste()
		first = false
		rest = rest[end:]
	}
	return token
}

// scheduleAutoClear defers a privacy clear that only fires while the
// clipboard still holds exactly what this operation wrote.
func (c *Controller) scheduleAutoClear(token clipboard.Token, delay time.Duration) {
	if delay <= 0 {
		return
	}
	time.AfterFunc(delay, func() {
		if c.Clip.Owns(token) {
			c.Clip.Clear()
		}
	})
}

func reasonLabel(secure bool, reason focus.ChangeReason) string {
	if secure {
		return "secure input active"
	}
	switch reason {
	case focus.ChangeMissingBaseline, focus.ChangeMissingCurrent:
		return "focus unknown"
	default:
		return "focus changed"
	}
}
