// Package focus captures point-in-time signatures of the focused UI element
// so the paste path can tell whether it is still safe to synthesize
// keystrokes. A nil *Snapshot means "nothing could be introspected" and is a
// legitimate value end-to-end, not an error.
package focus

// ElementSignature identifies the focused UI element as far as the platform
// introspection API exposes it. Fields the platform cannot provide stay at
// their zero values and still participate in comparison.
type ElementSignature struct {
	Role         string
	Subrole      string
	Identifier   string
	WindowNumber int
}

// Snapshot is an opaque signature of "what is focused": owning process, the
// focused element, and a marker for the current text selection. Held by the
// session for at most one recording; never persisted.
type Snapshot struct {
	ProcessID int
	Element   ElementSignature
	Selection string
}

// ChangeReason classifies why two snapshots no longer match. Comparison
// short-circuits on the earliest discriminating field; an application switch
// is the highest-confidence signal, so process identity goes first.
type ChangeReason int

const (
	ChangeNone ChangeReason = iota
	ChangeMissingBaseline
	ChangeMissingCurrent
	ChangeApplication
	ChangeElement
	ChangeSelection
)

func (r ChangeReason) String() string {
	switch r {
	case ChangeNone:
		return "none"
	case ChangeMissingBaseline:
		return "missing_baseline"
	case ChangeMissingCurrent:
		return "missing_current"
	case ChangeApplication:
		return "application_changed"
	case ChangeElement:
		return "element_changed"
	case ChangeSelection:
		return "selection_changed"
	}
	return "unknown"
}

// Diff compares a baseline snapshot against the current one. Absence of
// either side is itself a change condition.
func Diff(baseline, current *Snapshot) ChangeReason {
	if baseline == nil {
		return ChangeMissingBaseline
	}
	if current == nil {
		return ChangeMissingCurrent
	}
	if baseline.ProcessID != current.ProcessID {
		return ChangeApplication
	}
	if baseline.Element != current.Element {
		return ChangeElement
	}
	if baseline.Selection != current.Selection {
		return ChangeSelection
	}
	return ChangeNone
}

// Introspector abstracts the platform focus/secure-input probes.
type Introspector interface {
	// Available reports whether introspection permission is present at all.
	Available() bool

	// Capture snapshots the current focus. Returns nil when no focus-owning
	// target can be introspected, which can happen transiently even with
	// permission granted.
	Capture() *Snapshot

	// SecureInput reports whether the OS is shielding a password-style
	// field; synthesized keystrokes must not be used while it is set.
	SecureInput() bool
}

// Fake is a scripted Introspector for tests.
type Fake struct {
	Snapshots  []*Snapshot // returned in order; last one repeats
	Unavail    bool
	Secure     bool
	CaptureLog int // number of Capture calls made

	idx int
}

func (f *Fake) Available() bool { return !f.Unavail }

func (f *Fake) Capture() *Snapshot {
	f.CaptureLog++
	if len(f.Snapshots) == 0 {
		return nil
	}
	s := f.Snapshots[f.idx]
	if f.idx < len(f.Snapshots)-1 {
		f.idx++
	}
	return s
}

func (f *Fake) SecureInput() bool { return f.Secure }
