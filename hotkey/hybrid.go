package hotkey

import (
	"sync/atomic"
	"time"
)

type Mode string

const (
	ModeHold   Mode = "hold"
	ModeToggle Mode = "toggle"
)

// StartEvent signals that a new recording should start.
type StartEvent struct {
	Mode Mode
}

// Hybrid layers tap-to-toggle and hold-to-talk onto the same key: a press
// always starts recording; releasing within the long-press threshold arms
// toggle mode (next tap stops), holding past it stops on release.
type Hybrid struct {
	startCh chan StartEvent
	stopCh  chan struct{}
	toggle  atomic.Bool
}

func NewHybrid(hk Hotkey, longPress time.Duration) *Hybrid {
	h := &Hybrid{
		startCh: make(chan StartEvent, 1),
		stopCh:  make(chan struct{}, 1),
	}
	go h.run(hk, longPress)
	return h
}

// Start emits when a recording should begin. The mode only settles once the
// press resolves as tap or hold; IsToggle reports the current reading.
func (h *Hybrid) Start() <-chan StartEvent { return h.startCh }

// StopChan emits when the current recording should end, in either mode.
func (h *Hybrid) StopChan() <-chan struct{} { return h.stopCh }

// IsToggle reports whether the active recording is in toggle mode.
func (h *Hybrid) IsToggle() bool { return h.toggle.Load() }

func (h *Hybrid) run(hk Hotkey, longPress time.Duration) {
	for {
		<-hk.Keydown()
		h.toggle.Store(true)
		h.startCh <- StartEvent{Mode: ModeToggle}

		timer := time.NewTimer(longPress)
		select {
		case <-timer.C:
			// Held past the threshold: hold-to-talk, stop on release.
			h.toggle.Store(false)
			<-hk.Keyup()
			h.signalStop()
		case <-hk.Keyup():
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			// Short tap: stay recording until the next press+release.
			<-hk.Keydown()
			<-hk.Keyup()
			h.signalStop()
		}
	}
}

func (h *Hybrid) signalStop() {
	select {
	case h.stopCh <- struct{}{}:
	default:
	}
}
