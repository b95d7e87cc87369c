// Package vad classifies capture chunks into speech and silence using RMS
// energy with hysteresis: the activation threshold sits above the
// deactivation threshold so the detector cannot flap at the boundary.
package vad

import (
	"fmt"
	"time"

	"murmur/audio"
)

type Config struct {
	// ActivationThreshold is the RMS level at or above which a chunk counts
	// toward starting speech. Must be greater than DeactivationThreshold.
	ActivationThreshold float64

	// DeactivationThreshold is the RMS level below which a chunk counts
	// toward trailing silence while speaking.
	DeactivationThreshold float64

	// MinSpeechDuration is how long energy must stay at or above activation
	// before speech is confirmed.
	MinSpeechDuration time.Duration

	// TrailingSilence is how long energy must stay below deactivation
	// before speech is considered ended.
	TrailingSilence time.Duration
}

func DefaultConfig() Config {
	return Config{
		ActivationThreshold:   0.015,
		DeactivationThreshold: 0.008,
		MinSpeechDuration:     120 * time.Millisecond,
		TrailingSilence:       850 * time.Millisecond,
	}
}

// Decision is the outcome of processing one chunk.
type Decision struct {
	IsSpeech       bool
	DidStartSpeech bool
	DidEndSpeech   bool
	RMS            float64
}

type state int

const (
	stateSilent state = iota
	stateSpeaking
)

// Detector is a single-pass classifier: explicit Silent/Speaking state plus
// two duration counters, no look-ahead beyond the current chunk. Not safe
// for concurrent use; the session loop owns it.
type Detector struct {
	cfg   Config
	state state

	speechDur  time.Duration // consecutive time at/above activation while Silent
	silenceDur time.Duration // consecutive time below deactivation while Speaking
}

func New(cfg Config) (*Detector, error) {
	if cfg.ActivationThreshold <= cfg.DeactivationThreshold {
		return nil, fmt.Errorf("vad: activation threshold %v must exceed deactivation threshold %v",
			cfg.ActivationThreshold, cfg.DeactivationThreshold)
	}
	return &Detector{cfg: cfg}, nil
}

// Process classifies one chunk and advances the state machine.
func (d *Detector) Process(chunk audio.Chunk) Decision {
	rms := chunk.RMS()
	dur := chunk.Duration()
	dec := Decision{RMS: rms}

	switch d.state {
	case stateSilent:
		if rms >= d.cfg.ActivationThreshold {
			d.speechDur += dur
			if d.speechDur >= d.cfg.MinSpeechDuration {
				d.state = stateSpeaking
				d.silenceDur = 0
				dec.DidStartSpeech = true
			}
		} else {
			// Any dip below activation discards accumulated speech time;
			// short bursts are never folded into the next one.
			d.speechDur = 0
		}

	case stateSpeaking:
		if rms < d.cfg.DeactivationThreshold {
			d.silenceDur += dur
			if d.silenceDur >= d.cfg.TrailingSilence {
				d.state = stateSilent
				d.speechDur = 0
				d.silenceDur = 0
				dec.DidEndSpeech = true
			}
		} else {
			// Hysteresis: anything at or above deactivation keeps the
			// speech alive, even if it is below activation.
			d.silenceDur = 0
		}
	}

	dec.IsSpeech = d.state == stateSpeaking
	return dec
}

// Reset clears state and both counters. Called at session start and after
// every stop.
func (d *Detector) Reset() {
	d.state = stateSilent
	d.speechDur = 0
	d.silenceDur = 0
}

// Config returns the configuration the detector was built with.
func (d *Detector) Config() Config {
	return d.cfg
}
