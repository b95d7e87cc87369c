package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p := s.Get()
	if p.RecordingMode != ModeToggle {
		t.Errorf("recording_mode = %q, want toggle", p.RecordingMode)
	}
	if p.TrailingSilence.Mode != SilenceAuto || p.TrailingSilence.Seconds != 0.85 {
		t.Errorf("trailing_silence = %+v", p.TrailingSilence)
	}
	if p.Language != "en" {
		t.Errorf("language = %q", p.Language)
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := writeConfig(t, `
recording_mode: hold
trailing_silence:
  mode: manual
  seconds: 1.5
keep_transcript_on_clipboard: true
engine: groq
language: de
`)
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p := s.Get()
	if p.RecordingMode != ModeHold {
		t.Errorf("recording_mode = %q", p.RecordingMode)
	}
	if p.TrailingSilence.Mode != SilenceManual {
		t.Errorf("trailing_silence.mode = %q", p.TrailingSilence.Mode)
	}
	if p.TrailingSilence.Seconds != 1.5 {
		t.Errorf("trailing_silence.seconds = %v", p.TrailingSilence.Seconds)
	}
	if !p.KeepTranscriptOnClipboard {
		t.Error("keep_transcript_on_clipboard not set")
	}
	if p.Engine != "groq" || p.Language != "de" {
		t.Errorf("engine/language = %q/%q", p.Engine, p.Language)
	}
}

func TestLoadRejectsInvalidMode(t *testing.T) {
	path := writeConfig(t, "recording_mode: sometimes\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadRejectsNonPositiveSilence(t *testing.T) {
	path := writeConfig(t, "trailing_silence:\n  seconds: 0\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestNotifyFansOutToAllWatchers(t *testing.T) {
	path := writeConfig(t, "language: en\n")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var got []string
	s.Watch(func(p Preferences) { got = append(got, "a:"+p.Language) })
	s.Watch(func(p Preferences) { got = append(got, "b:"+p.Language) })

	if err := os.WriteFile(path, []byte("language: fr\n"), 0644); err != nil {
		t.Fatal(err)
	}
	s.notify()

	if len(got) != 2 || got[0] != "a:fr" || got[1] != "b:fr" {
		t.Errorf("watcher calls = %v, want both with fr", got)
	}
}

func TestNotifyKeepsLastGoodOnInvalidEdit(t *testing.T) {
	path := writeConfig(t, "recording_mode: hold\n")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	calls := 0
	s.Watch(func(Preferences) { calls++ })

	if err := os.WriteFile(path, []byte("recording_mode: sometimes\n"), 0644); err != nil {
		t.Fatal(err)
	}
	s.notify()

	if calls != 0 {
		t.Errorf("watchers notified %d times for an invalid edit", calls)
	}
	if got := s.Get().RecordingMode; got != ModeHold {
		t.Errorf("recording_mode = %q, want last good value", got)
	}
}

func TestValidate(t *testing.T) {
	good := Preferences{
		RecordingMode:   ModeToggle,
		TrailingSilence: TrailingSilence{Mode: SilenceAuto, Seconds: 0.85},
	}
	if err := good.Validate(); err != nil {
		t.Errorf("valid preferences rejected: %v", err)
	}
	bad := good
	bad.TrailingSilence.Mode = "eventually"
	if err := bad.Validate(); err == nil {
		t.Error("invalid trailing_silence.mode accepted")
	}
}
