// Package config loads user preferences from a YAML file and streams live
// updates to the session layer, which reacts without a restart (e.g. the
// voice-activity detector is rebuilt when trailing silence changes).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Recording modes.
const (
	ModeToggle = "toggle" // tap to start, tap (or silence) to stop
	ModeHold   = "hold"   // record while the hotkey is held
)

// Trailing-silence stop modes.
const (
	SilenceAuto   = "auto"   // stop automatically after trailing silence
	SilenceManual = "manual" // only an explicit stop ends the session
)

type TrailingSilence struct {
	Mode    string  `mapstructure:"mode"`
	Seconds float64 `mapstructure:"seconds"`
}

// Normalization toggles, one per rewrite rule.
type Normalization struct {
	Numbers           bool `mapstructure:"numbers"`
	SpokenPunctuation bool `mapstructure:"spoken_punctuation"`
	NewlinePhrases    bool `mapstructure:"newline_phrases"`
	AutoCapitalize    bool `mapstructure:"auto_capitalize"`
}

// Preferences is the user-tunable surface. Zero value is never used
// directly; Load applies defaults first.
type Preferences struct {
	RecordingMode   string          `mapstructure:"recording_mode"`
	TrailingSilence TrailingSilence `mapstructure:"trailing_silence"`
	Normalize       Normalization   `mapstructure:"normalize"`

	KeepTranscriptOnClipboard bool    `mapstructure:"keep_transcript_on_clipboard"`
	PlainTextOnly             bool    `mapstructure:"plain_text_only"`
	AutoClearSeconds          float64 `mapstructure:"auto_clear_seconds"`

	Engine   string `mapstructure:"engine"`
	Model    string `mapstructure:"model"`
	Language string `mapstructure:"language"`

	Device      string `mapstructure:"device"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

func (p Preferences) Validate() error {
	if p.RecordingMode != ModeToggle && p.RecordingMode != ModeHold {
		return fmt.Errorf("invalid recording_mode %q (must be toggle or hold)", p.RecordingMode)
	}
	if p.TrailingSilence.Mode != SilenceAuto && p.TrailingSilence.Mode != SilenceManual {
		return fmt.Errorf("invalid trailing_silence.mode %q (must be auto or manual)", p.TrailingSilence.Mode)
	}
	if p.TrailingSilence.Seconds <= 0 {
		return fmt.Errorf("trailing_silence.seconds must be positive, got %v", p.TrailingSilence.Seconds)
	}
	return nil
}

// Store reads preferences and watches the backing file for edits.
type Store struct {
	v *viper.Viper

	mu      sync.Mutex
	current Preferences
	watch   []func(Preferences)
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "murmur", "config.yaml")
}

// Load reads the config file at path, falling back to defaults for anything
// unset. A missing file is not an error.
func Load(path string) (*Store, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MURMUR")
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	s := &Store{v: v}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) reload() error {
	var p Preferences
	if err := s.v.Unmarshal(&p); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = p
	s.mu.Unlock()
	return nil
}

// Get returns the current preferences snapshot.
func (s *Store) Get() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Watch registers fn to receive every future preferences change and starts
// the file watcher on first use. Invalid edits are ignored; the last good
// preferences stay in effect.
func (s *Store) Watch(fn func(Preferences)) {
	s.mu.Lock()
	first := len(s.watch) == 0
	s.watch = append(s.watch, fn)
	s.mu.Unlock()

	if first {
		s.v.OnConfigChange(func(_ fsnotify.Event) { s.notify() })
		s.v.WatchConfig()
	}
}

// notify re-reads the file and fans the result out to every watcher. An
// invalid edit is dropped; the last good preferences stay in effect.
func (s *Store) notify() {
	if err := s.reload(); err != nil {
		return
	}
	p := s.Get()
	s.mu.Lock()
	fns := append([]func(Preferences){}, s.watch...)
	s.mu.Unlock()
	for _, f := range fns {
		f(p)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("recording_mode", ModeToggle)
	v.SetDefault("trailing_silence.mode", SilenceAuto)
	v.SetDefault("trailing_silence.seconds", 0.85)
	v.SetDefault("normalize.numbers", true)
	v.SetDefault("normalize.spoken_punctuation", true)
	v.SetDefault("normalize.newline_phrases", true)
	v.SetDefault("normalize.auto_capitalize", true)
	v.SetDefault("keep_transcript_on_clipboard", false)
	v.SetDefault("plain_text_only", false)
	v.SetDefault("auto_clear_seconds", 0)
	v.SetDefault("engine", "")
	v.SetDefault("model", "")
	v.SetDefault("language", "en")
	v.SetDefault("device", "")
	v.SetDefault("metrics_addr", "")
}
