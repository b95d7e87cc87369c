// Package clipboard wraps the system clipboard with write tokens so later
// operations (restore, privacy auto-clear) can tell whether the content they
// are about to replace is still their own.
package clipboard

import (
	"errors"
	"strings"
	"sync"

	cb "github.com/atotto/clipboard"
)

// Token identifies one clipboard write made through this package. The
// sequence number advances on every write or clear, which together with the
// content comparison stands in for the platform change counter atotto does
// not expose.
type Token struct {
	Seq  uint64
	Text string
}

type Clipboard interface {
	Read() (string, error)
	Write(text string) (Token, error)
	Clear() error

	// Owns reports whether the clipboard still holds exactly what the
	// token's write put there: no later write through this package and
	// content unchanged.
	Owns(t Token) bool
}

// System is the real clipboard.
type System struct {
	mu  sync.Mutex
	seq uint64
}

func NewSystem() *System {
	return &System{}
}

func (s *System) Read() (string, error) {
	return cb.ReadAll()
}

func (s *System) Write(text string) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := cb.WriteAll(text); err != nil {
		return Token{}, err
	}
	s.seq++
	return Token{Seq: s.seq, Text: text}, nil
}

func (s *System) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := cb.WriteAll(""); err != nil {
		return err
	}
	s.seq++
	return nil
}

func (s *System) Owns(t Token) bool {
	s.mu.Lock()
	seq := s.seq
	s.mu.Unlock()
	if t.Seq != seq {
		return false
	}
	current, err := cb.ReadAll()
	return err == nil && current == t.Text
}

// Fake is an in-memory clipboard for tests. SetExternal simulates another
// application overwriting the clipboard behind our back.
type Fake struct {
	mu      sync.Mutex
	content string
	seq     uint64
	writes  []string
	FailAll bool
}

func NewFake() *Fake { return &Fake{} }

func (f *Fake) Read() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailAll {
		return "", errors.New("fake: clipboard unavailable")
	}
	return f.content, nil
}

func (f *Fake) Write(text string) (Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailAll {
		return Token{}, errors.New("fake: clipboard unavailable")
	}
	f.content = text
	f.seq++
	f.writes = append(f.writes, text)
	return Token{Seq: f.seq, Text: text}, nil
}

func (f *Fake) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailAll {
		return errors.New("fake: clipboard unavailable")
	}
	f.content = ""
	f.seq++
	return nil
}

func (f *Fake) Owns(t Token) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return t.Seq == f.seq && f.content == t.Text
}

func (f *Fake) SetExternal(text string) {
	f.mu.Lock()
	f.content = text
	f.mu.Unlock()
}

func (f *Fake) Content() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.content
}

// Writes returns every value written through Write, in order.
func (f *Fake) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

// IsBlank reports whether text is empty or whitespace-only.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
