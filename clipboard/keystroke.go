package clipboard

import (
	"runtime"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

// Keystroker synthesizes the two insertion keystrokes the paste path needs.
// Synthesis is best-effort: the OS gives no delivery status, so errors only
// mean the event could not be posted at all.
type Keystroker interface {
	// Paste posts the platform paste chord (Cmd+V / Ctrl+V).
	Paste() error
	// Newline posts a single Return keypress.
	Newline() error
}

type systemKeys struct {
	kb   keybd_event.KeyBonding
	once sync.Once
	err  error
}

func NewKeystroker() Keystroker {
	return &systemKeys{}
}

func (k *systemKeys) init() error {
	k.once.Do(func() {
		k.kb, k.err = keybd_event.NewKeyBonding()
		if k.err == nil && runtime.GOOS == "linux" {
			// uinput devices need a moment to be picked up by the
			// compositor before events are honored.
			time.Sleep(200 * time.Millisecond)
		}
	})
	return k.err
}

func (k *systemKeys) Paste() error {
	if err := k.init(); err != nil {
		return err
	}
	k.kb.Clear()
	k.kb.SetKeys(keybd_event.VK_V)
	if runtime.GOOS == "darwin" {
		k.kb.HasSuper(true)
	} else {
		k.kb.HasCTRL(true)
	}
	return k.kb.Launching()
}

func (k *systemKeys) Newline() error {
	if err := k.init(); err != nil {
		return err
	}
	k.kb.Clear()
	k.kb.SetKeys(keybd_event.VK_ENTER)
	return k.kb.Launching()
}

// FakeKeys records synthesized keystrokes for tests. Each entry is "paste"
// or "newline".
type FakeKeys struct {
	mu     sync.Mutex
	Events []string
}

func (f *FakeKeys) Paste() error {
	f.mu.Lock()
	f.Events = append(f.Events, "paste")
	f.mu.Unlock()
	return nil
}

func (f *FakeKeys) Newline() error {
	f.mu.Lock()
	f.Events = append(f.Events, "newline")
	f.mu.Unlock()
	return nil
}

func (f *FakeKeys) Log() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Events...)
}
