package audio

import (
	"errors"
	"sync"
)

// FakeContext is a scripted backend for tests. Emitted data is pushed by the
// test through FakeCapture.Emit, synchronously, mirroring the serialized
// delivery guarantee of the real backends.
type FakeContext struct {
	Rate      uint32 // format the fake hardware "delivers"
	Chans     uint32
	FailOpen  bool
	FailStart bool

	mu      sync.Mutex
	created []*FakeCapture
	devices []DeviceInfo
}

func NewFakeContext(rate, chans uint32) *FakeContext {
	return &FakeContext{Rate: rate, Chans: chans}
}

func (f *FakeContext) SetDevices(devices []DeviceInfo) {
	f.mu.Lock()
	f.devices = devices
	f.mu.Unlock()
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices, nil
}

func (f *FakeContext) NewCapture(device *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	if f.FailOpen {
		return nil, errors.New("fake: device unavailable")
	}
	cap := &FakeCapture{rate: f.Rate, chans: f.Chans, info: device, failStart: f.FailStart}
	f.mu.Lock()
	f.created = append(f.created, cap)
	f.mu.Unlock()
	return cap, nil
}

func (f *FakeContext) Close() {}

// Last returns the most recently opened capture, or nil.
func (f *FakeContext) Last() *FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.created) == 0 {
		return nil
	}
	return f.created[len(f.created)-1]
}

// Opened returns how many captures have been opened.
func (f *FakeContext) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type FakeCapture struct {
	rate      uint32
	chans     uint32
	info      *DeviceInfo
	failStart bool

	mu      sync.Mutex
	cb      DataCallback
	started bool
	closed  bool
}

func (c *FakeCapture) Start() error {
	if c.failStart {
		return errors.New("fake: stream init failed")
	}
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	return nil
}

func (c *FakeCapture) Stop() {
	c.mu.Lock()
	c.started = false
	c.mu.Unlock()
}

func (c *FakeCapture) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *FakeCapture) SetCallback(cb DataCallback) {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
}

func (c *FakeCapture) ClearCallback() {
	c.mu.Lock()
	c.cb = nil
	c.mu.Unlock()
}

func (c *FakeCapture) SampleRate() uint32 { return c.rate }

func (c *FakeCapture) Channels() uint32 { return c.chans }

func (c *FakeCapture) DeviceName() string {
	if c.info != nil {
		return c.info.Name
	}
	return "fake"
}

func (c *FakeCapture) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

func (c *FakeCapture) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Emit delivers raw S16LE PCM to the registered callback, as the capture
// thread of a real backend would.
func (c *FakeCapture) Emit(data []byte) {
	c.mu.Lock()
	cb := c.cb
	started := c.started
	c.mu.Unlock()
	if cb != nil && started {
		cb(data, uint32(len(data)/2/int(c.chans)))
	}
}
