package audio

import (
	"fmt"
	"sync"
)

// Controller owns the capture device for the session pipeline. It opens a
// fresh backend stream per Start, converts whatever the hardware delivers
// into the target format (mono float32 at CaptureConfig.SampleRate), and
// hands Chunks to a single subscriber on the capture goroutine. Failures to
// open or start the stream are reported through the error handler rather
// than returned: the session layer treats them as events that force Idle.
type Controller struct {
	ctx    Context
	target CaptureConfig

	mu      sync.Mutex
	dev     CaptureDevice
	running bool
	current *DeviceInfo
	pending *DeviceInfo
	swap    bool // a device change is queued

	onChunk func(Chunk)
	onError func(error)
}

func NewController(ctx Context, target CaptureConfig) *Controller {
	return &Controller{ctx: ctx, target: target}
}

// Subscribe registers the single chunk subscriber. Delivery is serialized
// but happens on the capture goroutine, not the caller's.
func (c *Controller) Subscribe(fn func(Chunk)) {
	c.mu.Lock()
	c.onChunk = fn
	c.mu.Unlock()
}

// OnError registers the handler for capture errors (device unavailable,
// permission denied, stream init failure).
func (c *Controller) OnError(fn func(error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// SetInputDevice queues a device change. The change takes effect on the
// next Start that runs while idle; a change requested mid-capture is queued
// silently and never applied to the live stream.
func (c *Controller) SetInputDevice(dev *DeviceInfo) {
	c.mu.Lock()
	c.pending = dev
	c.swap = true
	c.mu.Unlock()
}

// Device returns the device the controller will open on the next Start.
func (c *Controller) Device() *DeviceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.swap {
		return c.pending
	}
	return c.current
}

// Running reports whether a capture stream is live.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Start opens the capture stream and begins chunk delivery. No-op while
// already running. Errors surface via OnError.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	if c.swap {
		c.current = c.pending
		c.pending = nil
		c.swap = false
	}
	device := c.current
	onChunk := c.onChunk
	errFn := c.onError
	c.mu.Unlock()

	dev, err := c.ctx.NewCapture(device, c.target)
	if err != nil {
		c.reportError(errFn, fmt.Errorf("opening capture device: %w", err))
		return
	}

	// Format conversion only runs when the hardware format differs from
	// the target; a matching stream is decoded directly.
	var cv *converter
	if dev.SampleRate() != c.target.SampleRate || dev.Channels() != 1 {
		cv = newConverter(dev.SampleRate(), dev.Channels(), c.target.SampleRate)
	}
	rate := float64(c.target.SampleRate)
	srcChans := int(dev.Channels())

	dev.SetCallback(func(data []byte, _ uint32) {
		if onChunk == nil || len(data) < 2 {
			return
		}
		var samples []float32
		if cv != nil {
			samples = cv.convert(data)
		} else {
			samples = decodeS16(data, srcChans)
		}
		if len(samples) == 0 {
			return
		}
		onChunk(Chunk{Samples: samples, SampleRate: rate})
	})

	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		dev.Close()
		c.reportError(errFn, fmt.Errorf("starting capture stream: %w", err))
		return
	}

	c.mu.Lock()
	c.dev = dev
	c.running = true
	c.mu.Unlock()
}

// Stop halts delivery and tears down the stream. Idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	dev := c.dev
	c.dev = nil
	c.running = false
	c.mu.Unlock()

	if dev != nil {
		dev.Stop()
		dev.ClearCallback()
		dev.Close()
	}
}

// DeviceName reports the name of the device in use, for diagnostics.
func (c *Controller) DeviceName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev != nil {
		return c.dev.DeviceName()
	}
	if c.current != nil {
		return c.current.Name
	}
	return "system default"
}

func (c *Controller) reportError(fn func(error), err error) {
	if fn != nil {
		fn(err)
	}
}
