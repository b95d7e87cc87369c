package audio

import (
	"math"
	"strings"
	"time"
)

const WAVHeaderSize = 44

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Chunk is one capture callback's worth of audio in the session format:
// mono float32 samples in [-1, 1]. Chunks are created once by the capture
// controller, consumed synchronously, and never persisted.
type Chunk struct {
	Samples    []float32
	SampleRate float64
}

// RMS returns the root-mean-square energy of the chunk.
func (c Chunk) RMS() float64 {
	if len(c.Samples) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range c.Samples {
		sumSquares += float64(s) * float64(s)
	}
	return math.Sqrt(sumSquares / float64(len(c.Samples)))
}

// Duration returns the wall time this chunk spans.
func (c Chunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / c.SampleRate * float64(time.Second))
}

// DataCallback receives raw signed 16-bit little-endian PCM from a backend.
// Backends serialize calls: no two invocations run concurrently.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

// CaptureDevice is an open capture stream. SampleRate and Channels report
// the format the hardware actually delivers, which may differ from the
// requested CaptureConfig; the controller converts when they do.
type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	SampleRate() uint32
	Channels() uint32
	DeviceName() string
}
