package audio

import (
	"math"
	"testing"
	"time"
)

func TestDecodeS16Downmix(t *testing.T) {
	// Two stereo frames: (16384, -16384) averages to 0, (16384, 16384) to 0.5.
	data := s16le([]int16{16384, -16384, 16384, 16384})
	out := decodeS16(data, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 mono frames, got %d", len(out))
	}
	if math.Abs(float64(out[0])) > 0.001 {
		t.Errorf("expected ~0, got %v", out[0])
	}
	if math.Abs(float64(out[1])-0.5) > 0.001 {
		t.Errorf("expected ~0.5, got %v", out[1])
	}
}

func TestConverterHalvesRate(t *testing.T) {
	cv := newConverter(32000, 1, 16000)
	in := make([]int16, 3200) // 100ms at 32kHz
	out := cv.convert(s16le(in))
	if len(out) < 1590 || len(out) > 1610 {
		t.Errorf("expected ~1600 samples, got %d", len(out))
	}
}

func TestConverterPhaseCarriesAcrossCalls(t *testing.T) {
	// 44.1k -> 16k is a non-integer ratio; total output over many small
	// chunks must track the overall ratio without drift.
	cv := newConverter(44100, 1, 16000)
	var total int
	chunk := make([]int16, 441) // 10ms
	for i := 0; i < 100; i++ { // 1s total
		total += len(cv.convert(s16le(chunk)))
	}
	if total < 15900 || total > 16100 {
		t.Errorf("expected ~16000 samples over 1s, got %d", total)
	}
}

func TestConverterPreservesDC(t *testing.T) {
	cv := newConverter(48000, 1, 16000)
	in := make([]int16, 4800)
	for i := range in {
		in[i] = 16384
	}
	out := cv.convert(s16le(in))
	for i, s := range out {
		if math.Abs(float64(s)-0.5) > 0.01 {
			t.Fatalf("sample %d: expected ~0.5, got %v", i, s)
		}
	}
}

func TestChunkRMSAndDuration(t *testing.T) {
	samples := make([]float32, 16000)
	for i := range samples {
		samples[i] = 0.5
	}
	c := Chunk{Samples: samples, SampleRate: 16000}
	if math.Abs(c.RMS()-0.5) > 0.001 {
		t.Errorf("expected RMS 0.5, got %v", c.RMS())
	}
	if c.Duration() != time.Second {
		t.Errorf("expected 1s, got %v", c.Duration())
	}
	if (Chunk{}).RMS() != 0 {
		t.Error("empty chunk RMS must be 0")
	}
}
