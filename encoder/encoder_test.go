package encoder

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestQuantizeClamps(t *testing.T) {
	got := Quantize([]float32{0, 0.5, 1, -1, 2, -2})
	want := []int16{0, 16383, 32767, -32767, 32767, -32767}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Quantize[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestWAVBytesHeader(t *testing.T) {
	samples := make([]float32, 1600) // 100ms
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 16000))
	}
	data := WAVBytes(samples, 16000)

	if len(data) != 44+len(samples)*2 {
		t.Fatalf("size = %d, want %d", len(data), 44+len(samples)*2)
	}
	if string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE magic")
	}
	if rate := binary.LittleEndian.Uint32(data[24:]); rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
	if chans := binary.LittleEndian.Uint16(data[22:]); chans != 1 {
		t.Errorf("channels = %d, want 1", chans)
	}
	if size := binary.LittleEndian.Uint32(data[40:]); size != uint32(len(samples)*2) {
		t.Errorf("data size = %d, want %d", size, len(samples)*2)
	}
}

func TestFlacEncoderRoundsBlocks(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}

	total := BlockSize*2 + BlockSize/4
	samples := make([]float32, total)
	for i := range samples {
		samples[i] = float32(math.Sin(2*math.Pi*220*float64(i)/16000)) * 0.3
	}
	// Feed in uneven chunks to exercise the pending buffer.
	for i := 0; i < total; i += 1000 {
		end := i + 1000
		if end > total {
			end = total
		}
		if err := enc.Write(samples[i:end]); err != nil {
			t.Fatalf("Write at %d: %v", i, err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if enc.TotalFrames() != uint64(total) {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), total)
	}
	out := enc.Bytes()
	if len(out) < 4 || string(out[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
}

func TestFlacEncoderEmpty(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close on empty encoder: %v", err)
	}
	if enc.TotalFrames() != 0 {
		t.Errorf("TotalFrames = %d, want 0", enc.TotalFrames())
	}
	if len(enc.Bytes()) == 0 {
		t.Error("expected at least a FLAC header")
	}
}
