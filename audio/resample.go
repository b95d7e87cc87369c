package audio

import "encoding/binary"

// converter reformats a backend's native stream (interleaved S16LE at an
// arbitrary rate and channel count) into mono float32 at the target rate.
// One converter is created per Start when formats differ; it carries the
// resampling phase across calls so chunk boundaries don't produce seams.
type converter struct {
	srcRate  float64
	dstRate  float64
	srcChans int

	pos  float64 // fractional read position into the mono stream
	prev float32 // last sample of the previous call, for interpolation
	seen bool
}

func newConverter(srcRate, srcChans, dstRate uint32) *converter {
	return &converter{
		srcRate:  float64(srcRate),
		dstRate:  float64(dstRate),
		srcChans: int(srcChans),
	}
}

// decodeS16 converts raw S16LE bytes to mono float32, averaging channels.
func decodeS16(data []byte, channels int) []float32 {
	if channels < 1 {
		channels = 1
	}
	frames := len(data) / 2 / channels
	out := make([]float32, frames)
	for f := 0; f < frames; f++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			s := int16(binary.LittleEndian.Uint16(data[(f*channels+ch)*2:]))
			sum += float64(s) / 32768.0
		}
		out[f] = float32(sum / float64(channels))
	}
	return out
}

// convert downmixes and linearly resamples one callback's worth of PCM.
func (cv *converter) convert(data []byte) []float32 {
	mono := decodeS16(data, cv.srcChans)
	if len(mono) == 0 {
		return nil
	}
	if cv.srcRate == cv.dstRate {
		return mono
	}

	// Stitch the previous call's final sample onto the front so
	// interpolation can cross the chunk boundary.
	src := mono
	if cv.seen {
		src = append([]float32{cv.prev}, mono...)
	}
	step := cv.srcRate / cv.dstRate

	var out []float32
	pos := cv.pos
	for pos < float64(len(src)-1) {
		i := int(pos)
		frac := float32(pos - float64(i))
		out = append(out, src[i]+(src[i+1]-src[i])*frac)
		pos += step
	}
	cv.pos = pos - float64(len(src)-1)
	cv.prev = src[len(src)-1]
	cv.seen = true
	return out
}
