// Package encoder turns captured float32 PCM into on-disk and on-wire audio
// formats: FLAC for diagnostic dumps, WAV for HTTP transcription uploads.
package encoder

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// Quantize converts normalized float32 samples to 16-bit PCM, clamping
// anything outside [-1, 1].
func Quantize(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		out[i] = int16(s * 32767)
	}
	return out
}
