package encoder

import (
	"bytes"
	"encoding/binary"
)

// WAVBytes renders mono 16-bit PCM WAV from float32 samples, suitable for
// multipart upload to transcription APIs.
func WAVBytes(samples []float32, sampleRate int) []byte {
	pcm := Quantize(samples)
	dataSize := len(pcm) * 2

	var buf bytes.Buffer
	buf.Grow(44 + dataSize)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*Channels*BitsPerSample/8))
	binary.Write(&buf, binary.LittleEndian, uint16(Channels*BitsPerSample/8))
	binary.Write(&buf, binary.LittleEndian, uint16(BitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	binary.Write(&buf, binary.LittleEndian, pcm)

	return buf.Bytes()
}
