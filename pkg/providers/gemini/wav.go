package gemini

import (
	"bytes"
	"encoding/binary"
	"mime"
	"strconv"
	"strings"
)

const (
	defaultSampleRate = 24000
	pcmBitsPerSample  = 16
)

// isPCM reports whether a MIME type names raw linear PCM, the format speech
// models return ("audio/L16;codec=pcm;rate=24000" or "audio/pcm")
func isPCM(mimeType string) bool {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}
	mediaType = strings.ToLower(mediaType)
	return mediaType == "audio/l16" || mediaType == "audio/pcm"
}

// pcmSampleRate reads the rate parameter of a PCM MIME type
func pcmSampleRate(mimeType string) int {
	_, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return defaultSampleRate
	}
	rate, err := strconv.Atoi(params["rate"])
	if err != nil || rate <= 0 {
		return defaultSampleRate
	}
	return rate
}

// encodeWAV wraps little-endian 16-bit PCM samples in a RIFF/WAVE container
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	blockAlign := channels * pcmBitsPerSample / 8
	byteRate := sampleRate * blockAlign

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(pcmBitsPerSample))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
