package media

import (
	"encoding/binary"
	"time"
)

// DurationProber reports the playback length of a decoded payload.
// Returning ok=false leaves the message without duration metadata.
type DurationProber func(data []byte, mimeType string) (time.Duration, bool)

// probeWAVDuration reads the playback length out of a RIFF/WAVE
// header. Formats without a cheaply parseable container report
// unavailable and the message degrades to size/mime metadata only.
func probeWAVDuration(data []byte, mimeType string) (time.Duration, bool) {
	switch mimeType {
	case "audio/wav", "audio/x-wav", "audio/wave":
	default:
		return 0, false
	}

	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, false
	}

	var byteRate, dataSize uint32
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := binary.LittleEndian.Uint32(data[off+4 : off+8])
		body := off + 8

		switch id {
		case "fmt ":
			if body+12 <= len(data) {
				byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
			}
		case "data":
			dataSize = size
		}

		off = body + int(size)
		if size%2 == 1 {
			off++ // chunks are word-aligned
		}
	}

	if byteRate == 0 || dataSize == 0 {
		return 0, false
	}
	return time.Duration(float64(dataSize) / float64(byteRate) * float64(time.Second)), true
}
