package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Format describes decoded PCM audio.
type Format struct {
	SampleRate int // samples per second, e.g. 22050
	Channels   int // 1 = mono, 2 = stereo
	BitDepth   int // bits per sample; only 16 is supported
}

// ErrNotWAV is returned by [DecodeWAV] when the payload does not start with a
// RIFF/WAVE header.
var ErrNotWAV = errors.New("audio: payload is not a WAV file")

const pcmFormatCode = 1

// DecodeWAV parses a RIFF/WAVE payload and returns its format and raw PCM
// samples. Only uncompressed 16-bit PCM is accepted; anything else is a decode
// error. The returned slice aliases wav.
func DecodeWAV(wav []byte) (Format, []byte, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return Format{}, nil, ErrNotWAV
	}

	var (
		f       Format
		data    []byte
		haveFmt bool
	)

	// Walk the chunk list. Chunks are 8 bytes of header (id + size) followed
	// by size bytes of payload, padded to an even offset.
	for off := 12; off+8 <= len(wav); {
		id := string(wav[off : off+4])
		size := int(binary.LittleEndian.Uint32(wav[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(wav) {
			return Format{}, nil, fmt.Errorf("audio: truncated %q chunk", id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Format{}, nil, errors.New("audio: short fmt chunk")
			}
			code := binary.LittleEndian.Uint16(wav[body : body+2])
			if code != pcmFormatCode {
				return Format{}, nil, fmt.Errorf("audio: unsupported format code %d (want PCM)", code)
			}
			f.Channels = int(binary.LittleEndian.Uint16(wav[body+2 : body+4]))
			f.SampleRate = int(binary.LittleEndian.Uint32(wav[body+4 : body+8]))
			f.BitDepth = int(binary.LittleEndian.Uint16(wav[body+14 : body+16]))
			haveFmt = true
		case "data":
			data = wav[body : body+size]
		}

		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	if !haveFmt {
		return Format{}, nil, errors.New("audio: missing fmt chunk")
	}
	if data == nil {
		return Format{}, nil, errors.New("audio: missing data chunk")
	}
	if f.BitDepth != 16 {
		return Format{}, nil, fmt.Errorf("audio: unsupported bit depth %d (want 16)", f.BitDepth)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return Format{}, nil, fmt.Errorf("audio: unsupported channel count %d", f.Channels)
	}
	if f.SampleRate <= 0 {
		return Format{}, nil, fmt.Errorf("audio: invalid sample rate %d", f.SampleRate)
	}
	return f, data, nil
}

// EncodeWAV wraps raw 16-bit PCM samples in a minimal RIFF/WAVE container.
// Used by tests and by collaborator mocks that need playable fixtures.
func EncodeWAV(f Format, pcm []byte) []byte {
	blockAlign := f.Channels * 2
	byteRate := f.SampleRate * blockAlign

	buf := make([]byte, 0, 44+len(pcm))
	le := binary.LittleEndian

	u32 := func(v uint32) []byte { b := make([]byte, 4); le.PutUint32(b, v); return b }
	u16 := func(v uint16) []byte { b := make([]byte, 2); le.PutUint16(b, v); return b }

	buf = append(buf, "RIFF"...)
	buf = append(buf, u32(uint32(36+len(pcm)))...)
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = append(buf, u32(16)...)
	buf = append(buf, u16(pcmFormatCode)...)
	buf = append(buf, u16(uint16(f.Channels))...)
	buf = append(buf, u32(uint32(f.SampleRate))...)
	buf = append(buf, u32(uint32(byteRate))...)
	buf = append(buf, u16(uint16(blockAlign))...)
	buf = append(buf, u16(16)...)
	buf = append(buf, "data"...)
	buf = append(buf, u32(uint32(len(pcm)))...)
	buf = append(buf, pcm...)
	return buf
}
