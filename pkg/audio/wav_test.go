package audio_test

import (
	"errors"
	"testing"

	"github.com/voxboard/voxboard/pkg/audio"
)

func TestDecodeWAV_RoundTrip(t *testing.T) {
	t.Parallel()
	f := audio.Format{SampleRate: 22050, Channels: 1, BitDepth: 16}
	pcm := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}

	got, data, err := audio.DecodeWAV(audio.EncodeWAV(f, pcm))
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if got != f {
		t.Errorf("format = %+v, want %+v", got, f)
	}
	if string(data) != string(pcm) {
		t.Errorf("pcm = %v, want %v", data, pcm)
	}
}

func TestDecodeWAV_NotWAV(t *testing.T) {
	t.Parallel()
	_, _, err := audio.DecodeWAV([]byte("definitely not audio"))
	if !errors.Is(err, audio.ErrNotWAV) {
		t.Errorf("err = %v, want ErrNotWAV", err)
	}
}

func TestDecodeWAV_Truncated(t *testing.T) {
	t.Parallel()
	f := audio.Format{SampleRate: 22050, Channels: 1, BitDepth: 16}
	wav := audio.EncodeWAV(f, make([]byte, 64))
	if _, _, err := audio.DecodeWAV(wav[:50]); err == nil {
		t.Error("expected error for truncated payload, got nil")
	}
}

func TestDecodeWAV_RejectsNonPCM(t *testing.T) {
	t.Parallel()
	f := audio.Format{SampleRate: 22050, Channels: 1, BitDepth: 16}
	wav := audio.EncodeWAV(f, make([]byte, 4))
	wav[20] = 3 // IEEE float format code
	if _, _, err := audio.DecodeWAV(wav); err == nil {
		t.Error("expected error for non-PCM format, got nil")
	}
}

func TestDecodeWAV_StereoAccepted(t *testing.T) {
	t.Parallel()
	f := audio.Format{SampleRate: 48000, Channels: 2, BitDepth: 16}
	got, _, err := audio.DecodeWAV(audio.EncodeWAV(f, make([]byte, 8)))
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if got.Channels != 2 {
		t.Errorf("channels = %d, want 2", got.Channels)
	}
}
