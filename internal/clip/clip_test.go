package clip

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWAV writes a 16-bit file holding data (interleaved).
func writeWAV(t *testing.T, path string, rate, chans int, data []int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, rate, 16, chans, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: chans, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
}

func TestLoadWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWAV(t, path, 22050, 2, []int{0, 16384, -16384, 32767, 8192, -8192})

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tone.wav", c.Name)
	assert.Equal(t, 22050, c.Frequency)
	assert.Equal(t, 2, c.Channels)
	assert.Equal(t, 3, c.Frames())
	require.Len(t, c.Samples, 6)
	assert.InDelta(t, 0.5, c.Samples[1], 1e-6)
	assert.InDelta(t, -0.5, c.Samples[2], 1e-6)
	assert.InDelta(t, 0.25, c.Samples[4], 1e-6)
}

func TestDecodeRejectsUnknownExtension(t *testing.T) {
	_, err := Decode(bytes.NewReader(nil), ".flac")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeRejectsGarbageWAV(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("definitely not riff data")), ".wav")
	require.ErrorIs(t, err, ErrInvalidFile)
}

func TestLoadAllKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i, rate := range []int{8000, 16000, 44100} {
		p := filepath.Join(dir, string(rune('a'+i))+".wav")
		writeWAV(t, p, rate, 1, []int{1, 2, 3, 4})
		paths = append(paths, p)
	}

	clips, err := LoadAll(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, clips, 3)
	assert.Equal(t, 8000, clips[0].Frequency)
	assert.Equal(t, 16000, clips[1].Frequency)
	assert.Equal(t, 44100, clips[2].Frequency)
}

func TestLoadAllFailsOnMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ok.wav")
	writeWAV(t, path, 8000, 1, []int{0, 0})

	_, err := LoadAll(context.Background(), []string{path, filepath.Join(t.TempDir(), "missing.wav")})
	require.Error(t, err)
}

func TestBytesAreLittleEndianFloats(t *testing.T) {
	c := &Clip{Channels: 1, Samples: []float32{0.5, -1}}
	b := c.Bytes()
	require.Len(t, b, 8)
	assert.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(b)))
	assert.Equal(t, float32(-1), math.Float32frombits(binary.LittleEndian.Uint32(b[4:])))
}
