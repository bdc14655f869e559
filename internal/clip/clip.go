// Package clip decodes audio files into float samples for the command line
// tools. WAV, AIFF, MP3 and Ogg Vorbis are recognized by file extension.
package clip

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrUnsupportedFormat is returned for unknown file extensions.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrInvalidFile is returned when a file does not parse as its format.
	ErrInvalidFile = errors.New("invalid audio file")
)

// Clip is a decoded file: interleaved samples in [-1, 1].
type Clip struct {
	Name      string
	Frequency int
	Channels  int
	Samples   []float32
}

// Frames returns the length of the clip in sample frames.
func (c *Clip) Frames() int {
	if c.Channels == 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Bytes returns the samples as little-endian 32-bit floats.
func (c *Clip) Bytes() []byte {
	out := make([]byte, 4*len(c.Samples))
	for i, v := range c.Samples {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

// Load decodes the file at path.
func Load(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("clip: %w", err)
	}
	defer func() { _ = f.Close() }()

	c, err := Decode(f, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("clip %s: %w", path, err)
	}
	c.Name = filepath.Base(path)
	return c, nil
}

// LoadAll decodes paths concurrently and returns the clips in the same
// order. The first failure cancels the rest.
func LoadAll(ctx context.Context, paths []string) ([]*Clip, error) {
	clips := make([]*Clip, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := Load(p)
			if err != nil {
				return err
			}
			clips[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return clips, nil
}

// Decode reads a whole stream whose format is given by ext, such as ".wav".
func Decode(r io.ReadSeeker, ext string) (*Clip, error) {
	switch strings.ToLower(ext) {
	case ".wav", ".wave":
		return decodeWAV(r)
	case ".aif", ".aiff":
		return decodeAIFF(r)
	case ".mp3":
		return decodeMP3(r)
	case ".ogg", ".oga":
		return decodeOgg(r)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

func decodeWAV(r io.ReadSeeker) (*Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a WAV file", ErrInvalidFile)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	return fromIntBuffer(buf, int(dec.BitDepth), true)
}

func decodeAIFF(r io.ReadSeeker) (*Clip, error) {
	dec := aiff.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not an AIFF file", ErrInvalidFile)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode aiff: %w", err)
	}
	return fromIntBuffer(buf, int(dec.BitDepth), false)
}

// fromIntBuffer scales integer PCM of the given depth to [-1, 1]. 8-bit WAV
// data is unsigned; AIFF stores it signed.
func fromIntBuffer(buf *audio.IntBuffer, bits int, unsigned8 bool) (*Clip, error) {
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: missing format", ErrInvalidFile)
	}
	if bits <= 0 {
		bits = buf.SourceBitDepth
	}
	if bits <= 0 || bits > 32 {
		return nil, fmt.Errorf("%w: %d-bit samples", ErrInvalidFile, bits)
	}

	scale := float32(1 / math.Ldexp(1, bits-1))
	var offset int
	if bits == 8 && unsigned8 {
		offset = 128
	}
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v-offset) * scale
	}
	return &Clip{
		Frequency: buf.Format.SampleRate,
		Channels:  buf.Format.NumChannels,
		Samples:   samples,
	}, nil
}

func decodeMP3(r io.Reader) (*Clip, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	// go-mp3 always produces 16-bit little-endian stereo.
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	data := raw.Bytes()
	samples := make([]float32, len(data)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(data[2*i:]))) / 32768
	}
	return &Clip{Frequency: dec.SampleRate(), Channels: 2, Samples: samples}, nil
}

func decodeOgg(r io.Reader) (*Clip, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decode ogg: %w", err)
	}
	return &Clip{Frequency: format.SampleRate, Channels: format.Channels, Samples: samples}, nil
}
