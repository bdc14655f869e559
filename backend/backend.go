// Package backend defines how a mixing device reaches an audio sink, and
// provides the sinks that need no platform audio API: a timer-driven null
// output, a WAV file writer and a loopback that the application pulls from.
//
// A backend owns the thread that pulls audio. It asks its Renderer for a
// period of frames at a time and reports fatal stream errors through
// HandleDisconnect.
package backend

import (
	"errors"
	"fmt"

	"github.com/tphakala/go-audio-mixer/internal/convert"
)

var (
	// ErrNotOpen is returned when a backend is started before Open.
	ErrNotOpen = errors.New("backend: not open")
	// ErrRunning is returned when a backend is started twice.
	ErrRunning = errors.New("backend: already running")
	// ErrFormat is returned when a backend cannot serve a format.
	ErrFormat = errors.New("backend: unsupported format")
)

// SampleType is the sample encoding the device writes.
type SampleType = convert.DeviceType

// Output sample types.
const (
	Int8    = convert.DevByte
	Uint8   = convert.DevUByte
	Int16   = convert.DevShort
	Uint16  = convert.DevUShort
	Int32   = convert.DevInt
	Uint32  = convert.DevUInt
	Float32 = convert.DevFloat
)

// Format describes the stream a device renders.
type Format struct {
	Frequency  int
	Channels   int
	Type       SampleType
	UpdateSize int // frames per period
	Periods    int
}

// FrameSize returns the bytes of one interleaved frame.
func (f Format) FrameSize() int {
	return f.Channels * f.Type.Size()
}

// Validate checks that f describes a usable stream.
func (f Format) Validate() error {
	switch {
	case f.Frequency <= 0:
		return fmt.Errorf("%w: frequency %d", ErrFormat, f.Frequency)
	case f.Channels <= 0:
		return fmt.Errorf("%w: %d channels", ErrFormat, f.Channels)
	case !f.Type.Valid():
		return fmt.Errorf("%w: sample type %v", ErrFormat, f.Type)
	case f.UpdateSize <= 0 || f.Periods <= 0:
		return fmt.Errorf("%w: %d periods of %d frames", ErrFormat, f.Periods, f.UpdateSize)
	}
	return nil
}

// Renderer produces audio for a backend.
type Renderer interface {
	// Render writes frames interleaved frames in the negotiated format to
	// out.
	Render(out []byte, frames int)
	// HandleDisconnect reports that the stream failed and cannot recover.
	HandleDisconnect(reason string)
}

// Backend is an audio sink.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string
	// Open prepares the sink for want and returns the format it will
	// actually use, which the device adopts.
	Open(want Format) (Format, error)
	// Start begins pulling audio from r.
	Start(r Renderer) error
	// Stop halts pulling; Start may be called again.
	Stop() error
	// Close releases the sink.
	Close() error
}
