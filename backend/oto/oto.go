// Package oto plays a mixing device through ebitengine/oto.
//
// oto allows a single context per process, so a process can have at most
// one open Backend from this package at a time.
package oto

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/tphakala/go-audio-mixer/backend"
)

// ErrContextInUse is returned when a second backend is opened.
var ErrContextInUse = errors.New("oto: context already open in this process")

var (
	ctxMu   sync.Mutex
	ctxOpen bool
	shared  *oto.Context
	sharedF backend.Format
)

// Backend is live output through the platform audio API.
type Backend struct {
	mu     sync.Mutex
	ctx    *oto.Context
	player *oto.Player
	format backend.Format
	reader *reader
}

// New returns an unopened backend.
func New() *Backend {
	return &Backend{}
}

func (b *Backend) Name() string { return "oto" }

// otoFormat maps a device sample type to one oto can play. Types oto lacks
// fall back to float.
func otoFormat(t backend.SampleType) (oto.Format, backend.SampleType) {
	switch t {
	case backend.Uint8, backend.Int8:
		return oto.FormatUnsignedInt8, backend.Uint8
	case backend.Int16, backend.Uint16:
		return oto.FormatSignedInt16LE, backend.Int16
	default:
		return oto.FormatFloat32LE, backend.Float32
	}
}

// Open creates the oto context. oto plays mono or stereo, so more channels
// are reduced to stereo and the device adopts that.
func (b *Backend) Open(want backend.Format) (backend.Format, error) {
	if err := want.Validate(); err != nil {
		return backend.Format{}, err
	}
	f := want
	f.Channels = min(f.Channels, 2)
	of, t := otoFormat(f.Type)
	f.Type = t

	ctxMu.Lock()
	defer ctxMu.Unlock()
	if ctxOpen {
		return backend.Format{}, ErrContextInUse
	}
	if shared == nil {
		latency := time.Duration(f.UpdateSize*f.Periods) * time.Second / time.Duration(f.Frequency)
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   f.Frequency,
			ChannelCount: f.Channels,
			Format:       of,
			BufferSize:   latency,
		})
		if err != nil {
			return backend.Format{}, fmt.Errorf("oto: %w", err)
		}
		<-ready
		shared, sharedF = ctx, f
	} else if sharedF.Frequency != f.Frequency || sharedF.Channels != f.Channels || sharedF.Type != f.Type {
		// The process-wide context cannot be recreated with another format.
		f = sharedF
	}
	ctxOpen = true

	b.mu.Lock()
	b.ctx = shared
	b.format = f
	b.mu.Unlock()
	return f, nil
}

// Start creates a player pulling from r.
func (b *Backend) Start(r backend.Renderer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil {
		return backend.ErrNotOpen
	}
	if b.player != nil {
		return backend.ErrRunning
	}
	b.reader = &reader{r: r, frameSize: b.format.FrameSize()}
	b.player = b.ctx.NewPlayer(b.reader)
	b.player.SetBufferSize(b.format.UpdateSize * b.format.Periods * b.format.FrameSize())
	b.player.Play()
	return nil
}

// Stop closes the player. A player error seen while playing is reported
// as a disconnect.
func (b *Backend) Stop() error {
	b.mu.Lock()
	p, rd := b.player, b.reader
	b.player, b.reader = nil, nil
	b.mu.Unlock()
	if p == nil {
		return nil
	}
	if err := p.Err(); err != nil {
		rd.r.HandleDisconnect(err.Error())
	}
	return p.Close()
}

// Close stops playback and releases the context for another backend.
func (b *Backend) Close() error {
	err := b.Stop()
	ctxMu.Lock()
	ctxOpen = false
	ctxMu.Unlock()
	b.mu.Lock()
	b.ctx = nil
	b.mu.Unlock()
	return err
}

// reader adapts a Renderer to the io.Reader oto pulls from.
type reader struct {
	r         backend.Renderer
	frameSize int
}

func (rd *reader) Read(p []byte) (int, error) {
	frames := len(p) / rd.frameSize
	if frames == 0 {
		return 0, nil
	}
	rd.r.Render(p, frames)
	return frames * rd.frameSize, nil
}
