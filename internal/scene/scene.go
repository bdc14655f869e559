// Package scene sets up the demo scenes of the command line tools: decoded
// clips placed around the listener, optionally orbiting it, with an
// environment reverb on the default effect slot.
package scene

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mixer "github.com/tphakala/go-audio-mixer"
	"github.com/tphakala/go-audio-mixer/internal/clip"
)

// ErrPlacement is returned for a malformed clip placement.
var ErrPlacement = errors.New("invalid placement")

// Placement is a clip path with its position in listener space.
type Placement struct {
	Path     string
	Position [3]float32
}

// ParsePlacement parses "path" or "path@x,y,z". A bare path plays in
// front of the listener.
func ParsePlacement(s string) (Placement, error) {
	p := Placement{Path: s, Position: [3]float32{0, 0, -1}}
	at := strings.LastIndexByte(s, '@')
	if at < 0 {
		return p, nil
	}
	p.Path = s[:at]
	if p.Path == "" {
		return Placement{}, fmt.Errorf("%w: %q has no path", ErrPlacement, s)
	}
	parts := strings.Split(s[at+1:], ",")
	if len(parts) != 3 {
		return Placement{}, fmt.Errorf("%w: %q wants x,y,z", ErrPlacement, s)
	}
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return Placement{}, fmt.Errorf("%w: %q: %v", ErrPlacement, s, err)
		}
		p.Position[i] = float32(v)
	}
	return p, nil
}

// Options controls how a scene plays.
type Options struct {
	// Reverb names an environment preset for the default slot; empty
	// leaves the slot without an effect.
	Reverb string
	// Loop repeats every clip until the scene is closed.
	Loop bool
	// Orbit turns every source around the listener at this many radians
	// per second. 0 keeps them still.
	Orbit float32
	// Pitch scales the playback rate of every clip.
	Pitch float32
}

// Scene owns the context, buffers and sources of one run.
type Scene struct {
	dev     *mixer.Device
	ctx     *mixer.Context
	buffers []*mixer.Buffer
	sources []*mixer.Source
	places  []Placement
	orbit   float32

	playing  atomic.Int32
	done     chan struct{}
	doneOnce sync.Once
}

// channelsFor maps a clip's channel count to a buffer channel layout.
func channelsFor(n int) (mixer.Channels, error) {
	switch n {
	case 1:
		return mixer.ChannelsMono, nil
	case 2:
		return mixer.ChannelsStereo, nil
	case 4:
		return mixer.ChannelsQuad, nil
	case 6:
		return mixer.Channels51, nil
	case 7:
		return mixer.Channels61, nil
	case 8:
		return mixer.Channels71, nil
	}
	return 0, fmt.Errorf("unsupported channel count %d", n)
}

// Build loads clips into buffers and creates one source per placement on a
// new context of dev. clips and places are matched by index.
func Build(dev *mixer.Device, clips []*clip.Clip, places []Placement, opts Options) (sc *Scene, err error) {
	if len(clips) != len(places) {
		return nil, fmt.Errorf("scene: %d clips for %d placements", len(clips), len(places))
	}
	ctx, err := dev.NewContext(mixer.DefaultContextConfig())
	if err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	built := &Scene{
		dev:    dev,
		ctx:    ctx,
		places: places,
		orbit:  opts.Orbit,
		done:   make(chan struct{}),
	}
	// The early returns below clear sc, so close through built.
	defer func() {
		if err != nil {
			_ = built.Close()
		}
	}()
	sc = built

	if opts.Reverb != "" {
		if err := sc.setReverb(opts.Reverb); err != nil {
			return nil, err
		}
	}

	ctx.SetEventCallback(mixer.MaskSourceStateChanged, sc.onEvent)

	pitch := opts.Pitch
	if pitch == 0 {
		pitch = 1
	}
	for i, c := range clips {
		chans, err := channelsFor(c.Channels)
		if err != nil {
			return nil, fmt.Errorf("scene: %s: %w", c.Name, err)
		}
		buf, err := dev.NewBuffer()
		if err != nil {
			return nil, fmt.Errorf("scene: %w", err)
		}
		sc.buffers = append(sc.buffers, buf)
		format := mixer.Format{Channels: chans, Type: mixer.SampleFloat32}
		if err := buf.SetData(format, c.Bytes(), c.Frequency); err != nil {
			return nil, fmt.Errorf("scene: %s: %w", c.Name, err)
		}

		src, err := ctx.NewSource()
		if err != nil {
			return nil, fmt.Errorf("scene: %w", err)
		}
		sc.sources = append(sc.sources, src)
		pos := places[i].Position
		if err := errors.Join(
			src.SetBuffer(buf),
			src.SetPosition(pos[0], pos[1], pos[2]),
			src.SetLooping(opts.Loop),
			src.SetPitch(pitch),
		); err != nil {
			return nil, fmt.Errorf("scene: %s: %w", c.Name, err)
		}
	}
	return sc, nil
}

func (sc *Scene) setReverb(name string) error {
	preset, ok := mixer.ReverbPreset(name)
	if !ok {
		return fmt.Errorf("scene: unknown reverb preset %q", name)
	}
	slot := sc.ctx.DefaultEffectSlot()
	if slot == nil {
		return errors.New("scene: context has no default slot")
	}
	e, err := mixer.NewEffect(mixer.EffectEAXReverb)
	if err != nil {
		return err
	}
	if err := e.LoadReverbPreset(preset); err != nil {
		return fmt.Errorf("scene: reverb %s: %w", name, err)
	}
	return slot.SetEffect(e)
}

func (sc *Scene) onEvent(ev mixer.Event) {
	if ev.Type != mixer.EventSourceStateChanged || ev.State != mixer.Stopped {
		return
	}
	if sc.playing.Add(-1) <= 0 {
		sc.doneOnce.Do(func() { close(sc.done) })
	}
}

// Context returns the scene's context.
func (sc *Scene) Context() *mixer.Context {
	return sc.ctx
}

// Sources returns the scene's sources in placement order.
func (sc *Scene) Sources() []*mixer.Source {
	return sc.sources
}

// Play starts every source in the same mixer update.
func (sc *Scene) Play() error {
	if len(sc.sources) == 0 {
		sc.doneOnce.Do(func() { close(sc.done) })
		return nil
	}
	sc.playing.Store(int32(len(sc.sources)))
	sc.ctx.DeferUpdates()
	defer sc.ctx.ProcessUpdates()
	for _, s := range sc.sources {
		if err := s.Play(); err != nil {
			return fmt.Errorf("scene: source %d: %w", s.ID(), err)
		}
	}
	return nil
}

// Done is closed once every source has stopped on its own. Looping scenes
// never finish.
func (sc *Scene) Done() <-chan struct{} {
	return sc.done
}

// Update moves orbiting sources to where they are after elapsed time and
// sets their velocity to match, so Doppler follows the motion.
func (sc *Scene) Update(elapsed time.Duration) error {
	if sc.orbit == 0 {
		return nil
	}
	t := elapsed.Seconds()
	w := float64(sc.orbit)
	sc.ctx.DeferUpdates()
	defer sc.ctx.ProcessUpdates()
	for i, s := range sc.sources {
		p := sc.places[i].Position
		x, y, z := rotateY(p, w*t)
		// Velocity is the derivative of the rotation.
		vx, _, vz := rotateY(p, w*t+math.Pi/2)
		if err := errors.Join(
			s.SetPosition(x, y, z),
			s.SetVelocity(float32(w)*vx, 0, float32(w)*vz),
		); err != nil {
			return fmt.Errorf("scene: source %d: %w", s.ID(), err)
		}
	}
	return nil
}

// rotateY turns p by a radians about the vertical axis.
func rotateY(p [3]float32, a float64) (x, y, z float32) {
	sin, cos := math.Sincos(a)
	px, pz := float64(p[0]), float64(p[2])
	return float32(px*cos + pz*sin), p[1], float32(pz*cos - px*sin)
}

// Close destroys the context and deletes the buffers.
func (sc *Scene) Close() error {
	sc.ctx.Destroy()
	var errs []error
	for _, b := range sc.buffers {
		errs = append(errs, sc.dev.DeleteBuffer(b))
	}
	return errors.Join(errs...)
}
