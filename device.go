package mixer

import (
	"errors"
	"fmt"
	"log"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/go-audio-mixer/backend"
	"github.com/tphakala/go-audio-mixer/internal/bs2b"
	"github.com/tphakala/go-audio-mixer/internal/effects"
	"github.com/tphakala/go-audio-mixer/internal/hrtf"
	"github.com/tphakala/go-audio-mixer/internal/panning"
	"github.com/tphakala/go-audio-mixer/internal/pipeline"
	"github.com/tphakala/go-audio-mixer/internal/resample"
	"github.com/tphakala/go-audio-mixer/internal/voice"
)

// Device is an output stream and the buffers and contexts rendered into
// it. Its methods are safe for concurrent use.
type Device struct {
	cfg    DeviceConfig
	engine EngineConfig
	log    *log.Logger

	backend  backend.Backend
	loopback *backend.Loopback
	format   backend.Format

	mu       sync.Mutex
	buffers  *idTable[*Buffer]
	contexts atomic.Pointer[[]*Context]
	closed   bool

	running   atomic.Bool
	connected atomic.Bool
	frames    atomic.Int64

	// mixCount is odd while a block is being mixed.
	mixCount atomic.Uint64
	renderMu sync.Mutex
	prioOnce sync.Once

	effects    atomic.Pointer[effects.Device]
	effectsGen atomic.Uint64
	post       atomic.Pointer[pipeline.Pipeline]

	// Mixer owned.
	dry        *panning.Bus
	realOut    *panning.Bus
	hrtfStore  *hrtf.Store
	hrtfDirect *hrtf.DirectState
	nfc        bool
	scratch    voice.Scratch
}

// renderer is what backends pull from, so a loopback device's own Render
// stays free for the application.
type renderer struct {
	d *Device
}

func (r renderer) Render(out []byte, frames int) { r.d.render(out, frames) }

func (r renderer) HandleDisconnect(reason string) { r.d.HandleDisconnect(reason) }

// OpenDevice opens b with cfg and returns a stopped device. A nil backend
// uses the null backend. The backend may adjust the frequency, sample type
// and period sizes; the device adopts what it reports.
func OpenDevice(cfg DeviceConfig, b backend.Backend) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b == nil {
		b = backend.NewNull()
	}

	want := backend.Format{
		Frequency:  cfg.Frequency,
		Channels:   cfg.Layout.Count(),
		Type:       cfg.OutputType,
		UpdateSize: cfg.UpdateSize,
		Periods:    cfg.Periods,
	}
	got, err := b.Open(want)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", b.Name(), err)
	}
	if got.Channels != want.Channels {
		_ = b.Close()
		return nil, fmt.Errorf("%w: %s backend offers %d channels, %v needs %d",
			ErrInvalidConfig, b.Name(), got.Channels, cfg.Layout, want.Channels)
	}
	cfg.Frequency = got.Frequency
	cfg.OutputType = got.Type
	cfg.UpdateSize = got.UpdateSize
	cfg.Periods = got.Periods

	d, err := newDevice(cfg, b, got)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return d, nil
}

// OpenLoopbackDevice returns a started device that renders only when the
// application calls Render or RenderSamples.
func OpenLoopbackDevice(cfg DeviceConfig) (*Device, error) {
	lb := backend.NewLoopback()
	d, err := OpenDevice(cfg, lb)
	if err != nil {
		return nil, err
	}
	d.loopback = lb
	if err := d.Start(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func newDevice(cfg DeviceConfig, b backend.Backend, f backend.Format) (*Device, error) {
	d := &Device{
		cfg:     cfg,
		engine:  newEngineConfig(cfg, DetectCapabilities()),
		log:     cfg.logger(),
		backend: b,
		format:  f,
		buffers: newIDTable[*Buffer](0),
		dry:     panning.NewAmbiBus(resample.BufferLineSize),
		realOut: panning.NewSpeakerBus(cfg.Layout, resample.BufferLineSize),
		nfc:     cfg.Layout == LayoutAmbi1 && cfg.NFCDistance > 0,
	}
	d.connected.Store(true)
	var none []*Context
	d.contexts.Store(&none)

	if cfg.HRTF == HRTFEnabled {
		if err := d.loadHRTF(); err != nil {
			d.log.Printf("HRTF disabled: %v", err)
		}
	}
	d.setEffectDevice()
	if err := d.buildPost(); err != nil {
		return nil, err
	}

	d.log.Printf("opened %s device: %d Hz %v %v, %d x %d frames, %s",
		b.Name(), f.Frequency, cfg.Layout, f.Type, f.Periods, f.UpdateSize, d.engine.Capabilities)
	return d, nil
}

// loadHRTF sets up binaural rendering. It needs stereo output.
func (d *Device) loadHRTF() error {
	if d.cfg.Layout != LayoutStereo {
		return fmt.Errorf("%v output is not stereo", d.cfg.Layout)
	}
	rate := uint32(d.format.Frequency)
	var (
		store *hrtf.Store
		err   error
	)
	if d.cfg.HRTFFile != "" {
		store, err = hrtf.LoadFile(d.cfg.HRTFFile)
	} else {
		store, err = hrtf.Builtin(rate)
	}
	if err != nil {
		return err
	}
	store = store.Resample(rate)

	d.hrtfStore = store
	d.hrtfDirect = hrtf.NewDirectState(store, resample.BufferLineSize)
	d.scratch.Hrtf = hrtf.NewMixer(store.IRSize, resample.BufferLineSize)
	d.engine.HRTF = true
	d.engine.HRTFName = store.Name
	d.log.Printf("using HRTF %q, %d-point responses", store.Name, store.IRSize)
	return nil
}

// effectDevice returns what effects need to know about the device.
func (d *Device) effectDevice() effects.Device {
	return *d.effects.Load()
}

func (d *Device) setEffectDevice() {
	boost := float32(math.Pow(10, float64(d.cfg.ReverbBoost)/20))
	d.effects.Store(&effects.Device{Frequency: d.format.Frequency, ReverbBoost: boost})
	d.effectsGen.Add(1)
}

// buildPost builds the post-mix chain from the engine settings.
func (d *Device) buildPost() error {
	crossfeed := bs2b.Level(d.engine.Crossfeed)
	if d.hrtfStore != nil {
		crossfeed = bs2b.Off
	}
	p, err := pipeline.Build(pipeline.Config{
		Channels:    len(d.realOut.Buffer),
		Frequency:   d.format.Frequency,
		Crossfeed:   crossfeed,
		Limiter:     d.engine.Limiter,
		ThresholdDB: pipeline.LimiterThreshold(d.format.Type.DitherBits()),
		DitherBits:  d.engine.DitherDepth,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	d.post.Store(p)
	if p.Len() > 0 {
		d.log.Printf("output stages: %v", p.Names())
	}
	return nil
}

// Start begins rendering through the backend.
func (d *Device) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.closed:
		return newError(InvalidOperation, "device closed")
	case !d.connected.Load():
		return wrapError(InvalidOperation, ErrDeviceDisconnected, "cannot start")
	case d.running.Load():
		return nil
	}
	if err := d.backend.Start(renderer{d}); err != nil {
		return fmt.Errorf("start %s backend: %w", d.backend.Name(), err)
	}
	d.running.Store(true)
	return nil
}

// Stop halts rendering. Sources keep their state.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return nil
	}
	d.running.Store(false)
	if err := d.backend.Stop(); err != nil {
		return fmt.Errorf("stop %s backend: %w", d.backend.Name(), err)
	}
	return nil
}

// Close destroys every context, stops the backend and releases it.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.running.Store(false)
	d.mu.Unlock()

	var errs []error
	if err := d.backend.Stop(); err != nil {
		errs = append(errs, err)
	}
	for _, c := range *d.contexts.Load() {
		c.Destroy()
	}
	if err := d.backend.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// HandleDisconnect marks the device lost. Every context gets a
// Disconnected event and, unless configured otherwise, its playing sources
// stop. Rendering produces silence from then on. Backends must not call it
// from inside Render.
func (d *Device) HandleDisconnect(reason string) {
	if !d.connected.CompareAndSwap(true, false) {
		return
	}
	d.log.Printf("device disconnected: %s", reason)
	for _, c := range *d.contexts.Load() {
		c.disconnected(reason)
	}
}

// Connected reports whether the device is still usable.
func (d *Device) Connected() bool {
	return d.connected.Load()
}

// ClockTime returns the amount of audio rendered so far.
func (d *Device) ClockTime() time.Duration {
	frames := d.frames.Load()
	sec := frames / int64(d.format.Frequency)
	rem := frames % int64(d.format.Frequency)
	return time.Duration(sec)*time.Second + time.Duration(rem)*time.Second/time.Duration(d.format.Frequency)
}

// Frequency returns the output sample rate.
func (d *Device) Frequency() int {
	return d.format.Frequency
}

// Layout returns the output channel configuration.
func (d *Device) Layout() Layout {
	return d.cfg.Layout
}

// OutputType returns the sample type written by Render.
func (d *Device) OutputType() OutputType {
	return d.format.Type
}

// HRTFEnabled reports whether output is rendered binaurally.
func (d *Device) HRTFEnabled() bool {
	return d.hrtfStore != nil
}

// Engine returns the mixer setup chosen when the device opened.
func (d *Device) Engine() EngineConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engine
}

// NewBuffer creates an empty buffer.
func (d *Device) NewBuffer() (*Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, newError(InvalidOperation, "device closed")
	}
	return d.buffers.add(func(id uint32) *Buffer {
		return &Buffer{dev: d, id: id}
	})
}

// DeleteBuffer removes b. A buffer still queued on a source or loaded in
// an effect slot cannot be deleted.
func (d *Device) DeleteBuffer(b *Buffer) error {
	if b == nil || b.dev != d {
		return newError(InvalidName, "buffer not on this device")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.buffers.get(b.id); !ok || cur != b {
		return newError(InvalidName, "buffer %d already deleted", b.id)
	}
	if b.inUse() {
		return wrapError(InvalidOperation, ErrBufferInUse, "buffer %d", b.id)
	}
	d.buffers.remove(b.id)
	return nil
}

// Buffer looks up a buffer by ID.
func (d *Device) Buffer(id uint32) (*Buffer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buffers.get(id)
}

// NewContext creates a context rendered by the device.
func (d *Device) NewContext(cfg ContextConfig) (*Context, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, newError(InvalidOperation, "device closed")
	}
	c := newContext(d, cfg)
	list := append(slices.Clone(*d.contexts.Load()), c)
	d.contexts.Store(&list)
	return c, nil
}

// removeContext drops c from the render list and waits until the mixer no
// longer uses it.
func (d *Device) removeContext(c *Context) {
	d.mu.Lock()
	list := slices.DeleteFunc(slices.Clone(*d.contexts.Load()), func(x *Context) bool {
		return x == c
	})
	d.contexts.Store(&list)
	d.mu.Unlock()
	d.waitForMix()
}

// waitForMix spins until no block is being mixed and returns the mix
// count it saw.
func (d *Device) waitForMix() uint64 {
	for {
		n := d.mixCount.Load()
		if n&1 == 0 {
			return n
		}
		runtimeYield()
	}
}

// ApplyRuntimeConfig applies the settings of fc that can change while the
// device runs: dither, the output limiter, crossfeed and reverb boost.
// Other keys are checked and logged but only take effect when a device is
// opened with them.
func (d *Device) ApplyRuntimeConfig(fc FileConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return newError(InvalidOperation, "device closed")
	}

	next := d.cfg
	if err := fc.Apply(&next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	if next.Frequency != d.cfg.Frequency || next.Layout != d.cfg.Layout || next.OutputType != d.cfg.OutputType ||
		next.UpdateSize != d.cfg.UpdateSize || next.Periods != d.cfg.Periods || next.Sends != d.cfg.Sends ||
		next.HRTF != d.cfg.HRTF || next.HRTFFile != d.cfg.HRTFFile || next.NFCDistance != d.cfg.NFCDistance {
		d.log.Printf("output format changes need the device to be reopened")
	}

	engine := d.engine
	engine.DitherDepth = ditherDepth(next.Dither, next.DitherDepth, d.format.Type)
	engine.Limiter = next.OutputLimiter
	engine.Crossfeed = next.Crossfeed
	post := engine.DitherDepth != d.engine.DitherDepth || engine.Limiter != d.engine.Limiter ||
		engine.Crossfeed != d.engine.Crossfeed
	boost := next.ReverbBoost != d.cfg.ReverbBoost

	d.cfg.Dither, d.cfg.DitherDepth = next.Dither, next.DitherDepth
	d.cfg.OutputLimiter = next.OutputLimiter
	d.cfg.Crossfeed = next.Crossfeed
	d.cfg.ReverbBoost = next.ReverbBoost
	d.engine.DitherDepth = engine.DitherDepth
	d.engine.Limiter = engine.Limiter
	d.engine.Crossfeed = engine.Crossfeed

	if post {
		if err := d.buildPost(); err != nil {
			return err
		}
	}
	if boost {
		d.setEffectDevice()
	}
	return nil
}
