package mixer

import (
	"github.com/tphakala/go-audio-mixer/internal/convert"
	"github.com/tphakala/go-audio-mixer/internal/effects"
	"github.com/tphakala/go-audio-mixer/internal/freelist"
	"github.com/tphakala/go-audio-mixer/internal/panning"
	"github.com/tphakala/go-audio-mixer/internal/resample"
)

// slotProps is the effect slot snapshot handed to the mixer. Every
// snapshot carries the newest state, so one replaced before the mixer saw
// it never loses a state change.
type slotProps struct {
	gain        float32
	auxSendAuto bool
	target      *EffectSlot
	effectType  EffectType
	props       effects.Props
	state       effects.State
}

// slotParams is the mixer's working copy of a slot's settings.
type slotParams struct {
	gain        float32
	auxSendAuto bool
	target      *EffectSlot
	effectType  EffectType
	props       effects.Props
	state       effects.State

	// Reverb properties that shape the sends feeding this slot.
	roomRolloff         float32
	decayTime           float32
	decayLFRatio        float32
	decayHFRatio        float32
	decayHFLimit        bool
	airAbsorptionGainHF float32
}

// EffectSlot runs one effect on the signal that sources send to it, and
// feeds the result to the output or to another slot.
type EffectSlot struct {
	ctx *Context
	id  uint32

	// Guarded by ctx.mu.
	effectType  EffectType
	props       effects.Props
	gain        float32
	auxSendAuto bool
	target      *EffectSlot
	buffer      *Buffer
	refs        int
	dirty       bool
	state       effects.State

	update freelist.Slot[slotProps]

	// Mixer owned.
	mix slotParams
	wet *panning.Bus
}

func newEffectSlot(ctx *Context, id uint32) *EffectSlot {
	s := &EffectSlot{
		ctx:         ctx,
		id:          id,
		effectType:  EffectNull,
		props:       effects.DefaultProps(EffectNull),
		gain:        1,
		auxSendAuto: true,
		wet:         panning.NewAmbiBus(resample.BufferLineSize),
	}
	st := effects.New(EffectNull)
	st.DeviceUpdate(ctx.dev.effectDevice(), nil)
	s.mix = slotParams{
		gain:        1,
		auxSendAuto: true,
		effectType:  EffectNull,
		props:       s.props,
		state:       st,
	}
	s.state = st
	s.publish()
	return s
}

// ID returns the slot's identifier. The default slot has ID 0.
func (s *EffectSlot) ID() uint32 {
	return s.id
}

// SetEffect loads a copy of e into the slot; nil clears it. Later changes
// to e need another SetEffect to take effect.
func (s *EffectSlot) SetEffect(e *Effect) error {
	t, props := EffectNull, effects.DefaultProps(EffectNull)
	if e != nil {
		t, props = e.snapshot()
	}

	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	var st effects.State
	if t != s.effectType {
		st = s.newState(t)
	}
	s.effectType = t
	s.props = props
	c.slotChanged(s, st)
	return nil
}

// EffectType returns the type of the loaded effect.
func (s *EffectSlot) EffectType() EffectType {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.effectType
}

// SetGain sets the slot's output gain, 0 to 1.
func (s *EffectSlot) SetGain(g float32) error {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if !(g >= 0 && g <= 1) {
		return c.setError(newError(InvalidValue, "slot gain %g outside 0 to 1", g))
	}
	s.gain = g
	c.slotChanged(s, nil)
	return nil
}

// Gain returns the slot's output gain.
func (s *EffectSlot) Gain() float32 {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.gain
}

// SetAuxSendAuto controls whether sends to this slot are attenuated by
// the sending source's distance and cone.
func (s *EffectSlot) SetAuxSendAuto(on bool) error {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	s.auxSendAuto = on
	c.slotChanged(s, nil)
	return nil
}

// AuxSendAuto reports the auto send setting.
func (s *EffectSlot) AuxSendAuto() bool {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.auxSendAuto
}

// SetTarget routes the slot's output into t instead of the main mix. nil
// restores the main mix. A target that would feed back into s is rejected
// with ErrCycle.
func (s *EffectSlot) SetTarget(t *EffectSlot) error {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if t != nil {
		if t.ctx != c {
			return c.setError(newError(InvalidValue, "target slot %d belongs to another context", t.id))
		}
		for p := t; p != nil; p = p.target {
			if p == s {
				return c.setError(wrapError(InvalidOperation, ErrCycle, "slot %d targeting %d", s.id, t.id))
			}
		}
	}
	if s.target == t {
		return nil
	}
	if s.target != nil {
		s.target.refs--
	}
	if t != nil {
		t.refs++
	}
	s.target = t
	c.slotChanged(s, nil)
	c.publishSlots()
	return nil
}

// Target returns the slot this one feeds, or nil for the main mix.
func (s *EffectSlot) Target() *EffectSlot {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.target
}

// SetBuffer sets the impulse response used by the convolution effect. The
// buffer stays referenced until it is replaced or the slot is deleted.
func (s *EffectSlot) SetBuffer(b *Buffer) error {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if b != nil {
		if b.dev != c.dev {
			return c.setError(newError(InvalidName, "buffer %d belongs to another device", b.id))
		}
		b.mu.Lock()
		cb := b.callback != nil
		if !cb {
			b.refs++
		}
		b.mu.Unlock()
		if cb {
			return c.setError(newError(InvalidOperation, "callback buffer %d cannot be an impulse response", b.id))
		}
	}
	if s.buffer != nil {
		s.buffer.release()
	}
	s.buffer = b

	var st effects.State
	if s.effectType == EffectConvolution {
		st = s.newState(s.effectType)
	}
	c.slotChanged(s, st)
	return nil
}

// newState builds and sizes a state for t. The mixer has not seen it yet,
// so it can be set up here.
func (s *EffectSlot) newState(t EffectType) effects.State {
	st := effects.New(t)
	var ir *effects.IRBuffer
	if t == EffectConvolution && s.buffer != nil {
		ir = s.buffer.impulseResponse()
	}
	st.DeviceUpdate(s.ctx.dev.effectDevice(), ir)
	return st
}

// publish hands the current settings to the mixer. Callers hold ctx.mu.
func (s *EffectSlot) publish() {
	n := s.ctx.slotFree.Get()
	n.Value = slotProps{
		gain:        s.gain,
		auxSendAuto: s.auxSendAuto,
		target:      s.target,
		effectType:  s.effectType,
		props:       s.props,
		state:       s.state,
	}
	s.dirty = false
	s.update.Publish(n, &s.ctx.slotFree)
}

// depth is the number of slots between s and the main mix.
func (s *EffectSlot) depth() int {
	d := 0
	for p := s.target; p != nil; p = p.target {
		d++
	}
	return d
}

// applyUpdate takes a pending snapshot on the mixer goroutine. It reports
// whether anything changed.
func (s *EffectSlot) applyUpdate() bool {
	n := s.update.Take()
	if n == nil {
		return false
	}
	p := &n.Value
	m := &s.mix
	m.gain = p.gain
	m.auxSendAuto = p.auxSendAuto
	m.target = p.target
	m.effectType = p.effectType
	m.props = p.props
	if p.state != nil && p.state != m.state {
		m.state = p.state
	}

	if r, ok := p.props.(effects.ReverbProps); ok {
		m.roomRolloff = r.RoomRolloffFactor
		m.decayTime = r.DecayTime
		m.decayLFRatio = r.DecayLFRatio
		m.decayHFRatio = r.DecayHFRatio
		m.decayHFLimit = r.DecayHFLimit
		m.airAbsorptionGainHF = r.AirAbsorptionGainHF
	} else {
		m.roomRolloff = 0
		m.decayTime = 0
		m.decayLFRatio = 0
		m.decayHFRatio = 0
		m.decayHFLimit = false
		m.airAbsorptionGainHF = 1
	}

	*p = slotProps{}
	s.ctx.slotFree.Push(n)
	return true
}

// impulseResponse decodes the buffer to float lines for the convolution
// effect. Callback buffers have no fixed response.
func (b *Buffer) impulseResponse() *effects.IRBuffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.callback != nil || b.frames == 0 {
		return nil
	}
	n := b.format.Channels.Count()
	lines := make([][]float32, n)
	for c := range lines {
		lines[c] = make([]float32, b.frames)
		convert.LoadSamples(lines[c], b.data, b.format.Type, c, n, 0)
	}
	return &effects.IRBuffer{
		Samples:   lines,
		Frequency: b.frequency,
		Channels:  b.format.Channels,
	}
}
