package mixer

import (
	"math"

	"github.com/tphakala/go-audio-mixer/internal/voice"
)

// sendProps is one auxiliary send of a source snapshot.
type sendProps struct {
	slot   *EffectSlot
	filter pathFilter
}

// sourceProps is the source snapshot handed to the mixer.
type sourceProps struct {
	pitch         float32
	gain          float32
	minGain       float32
	maxGain       float32
	refDistance   float32
	maxDistance   float32
	rolloffFactor float32

	position  [3]float32
	velocity  [3]float32
	direction [3]float32
	orientAt  [3]float32
	orientUp  [3]float32

	innerAngle  float32
	outerAngle  float32
	outerGain   float32
	outerGainHF float32

	dopplerFactor       float32
	airAbsorptionFactor float32
	roomRolloffFactor   float32
	radius              float32
	stereoPan           [2]float32

	headRelative   bool
	directChannels bool
	spatialize     SpatializeMode
	distanceModel  DistanceModel
	resampler      Resampler

	dryGainHFAuto bool
	wetGainAuto   bool
	wetGainHFAuto bool

	direct pathFilter
	sends  [MaxSends]sendProps
}

func defaultSourceProps(r Resampler) sourceProps {
	p := sourceProps{
		pitch:         1,
		gain:          1,
		minGain:       0,
		maxGain:       1,
		refDistance:   1,
		maxDistance:   math.MaxFloat32,
		rolloffFactor: 1,
		orientAt:      [3]float32{0, 0, -1},
		orientUp:      [3]float32{0, 1, 0},
		innerAngle:    360,
		outerAngle:    360,
		outerGain:     0,
		outerGainHF:   1,
		dopplerFactor: 1,
		stereoPan:     [2]float32{math.Pi / 6, -math.Pi / 6},
		spatialize:    SpatializeAuto,
		distanceModel: DistanceInverseClamped,
		resampler:     r,
		dryGainHFAuto: true,
		wetGainAuto:   true,
		wetGainHFAuto: true,
		direct:        passFilter,
	}
	for i := range p.sends {
		p.sends[i].filter = passFilter
	}
	return p
}

// queueEntry is one buffer in a source's queue and the mixer item built
// for it.
type queueEntry struct {
	buf  *Buffer
	item *voice.BufferItem
	view bufferView
}

// offsetKind names the unit of a pending seek.
type offsetKind uint8

const (
	offsetNone offsetKind = iota
	offsetSamples
	offsetSeconds
	offsetBytes
)

// Source plays buffers with its own gain, pitch, position and effect
// sends. Its methods are safe for concurrent use.
type Source struct {
	ctx *Context
	id  uint32

	// Guarded by ctx.mu.
	p          sourceProps
	state      SourceState
	typ        SourceType
	looping    bool
	queue      []queueEntry
	voice      *mixVoice
	offsetKind offsetKind
	offset     float64
	dirty      bool
}

// ID returns the source's identifier.
func (s *Source) ID() uint32 {
	return s.id
}

// set validates and applies a property change and hands it to the mixer.
func (s *Source) set(fn func(p *sourceProps) error) error {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	p := s.p
	if err := fn(&p); err != nil {
		return c.setError(err)
	}
	s.p = p
	c.sourceChanged(s)
	return nil
}

func (s *Source) get() sourceProps {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.p
}

func checkRange(name string, v, lo, hi float32) error {
	if !(v >= lo && v <= hi) {
		return newError(InvalidValue, "%s %g outside %g to %g", name, v, lo, hi)
	}
	return nil
}

func checkMin(name string, v, lo float32) error {
	if !(v >= lo) || math.IsInf(float64(v), 1) {
		return newError(InvalidValue, "%s %g below %g", name, v, lo)
	}
	return nil
}

// setField stores v in the field picked by f unless check failed.
func (s *Source) setField(f func(p *sourceProps) *float32, v float32, check error) error {
	return s.set(func(p *sourceProps) error {
		if check != nil {
			return check
		}
		*f(p) = v
		return nil
	})
}

// SetGain sets the source gain, 0 or more.
func (s *Source) SetGain(g float32) error {
	return s.setField(func(p *sourceProps) *float32 { return &p.gain }, g, checkMin("gain", g, 0))
}

// SetPitch sets the playback rate multiplier, more than 0. Rates above the
// mixer's limit are clamped when mixed.
func (s *Source) SetPitch(v float32) error {
	return s.set(func(p *sourceProps) error {
		if !(v > 0) || !finite(v) {
			return newError(InvalidValue, "pitch %g must be positive", v)
		}
		p.pitch = v
		return nil
	})
}

// SetMinGain sets the lowest gain distance attenuation can reach, 0 to 1.
func (s *Source) SetMinGain(g float32) error {
	return s.setField(func(p *sourceProps) *float32 { return &p.minGain }, g, checkRange("min gain", g, 0, 1))
}

// SetMaxGain sets the highest gain distance attenuation can reach, 0 to 1.
func (s *Source) SetMaxGain(g float32) error {
	return s.setField(func(p *sourceProps) *float32 { return &p.maxGain }, g, checkRange("max gain", g, 0, 1))
}

// SetPosition moves the source.
func (s *Source) SetPosition(x, y, z float32) error {
	return s.set(func(p *sourceProps) error {
		v := [3]float32{x, y, z}
		if !finite3(v) {
			return newError(InvalidValue, "source position out of range")
		}
		p.position = v
		return nil
	})
}

// SetVelocity sets the velocity used for the Doppler shift.
func (s *Source) SetVelocity(x, y, z float32) error {
	return s.set(func(p *sourceProps) error {
		v := [3]float32{x, y, z}
		if !finite3(v) {
			return newError(InvalidValue, "source velocity out of range")
		}
		p.velocity = v
		return nil
	})
}

// SetDirection points the source for cone attenuation. A zero vector makes
// it omnidirectional.
func (s *Source) SetDirection(x, y, z float32) error {
	return s.set(func(p *sourceProps) error {
		v := [3]float32{x, y, z}
		if !finite3(v) {
			return newError(InvalidValue, "source direction out of range")
		}
		p.direction = v
		return nil
	})
}

// SetOrientation sets the "at" and "up" vectors that rotate B-Format
// buffers.
func (s *Source) SetOrientation(at, up [3]float32) error {
	return s.set(func(p *sourceProps) error {
		if !finite3(at) || !finite3(up) {
			return newError(InvalidValue, "source orientation out of range")
		}
		p.orientAt, p.orientUp = at, up
		return nil
	})
}

// SetRelative makes position, velocity and direction relative to the
// listener.
func (s *Source) SetRelative(on bool) error {
	return s.set(func(p *sourceProps) error {
		p.headRelative = on
		return nil
	})
}

// SetReferenceDistance sets the distance at which the source plays at full
// gain, 0 or more.
func (s *Source) SetReferenceDistance(d float32) error {
	return s.setField(func(p *sourceProps) *float32 { return &p.refDistance }, d, checkMin("reference distance", d, 0))
}

// SetMaxDistance sets the distance beyond which clamped models stop
// attenuating, 0 or more.
func (s *Source) SetMaxDistance(d float32) error {
	return s.set(func(p *sourceProps) error {
		if !(d >= 0) {
			return newError(InvalidValue, "max distance %g below 0", d)
		}
		p.maxDistance = d
		return nil
	})
}

// SetRolloffFactor scales distance attenuation, 0 or more.
func (s *Source) SetRolloffFactor(f float32) error {
	return s.setField(func(p *sourceProps) *float32 { return &p.rolloffFactor }, f, checkMin("rolloff factor", f, 0))
}

// SetCone sets the inner and outer cone angles in degrees (0 to 360) and the
// gain outside the outer cone (0 to 1).
func (s *Source) SetCone(inner, outer, outerGain float32) error {
	return s.set(func(p *sourceProps) error {
		if err := checkRange("cone inner angle", inner, 0, 360); err != nil {
			return err
		}
		if err := checkRange("cone outer angle", outer, 0, 360); err != nil {
			return err
		}
		if err := checkRange("cone outer gain", outerGain, 0, 1); err != nil {
			return err
		}
		p.innerAngle, p.outerAngle, p.outerGain = inner, outer, outerGain
		return nil
	})
}

// SetConeOuterGainHF sets the high-frequency gain outside the outer cone.
func (s *Source) SetConeOuterGainHF(g float32) error {
	return s.setField(func(p *sourceProps) *float32 { return &p.outerGainHF }, g, checkRange("cone outer gain HF", g, 0, 1))
}

// SetDopplerFactor scales the source's Doppler shift, 0 to 1.
func (s *Source) SetDopplerFactor(f float32) error {
	return s.setField(func(p *sourceProps) *float32 { return &p.dopplerFactor }, f, checkRange("doppler factor", f, 0, 1))
}

// SetAirAbsorptionFactor scales high-frequency air absorption, 0 to 10.
func (s *Source) SetAirAbsorptionFactor(f float32) error {
	return s.setField(func(p *sourceProps) *float32 { return &p.airAbsorptionFactor }, f, checkRange("air absorption factor", f, 0, 10))
}

// SetRoomRolloffFactor scales distance attenuation of the sends, 0 to 10.
func (s *Source) SetRoomRolloffFactor(f float32) error {
	return s.setField(func(p *sourceProps) *float32 { return &p.roomRolloffFactor }, f, checkRange("room rolloff factor", f, 0, 10))
}

// SetRadius gives the source a size, which spreads it over more of the
// sound field as the listener gets close.
func (s *Source) SetRadius(r float32) error {
	return s.setField(func(p *sourceProps) *float32 { return &p.radius }, r, checkMin("radius", r, 0))
}

// SetStereoAngles places the channels of a stereo buffer, in radians
// counter-clockwise from the front.
func (s *Source) SetStereoAngles(left, right float32) error {
	return s.set(func(p *sourceProps) error {
		if !finite(left) || !finite(right) {
			return newError(InvalidValue, "stereo angles out of range")
		}
		p.stereoPan = [2]float32{left, right}
		return nil
	})
}

// SetDirectChannels plays multichannel buffers straight to the matching
// output channels instead of panning them.
func (s *Source) SetDirectChannels(on bool) error {
	return s.set(func(p *sourceProps) error {
		p.directChannels = on
		return nil
	})
}

// SetSpatialize selects whether the source is positioned in 3D.
func (s *Source) SetSpatialize(m SpatializeMode) error {
	return s.set(func(p *sourceProps) error {
		if m < SpatializeOff || m > SpatializeAuto {
			return newError(InvalidEnum, "spatialize mode %d", int(m))
		}
		p.spatialize = m
		return nil
	})
}

// SetDistanceModel sets the model used when the context allows per-source
// models.
func (s *Source) SetDistanceModel(m DistanceModel) error {
	return s.set(func(p *sourceProps) error {
		if !m.Valid() {
			return newError(InvalidEnum, "distance model %d", int(m))
		}
		p.distanceModel = m
		return nil
	})
}

// SetResampler selects the interpolation kernel.
func (s *Source) SetResampler(r Resampler) error {
	return s.set(func(p *sourceProps) error {
		if !r.Valid() {
			return newError(InvalidEnum, "resampler %d", int(r))
		}
		p.resampler = r
		return nil
	})
}

// SetDirectFilter filters the dry path. The filter is copied.
func (s *Source) SetDirectFilter(f Filter) error {
	return s.set(func(p *sourceProps) error {
		if err := f.validate(); err != nil {
			return err
		}
		p.direct = f.resolve()
		return nil
	})
}

// SetSend routes auxiliary send i to slot through filter f. A nil slot
// disables the send.
func (s *Source) SetSend(i int, slot *EffectSlot, f Filter) error {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= c.dev.cfg.Sends {
		return c.setError(newError(InvalidValue, "send %d outside 0 to %d", i, c.dev.cfg.Sends-1))
	}
	if slot != nil && slot.ctx != c {
		return c.setError(newError(InvalidName, "slot %d belongs to another context", slot.id))
	}
	if err := f.validate(); err != nil {
		return c.setError(err)
	}
	old := s.p.sends[i].slot
	if old != slot {
		if old != nil {
			old.refs--
		}
		if slot != nil {
			slot.refs++
		}
	}
	s.p.sends[i] = sendProps{slot: slot, filter: f.resolve()}
	c.sourceChanged(s)
	return nil
}

// Send returns the slot of send i.
func (s *Source) Send(i int) *EffectSlot {
	p := s.get()
	if i < 0 || i >= MaxSends {
		return nil
	}
	return p.sends[i].slot
}

// SetDirectGainHFAuto applies the cone's high-frequency gain to the dry
// path.
func (s *Source) SetDirectGainHFAuto(on bool) error {
	return s.set(func(p *sourceProps) error {
		p.dryGainHFAuto = on
		return nil
	})
}

// SetSendGainAuto applies distance and cone attenuation to the sends.
func (s *Source) SetSendGainAuto(on bool) error {
	return s.set(func(p *sourceProps) error {
		p.wetGainAuto = on
		return nil
	})
}

// SetSendGainHFAuto applies the cone's high-frequency gain to the sends.
func (s *Source) SetSendGainHFAuto(on bool) error {
	return s.set(func(p *sourceProps) error {
		p.wetGainHFAuto = on
		return nil
	})
}

func (s *Source) Gain() float32              { return s.get().gain }
func (s *Source) Pitch() float32             { return s.get().pitch }
func (s *Source) MinGain() float32           { return s.get().minGain }
func (s *Source) MaxGain() float32           { return s.get().maxGain }
func (s *Source) Position() [3]float32       { return s.get().position }
func (s *Source) Velocity() [3]float32       { return s.get().velocity }
func (s *Source) Direction() [3]float32      { return s.get().direction }
func (s *Source) Relative() bool             { return s.get().headRelative }
func (s *Source) ReferenceDistance() float32 { return s.get().refDistance }
func (s *Source) MaxDistance() float32       { return s.get().maxDistance }
func (s *Source) RolloffFactor() float32     { return s.get().rolloffFactor }
func (s *Source) DopplerFactor() float32     { return s.get().dopplerFactor }
func (s *Source) AirAbsorptionFactor() float32 {
	return s.get().airAbsorptionFactor
}
func (s *Source) RoomRolloffFactor() float32 { return s.get().roomRolloffFactor }
func (s *Source) Radius() float32            { return s.get().radius }
func (s *Source) DirectChannels() bool       { return s.get().directChannels }
func (s *Source) Spatialize() SpatializeMode { return s.get().spatialize }
func (s *Source) DistanceModel() DistanceModel {
	return s.get().distanceModel
}
func (s *Source) Resampler() Resampler { return s.get().resampler }

// Cone returns the inner and outer angles and the outer gain.
func (s *Source) Cone() (inner, outer, outerGain float32) {
	p := s.get()
	return p.innerAngle, p.outerAngle, p.outerGain
}

// ConeOuterGainHF returns the high-frequency gain outside the cone.
func (s *Source) ConeOuterGainHF() float32 { return s.get().outerGainHF }

// StereoAngles returns the stereo channel angles in radians.
func (s *Source) StereoAngles() (left, right float32) {
	p := s.get()
	return p.stereoPan[0], p.stereoPan[1]
}

// Orientation returns the B-Format "at" and "up" vectors.
func (s *Source) Orientation() (at, up [3]float32) {
	p := s.get()
	return p.orientAt, p.orientUp
}

// Looping reports whether the source repeats its buffers.
func (s *Source) Looping() bool {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.looping
}

// Type reports whether the source plays one buffer or a queue.
func (s *Source) Type() SourceType {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.typ
}
