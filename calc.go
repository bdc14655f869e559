package mixer

import (
	"math"

	"github.com/tphakala/go-audio-mixer/internal/convert"
	"github.com/tphakala/go-audio-mixer/internal/filter"
	"github.com/tphakala/go-audio-mixer/internal/hrtf"
	"github.com/tphakala/go-audio-mixer/internal/mathutil"
	"github.com/tphakala/go-audio-mixer/internal/panning"
	"github.com/tphakala/go-audio-mixer/internal/resample"
	"github.com/tphakala/go-audio-mixer/internal/voice"
)

const (
	gainMixMax      = 1000 // +60dB
	airAbsorbGainHF = 0.99426
	reverbDecayGain = 0.001

	// Below this distance a source is treated as sitting on the listener.
	positionEpsilon = 1.0 / (1 << 16)
)

// pathGains is the gain of one signal path before it is turned into
// per-channel gains and shelf filters.
type pathGains struct {
	base  float32
	hf    float32
	hfRef float32
	lf    float32
	lfRef float32
}

func newPathGains(base float32, f pathFilter) pathGains {
	return pathGains{base: base, hf: f.gainHF, hfRef: f.hfRef, lf: f.gainLF, lfRef: f.lfRef}
}

func vec(v [3]float32, w float32) mathutil.Vector {
	return mathutil.Vector{v[0], v[1], v[2], w}
}

// apply takes a context snapshot and derives the listener transform.
func (m *mixState) apply(p *contextProps) {
	m.props = *p
	l := &p.listener

	at, up := vec(l.orientAt, 0), vec(l.orientUp, 0)
	at.Normalize()
	up.Normalize()
	right := at.Cross(up)
	right.Normalize()

	m.matrix = mathutil.Matrix{
		{right[0], up[0], -at[0], 0},
		{right[1], up[1], -at[1], 0},
		{right[2], up[2], -at[2], 0},
		{0, 0, 0, 1},
	}
	pos := m.matrix.MulVector(vec(l.position, 1))
	m.matrix.SetRow(3, -pos[0], -pos[1], -pos[2], 1)
	m.velocity = m.matrix.MulVector(vec(l.velocity, 0))
	m.speedOfSound = p.speedOfSound * p.dopplerVelocity
}

// calcSourceParams brings a voice's mixing parameters up to date. A voice
// is recalculated when its source published new settings or when force is
// set because the listener or an effect slot changed.
func (d *Device) calcSourceParams(c *Context, mv *mixVoice, force bool) {
	if n := mv.update.Take(); n != nil {
		mv.props = n.Value
		n.Value = sourceProps{}
		c.sourceFree.Push(n)
		mv.hasProps = true
	} else if !force || !mv.hasProps {
		return
	}
	if mv.SourceID() == 0 {
		return
	}

	p := &mv.props
	var slots [MaxSends]*EffectSlot
	for i := range d.cfg.Sends {
		s := p.sends[i].slot
		if s == nil && i == 0 {
			s = c.defaultSlot
		}
		if s != nil && s.mix.effectType == EffectNull {
			s = nil
		}
		slots[i] = s
		mv.Send[i].Buffer = nil
		if s != nil {
			mv.Send[i].Buffer = s.wet.Buffer
		}
	}

	attenuated := true
	switch {
	case p.directChannels && mv.Channels != convert.Mono && !mv.Channels.IsAmbisonic():
		attenuated = false
	case p.spatialize == SpatializeOff:
		attenuated = false
	case p.spatialize == SpatializeAuto && mv.Channels != convert.Mono:
		attenuated = false
	}
	if attenuated {
		d.calcAttenuated(c, mv, &slots)
	} else {
		d.calcNonAttenuated(c, mv, &slots)
	}
}

func (d *Device) calcNonAttenuated(c *Context, mv *mixVoice, slots *[MaxSends]*EffectSlot) {
	p := &mv.props
	listenerGain := c.mix.props.listener.gain

	base := mathutil.Clamp(p.gain, p.minGain, p.maxGain)
	dry := newPathGains(min(base*p.direct.gain*listenerGain, gainMixMax), p.direct)
	var wet [MaxSends]pathGains
	for i, s := range slots {
		if s == nil {
			continue
		}
		f := p.sends[i].filter
		wet[i] = newPathGains(min(base*f.gain*listenerGain, gainMixMax), f)
	}

	d.setStep(mv, p.pitch)
	d.calcPanning(c, mv, 0, 0, -1, 0, 0, dry, &wet, slots)
}

func (d *Device) calcAttenuated(c *Context, mv *mixVoice, slots *[MaxSends]*EffectSlot) {
	p := &mv.props
	ms := &c.mix
	listener := &ms.props.listener

	var roomRolloff, decay, decayLF, decayHF [MaxSends]float32
	for i, s := range slots {
		if s == nil {
			continue
		}
		if !s.mix.auxSendAuto {
			roomRolloff[i] = p.rolloffFactor
			continue
		}
		roomRolloff[i] = s.mix.roomRolloff + p.roomRolloffFactor
		decay[i] = s.mix.decayTime * speedOfSoundMetersPerSec
		decayLF[i] = decay[i] * s.mix.decayLFRatio
		decayHF[i] = decay[i] * s.mix.decayHFRatio
		if airAbs := s.mix.airAbsorptionGainHF; s.mix.decayHFLimit && airAbs < 1 {
			// Distance at which the high frequencies reach -60dB.
			absorb := float32(math.Log10(reverbDecayGain) / math.Log10(float64(airAbs)))
			decayHF[i] = min(absorb, decayHF[i])
		}
	}

	pos, vel, dir := vec(p.position, 1), vec(p.velocity, 0), vec(p.direction, 0)
	if !p.headRelative {
		pos = ms.matrix.MulVector(pos)
		vel = ms.matrix.MulVector(vel)
		dir = ms.matrix.MulVector(dir)
	} else {
		vel = vel.Add(ms.velocity)
	}
	directional := dir.Normalize() > 0
	toSource := mathutil.Vector{pos[0], pos[1], pos[2], 0}
	distance := toSource.Normalize()

	dryBase := p.gain
	var wetBase [MaxSends]float32
	for i := range wetBase {
		wetBase[i] = p.gain
	}

	model := ms.props.distanceModel
	if ms.props.sourceDistanceModel {
		model = p.distanceModel
	}
	ref, maxDist, rolloff := p.refDistance, p.maxDistance, p.rolloffFactor
	clamped := distance
	switch model {
	case DistanceInverseClamped, DistanceInverse:
		if model == DistanceInverseClamped {
			clamped = min(max(clamped, ref), maxDist)
			if maxDist < ref {
				break
			}
		}
		if !(ref > 0) {
			clamped = ref
			break
		}
		if dist := mathutil.Lerp(ref, clamped, rolloff); dist > 0 {
			dryBase *= ref / dist
		}
		for i := range wetBase {
			if dist := mathutil.Lerp(ref, clamped, roomRolloff[i]); dist > 0 {
				wetBase[i] *= ref / dist
			}
		}

	case DistanceLinearClamped, DistanceLinear:
		if model == DistanceLinearClamped {
			clamped = min(max(clamped, ref), maxDist)
			if maxDist < ref {
				break
			}
		}
		if maxDist == ref {
			clamped = ref
			break
		}
		attn := rolloff * (clamped - ref) / (maxDist - ref)
		dryBase *= max(1-attn, 0)
		for i := range wetBase {
			attn := roomRolloff[i] * (clamped - ref) / (maxDist - ref)
			wetBase[i] *= max(1-attn, 0)
		}

	case DistanceExponentClamped, DistanceExponent:
		if model == DistanceExponentClamped {
			clamped = min(max(clamped, ref), maxDist)
			if maxDist < ref {
				break
			}
		}
		if !(clamped > 0 && ref > 0) {
			clamped = ref
			break
		}
		ratio := float64(clamped / ref)
		dryBase *= float32(math.Pow(ratio, float64(-rolloff)))
		for i := range wetBase {
			wetBase[i] *= float32(math.Pow(ratio, float64(-roomRolloff[i])))
		}

	default:
		clamped = ref
	}

	coneGain, coneHF := float32(1), float32(1)
	if directional && p.innerAngle < 360 {
		cos := mathutil.Clamp(-dir.Dot(toSource), -1, 1)
		angle := mathutil.Rad2Deg(float32(math.Acos(float64(cos))) * 2)
		switch {
		case angle <= p.innerAngle:
		case angle < p.outerAngle:
			scale := (angle - p.innerAngle) / (p.outerAngle - p.innerAngle)
			coneGain = mathutil.Lerp(1, p.outerGain, scale)
			coneHF = mathutil.Lerp(1, p.outerGainHF, scale)
		default:
			coneGain, coneHF = p.outerGain, p.outerGainHF
		}
	}

	dryBase *= coneGain
	dryBase = min(mathutil.Clamp(dryBase, p.minGain, p.maxGain)*p.direct.gain*listener.gain, gainMixMax)
	dry := newPathGains(dryBase, p.direct)
	if p.dryGainHFAuto {
		dry.hf *= coneHF
	}

	var wet [MaxSends]pathGains
	for i, s := range slots {
		if s == nil {
			continue
		}
		base := wetBase[i]
		f := p.sends[i].filter
		if p.wetGainAuto {
			base *= coneGain
		}
		base = min(mathutil.Clamp(base, p.minGain, p.maxGain)*f.gain*listener.gain, gainMixMax)
		wet[i] = newPathGains(base, f)
		if p.wetGainHFAuto {
			wet[i].hf *= coneHF
		}
	}

	if clamped > ref && rolloff > 0 {
		meters := float64((clamped - ref) * rolloff * listener.metersPerUnit)
		if p.airAbsorptionFactor > 0 {
			hfattn := float32(math.Pow(airAbsorbGainHF, meters*float64(p.airAbsorptionFactor)))
			dry.hf *= hfattn
			for i := range wet {
				wet[i].hf *= hfattn
			}
		}
		if p.wetGainAuto {
			for i, s := range slots {
				if s == nil || !(decay[i] > 0) {
					continue
				}
				gain := float32(math.Pow(reverbDecayGain, meters/float64(decay[i])))
				wet[i].base *= gain
				if gain > 0 {
					hf := float32(math.Pow(reverbDecayGain, meters/float64(decayHF[i])))
					wet[i].hf *= min(hf/gain, 1)
					lf := float32(math.Pow(reverbDecayGain, meters/float64(decayLF[i])))
					wet[i].lf *= min(lf/gain, 1)
				}
			}
		}
	}

	pitch := p.pitch
	if df := p.dopplerFactor * ms.props.dopplerFactor; df > 0 {
		vss := vel.Dot(toSource) * -df
		vls := ms.velocity.Dot(toSource) * -df
		sos := ms.speedOfSound
		switch {
		case !(vls < sos):
			// The listener outruns the sound.
			pitch = 0
		case !(vss < sos):
			pitch = float32(math.Inf(1))
		default:
			pitch *= (sos - vls) / (sos - vss)
		}
	}
	d.setStep(mv, pitch)

	var spread float32
	switch {
	case p.radius > distance:
		spread = 2*math.Pi - distance/p.radius*math.Pi
	case distance > 0:
		spread = float32(math.Asin(float64(p.radius/distance))) * 2
	}

	d.calcPanning(c, mv, toSource[0], toSource[1], toSource[2], distance*listener.metersPerUnit, spread, dry, &wet, slots)
}

// setStep converts a pitch into the voice's fixed-point increment.
func (d *Device) setStep(mv *mixVoice, pitch float32) {
	pitch *= float32(mv.Frequency) / float32(d.format.Frequency)
	step := uint32(resample.MaxStep)
	if pitch <= resample.MaxPitch {
		step = max(uint32(pitch*resample.FracOne), 1)
	}
	mv.Step = step
	mv.Resampler.Prepare(mv.props.resampler, step)
}

func downmixGain(c convert.Channels) float32 {
	switch c {
	case convert.Stereo, convert.Rear:
		return 1.0 / 2
	case convert.Quad:
		return 1.0 / 4
	case convert.X51:
		return 1.0 / 5
	case convert.X61:
		return 1.0 / 6
	case convert.X71:
		return 1.0 / 7
	}
	return 1
}

// sourceRotation returns the rotation applied to a B-Format source from
// its orientation.
func sourceRotation(p *sourceProps, ms *mixState) mathutil.Matrix {
	at, up := vec(p.orientAt, 0), vec(p.orientUp, 0)
	if !p.headRelative {
		at = ms.matrix.MulVector(at)
		up = ms.matrix.MulVector(up)
	}
	at.Normalize()
	up.Normalize()
	right := at.Cross(up)
	right.Normalize()
	return mathutil.Matrix{
		{right[0], right[1], right[2], 0},
		{up[0], up[1], up[2], 0},
		{-at[0], -at[1], -at[2], 0},
		{0, 0, 0, 1},
	}
}

// panSends sets the send gains of one input channel.
func panSends(mv *mixVoice, ch int, coeffs panning.Coeffs, scale float32, wet *[MaxSends]pathGains, slots *[MaxSends]*EffectSlot) {
	for i, s := range slots {
		if s == nil {
			continue
		}
		s.wet.PanGains(coeffs, wet[i].base*scale, mv.Chans[ch].Wet[i].Gains.Target[:])
	}
}

// calcPanning turns path gains and a direction in listener space into
// per-channel target gains and filters. distance is in meters; zero means
// the voice is not positional and plays its channels at their own angles.
func (d *Device) calcPanning(c *Context, mv *mixVoice, x, y, z, distance, spread float32, dry pathGains, wet *[MaxSends]pathGains, slots *[MaxSends]*EffectSlot) {
	p := &mv.props
	freq := float32(d.format.Frequency)
	inputs := panning.InputMap(mv.Channels)
	downmix := downmixGain(mv.Channels)

	for i := range mv.Chans {
		ch := &mv.Chans[i]
		ch.Dry.Gains.Target = [voice.MaxOutputChannels]float32{}
		ch.Dry.Hrtf.Target = hrtf.Filter{}
		for s := range ch.Wet {
			ch.Wet[s].Gains.Target = [voice.MaxOutputChannels]float32{}
		}
	}
	mv.Flags &^= voice.HasHrtf | voice.HasNfc

	// Per-channel angles in radians for the non-positional case.
	var azimuth, elevation [voice.MaxChannels]float32
	for i, in := range inputs {
		azimuth[i] = mathutil.Deg2Rad(in.Azimuth)
		elevation[i] = mathutil.Deg2Rad(in.Elevation)
	}
	if mv.Channels == convert.Stereo {
		azimuth[0] = wrapRadians(-p.stereoPan[0])
		azimuth[1] = wrapRadians(-p.stereoPan[1])
	}

	positional := distance > positionEpsilon
	directChannels := p.directChannels && !mv.Channels.IsAmbisonic() && mv.Channels != convert.Mono && !d.realOut.Ambisonic

	setNfc := func(chans int) {
		if !d.nfc {
			return
		}
		var w0 float32
		if positional {
			w0 = speedOfSoundMetersPerSec / (max(distance, d.cfg.NFCDistance/4) * freq)
		}
		for i := range chans {
			mv.Chans[i].Dry.NFC.Adjust(w0)
		}
		mv.Flags |= voice.HasNfc
	}

	switch {
	case mv.Channels.IsAmbisonic():
		mv.Direct.Buffer = d.dry.Buffer
		if positional {
			// Only W is kept and placed like a point source.
			setNfc(1)
			coeffs := panning.CalcDirectionCoeffs(x, y, z, spread)
			_, scale := panning.FuMaChannel(0)
			d.dry.PanGains(coeffs, dry.base*scale, mv.Chans[0].Dry.Gains.Target[:])
			panSends(mv, 0, coeffs, scale, wet, slots)
			break
		}
		setNfc(len(mv.Chans))
		rot := sourceRotation(p, &c.mix)
		for i := range mv.Chans {
			acn, scale := panning.FuMaChannel(i)
			coeffs := panning.RotateFOA(panning.Unit(acn), &rot)
			d.dry.PanGains(coeffs, dry.base*scale, mv.Chans[i].Dry.Gains.Target[:])
			panSends(mv, i, coeffs, scale, wet, slots)
		}

	case directChannels:
		mv.Direct.Buffer = d.realOut.Buffer
		for i, in := range inputs {
			target := mv.Chans[i].Dry.Gains.Target[:]
			if idx := d.realOut.ChannelIndex(in.Channel); idx >= 0 {
				target[idx] = dry.base
			} else if in.Channel != panning.LFE {
				panning.ComputeDirectGains(d.realOut.Layout, azimuth[i], elevation[i], 0, dry.base, target)
			}
			panSends(mv, i, panning.CalcAngleCoeffs(azimuth[i], elevation[i], 0), 1, wet, slots)
		}

	case d.hrtfStore != nil:
		mv.Direct.Buffer = d.realOut.Buffer
		if positional {
			ev := float32(math.Asin(float64(mathutil.Clamp(y, -1, 1))))
			az := float32(math.Atan2(float64(x), float64(-z)))
			t := &mv.Chans[0].Dry.Hrtf.Target
			t.Delay = d.hrtfStore.Lookup(ev, az, distance, spread, &t.Coeffs)
			t.Gain = dry.base * downmix
			coeffs := panning.CalcDirectionCoeffs(x, y, z, spread)
			for i, in := range inputs {
				if in.Channel == panning.LFE {
					continue
				}
				if i > 0 {
					mv.Chans[i].Dry.Hrtf.Target = *t
				}
				panSends(mv, i, coeffs, downmix, wet, slots)
			}
		} else {
			inf := float32(math.Inf(1))
			for i, in := range inputs {
				if in.Channel == panning.LFE {
					continue
				}
				t := &mv.Chans[i].Dry.Hrtf.Target
				t.Delay = d.hrtfStore.Lookup(elevation[i], azimuth[i], inf, spread, &t.Coeffs)
				t.Gain = dry.base
				panSends(mv, i, panning.CalcAngleCoeffs(azimuth[i], elevation[i], spread), 1, wet, slots)
			}
		}
		mv.Flags |= voice.HasHrtf

	default:
		mv.Direct.Buffer = d.realOut.Buffer
		setNfc(len(mv.Chans))
		lfe := d.realOut.ChannelIndex(panning.LFE)
		if positional {
			ev := float32(math.Asin(float64(mathutil.Clamp(y, -1, 1))))
			az := float32(math.Atan2(float64(x), float64(-z)))
			coeffs := panning.CalcDirectionCoeffs(x, y, z, spread)
			for i, in := range inputs {
				target := mv.Chans[i].Dry.Gains.Target[:]
				if in.Channel == panning.LFE {
					if lfe >= 0 {
						target[lfe] = dry.base
					}
					continue
				}
				panning.ComputeDirectGains(d.realOut.Layout, az, ev, spread, dry.base*downmix, target)
				panSends(mv, i, coeffs, downmix, wet, slots)
			}
			break
		}
		for i, in := range inputs {
			target := mv.Chans[i].Dry.Gains.Target[:]
			if in.Channel == panning.LFE {
				if lfe >= 0 {
					target[lfe] = dry.base
				}
				continue
			}
			panning.ComputeDirectGains(d.realOut.Layout, azimuth[i], elevation[i], spread, dry.base, target)
			panSends(mv, i, panning.CalcAngleCoeffs(azimuth[i], elevation[i], spread), 1, wet, slots)
		}
	}

	mv.Direct.FilterType = setShelves(mv, freq, dry, func(ch *voice.Channel) (*filter.Biquad, *filter.Biquad) {
		return &ch.Dry.LowPass, &ch.Dry.HighPass
	})
	for i, s := range slots {
		if s == nil {
			continue
		}
		mv.Send[i].FilterType = setShelves(mv, freq, wet[i], func(ch *voice.Channel) (*filter.Biquad, *filter.Biquad) {
			return &ch.Wet[i].LowPass, &ch.Wet[i].HighPass
		})
	}
}

// setShelves configures the high and low shelf of one path on every
// channel and returns which of them need to run.
func setShelves(mv *mixVoice, freq float32, g pathGains, path func(*voice.Channel) (lp, hp *filter.Biquad)) voice.FilterType {
	typ := voice.FilterNone
	if g.hf != 1 {
		typ |= voice.FilterLowPass
	}
	if g.lf != 1 {
		typ |= voice.FilterHighPass
	}
	if len(mv.Chans) == 0 {
		return typ
	}

	lp0, hp0 := path(&mv.Chans[0])
	lp0.SetParamsFromSlope(filter.HighShelf, g.hfRef/freq, max(g.hf, 0.001), 1)
	hp0.SetParamsFromSlope(filter.LowShelf, g.lfRef/freq, max(g.lf, 0.001), 1)
	for i := 1; i < len(mv.Chans); i++ {
		lp, hp := path(&mv.Chans[i])
		lp.CopyParamsFrom(lp0)
		hp.CopyParamsFrom(hp0)
	}
	return typ
}

// wrapRadians folds a into [-π, π).
func wrapRadians(a float32) float32 {
	r := math.Mod(float64(a)+math.Pi, 2*math.Pi)
	if r < 0 {
		r += 2 * math.Pi
	}
	return float32(r - math.Pi)
}
