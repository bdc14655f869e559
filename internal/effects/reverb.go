package effects

import (
	"math"

	"github.com/tphakala/go-audio-mixer/internal/filter"
	"github.com/tphakala/go-audio-mixer/internal/mathutil"
	"github.com/tphakala/go-audio-mixer/internal/panning"
	"github.com/tphakala/go-audio-mixer/internal/resample"
)

// The reverb works on four decorrelated lines: the B-Format input is
// converted to A-Format, run through early reflection and late feedback
// networks, and converted back while panning.
const reverbLines = 4

// Reverb timing and scaling constants.
const (
	reverbDecayGain          = 0.001 // -60dB
	reverbMaxReflectionDelay = 0.3
	reverbMaxLateDelay       = 0.1
	reverbDensityScale       = 125000.0
	reverbMinDecayTime       = 0.1
	reverbMaxDecayTime       = 20.0
	reverbMaxHFReference     = 20000.0
	reverbFadeLimit          = 100000

	speedOfSound = 343.3

	modFracBits         = 24
	modFracOne          = 1 << modFracBits
	modFracMask         = modFracOne - 1
	modMaxTime          = 4.0
	modDefaultTime      = 0.25
	modDepthCoeff       = 0.05
	modMaxDelay         = modMaxTime * modDepthCoeff / 2
	invSqrt2    float32 = 0.7071067811865476
	sqrt3       float32 = 1.7320508075688772
)

// B-Format (W, Y, Z, X) to A-Format, and the two A-Format to B-Format
// conversions for the early and late outputs.
var (
	reverbB2A = [reverbLines][reverbLines]float32{
		{0.5, 0.5, 0.5, 0.5},
		{0.5, -0.5, -0.5, 0.5},
		{0.5, 0.5, -0.5, -0.5},
		{0.5, -0.5, 0.5, -0.5},
	}
	earlyA2B = [reverbLines][reverbLines]float32{
		{0.5, 0.5, 0.5, 0.5},
		{0.5, -0.5, 0.5, -0.5},
		{0.5, -0.5, -0.5, 0.5},
		{0.5, 0.5, -0.5, -0.5},
	}
	lateA2B = [reverbLines][reverbLines]float32{
		{0.5, 0.5, 0.5, 0.5},
		{invSqrt2, -invSqrt2, 0, 0},
		{0, 0, -invSqrt2, invSqrt2},
		{0.5, 0.5, -0.5, -0.5},
	}
)

// Line lengths in seconds at the lowest density. Each set is scaled by the
// density multiplier.
var (
	earlyTapLengths     = [reverbLines]float32{0, 2.0213520e-4, 4.2531060e-4, 6.7171600e-4}
	earlyAllpassLengths = [reverbLines]float32{9.7096800e-5, 1.0720356e-4, 1.1836234e-4, 1.3068260e-4}
	earlyLineLengths    = [reverbLines]float32{0, 4.9281100e-4, 9.3916180e-4, 1.3434322e-3}
	lateAllpassLengths  = [reverbLines]float32{1.6182800e-4, 2.0389060e-4, 2.8159360e-4, 3.2365600e-4}
	lateLineLengths     = [reverbLines]float32{1.9419362e-3, 2.4466860e-3, 3.3791220e-3, 3.8838720e-3}
)

type reverbBlock = [reverbLines][maxUpdateSamples]float32

// delayLine holds one power-of-two ring per reverb line.
type delayLine struct {
	lines [reverbLines][]float32
	mask  int
}

func newDelayLine(seconds, rate float32, extra int) delayLine {
	n := int(mathutil.NextPowerOf2(uint32(math.Ceil(float64(seconds*rate))) + uint32(extra)))
	var d delayLine
	for i := range d.lines {
		d.lines[i] = make([]float32, n)
	}
	d.mask = n - 1
	return d
}

func (d *delayLine) clear() {
	for _, l := range d.lines {
		clear(l)
	}
}

func (d *delayLine) at(c, pos int) float32 {
	return d.lines[c][pos&d.mask]
}

func (d *delayLine) write(offset, c int, in []float32) {
	line := d.lines[c]
	for i, v := range in {
		line[(offset+i)&d.mask] = v
	}
}

// writeReflected writes the lines mirrored about the origin: W is negated
// and each line lands on its spatial opposite.
func (d *delayLine) writeReflected(offset int, in *reverbBlock, n int) {
	for i := range n {
		s0, s1, s2, s3 := in[0][i], in[1][i], in[2][i], in[3][i]
		pos := (offset + i) & d.mask
		d.lines[0][pos] = (s0 - s1 - s2 - s3) * 0.5
		d.lines[1][pos] = (s1 - s0 - s2 - s3) * 0.5
		d.lines[2][pos] = (s2 - s0 - s1 - s3) * 0.5
		d.lines[3][pos] = (s3 - s0 - s1 - s2) * 0.5
	}
}

// partialScatter applies the 4x4 rotation
//
//	[  x,  y, -y,  y ]
//	[ -y,  x,  y,  y ]
//	[  y, -y,  x,  y ]
//	[ -y, -y, -y,  x ]
//
// where 1 = x² + 3y².
func partialScatter(in [reverbLines]float32, x, y float32) [reverbLines]float32 {
	return [reverbLines]float32{
		x*in[0] + y*(in[1]-in[2]+in[3]),
		x*in[1] + y*(-in[0]+in[2]+in[3]),
		x*in[2] + y*(in[0]-in[1]+in[3]),
		x*in[3] + y*(-in[0]-in[1]-in[2]),
	}
}

// scatterRev reverses the line order, then scatters.
func scatterRev(x, y float32, s *reverbBlock, n int) {
	for i := range n {
		out := partialScatter([reverbLines]float32{s[3][i], s[2][i], s[1][i], s[0][i]}, x, y)
		s[0][i], s[1][i], s[2][i], s[3][i] = out[0], out[1], out[2], out[3]
	}
}

// vecAllpass is a Gerzon vector all-pass: four all-passes whose feedback
// runs through the scattering matrix.
type vecAllpass struct {
	delay  delayLine
	coeff  float32
	offset [reverbLines]int
}

func (ap *vecAllpass) process(s *reverbBlock, offset int, x, y float32, n int) {
	c := ap.coeff
	for i := range n {
		var f [reverbLines]float32
		for j := range reverbLines {
			in := s[j][i]
			out := ap.delay.at(j, offset-ap.offset[j]) - c*in
			f[j] = in + c*out
			s[j][i] = out
		}
		f = partialScatter(f, x, y)
		pos := offset & ap.delay.mask
		for j := range reverbLines {
			ap.delay.lines[j][pos] = f[j]
		}
		offset++
	}
}

// allpass4 is four independent all-passes.
type allpass4 struct {
	delay  delayLine
	coeff  float32
	offset [reverbLines]int
}

func (ap *allpass4) process(s *reverbBlock, offset, n int) {
	c := ap.coeff
	mask := ap.delay.mask
	for j := range reverbLines {
		line := ap.delay.lines[j]
		for i, x := range s[j][:n] {
			y := line[(offset+i-ap.offset[j])&mask] - c*x
			line[(offset+i)&mask] = x + c*y
			s[j][i] = y
		}
	}
}

// t60Filter applies a three band decay: a mid gain plus low and high
// shelves relative to it.
type t60Filter struct {
	midGain float32
	hf, lf  filter.Biquad
}

func (t *t60Filter) calcCoeffs(length, lfDecay, mfDecay, hfDecay, lf0norm, hf0norm float32) {
	mf := decayCoeff(length, mfDecay)
	lf := decayCoeff(length, lfDecay) / mf
	hf := decayCoeff(length, hfDecay) / mf
	t.midGain = mf
	t.lf.SetParamsFromSlope(filter.LowShelf, lf0norm, lf, 1)
	t.hf.SetParamsFromSlope(filter.HighShelf, hf0norm, hf, 1)
}

func (t *t60Filter) process(s []float32) {
	t.hf.DualProcess(&t.lf, s, s)
}

func (t *t60Filter) clear() {
	t.hf.Clear()
	t.lf.Clear()
}

type earlyReflections struct {
	ap     allpass4
	delay  delayLine
	offset [reverbLines]int
	coeff  [reverbLines]float32
	gains  [reverbLines]chanGains
}

func (e *earlyReflections) updateLines(densityMult, diffusion, decayTime, rate float32) {
	e.ap.coeff = diffusion * diffusion * invSqrt2
	for i := range reverbLines {
		e.ap.offset[i] = int(earlyAllpassLengths[i] * densityMult * rate)
		length := earlyLineLengths[i] * densityMult
		e.offset[i] = int(length * rate)
		e.coeff[i] = decayCoeff(length, decayTime)
	}
}

// modulation drives the late line delays with an approximated sine.
type modulation struct {
	index, step uint32
	depth       float32 // samples
	delays      [maxUpdateSamples]uint32
}

func (m *modulation) update(modTime, modDepth, rate float32) {
	m.step = max(uint32(modFracOne/(rate*modTime)), 1)
	// Long periods get a proportionally smaller depth so the pitch swing
	// stays the same.
	t := min(modTime, modDefaultTime)
	m.depth = modDepthCoeff / 4 * t * modDepth * rate
}

func (m *modulation) calcDelays(n int) {
	idx := m.index
	depth := m.depth * resample.FracOne
	for i := range m.delays[:n] {
		idx += m.step
		x := float32(idx&modFracMask) * (1.0 / modFracOne)
		var lfo float32
		if idx&(modFracOne>>1) == 0 {
			lfo = -16*x*x + 8*x
		} else {
			lfo = 16*x*x - 8*x - 16*x + 8
		}
		m.delays[i] = uint32((lfo + 1) * depth)
	}
	m.index = idx
}

func (m *modulation) clear() {
	m.index = 0
	m.step = 1
	m.depth = 0
}

type lateReverb struct {
	delay       delayLine
	offset      [reverbLines]int
	densityGain float32
	t60         [reverbLines]t60Filter
	mod         modulation
	ap          vecAllpass
	gains       [reverbLines]chanGains
}

func (l *lateReverb) updateLines(densityMult, diffusion, lfDecay, mfDecay, hfDecay, lf0norm, hf0norm, rate float32) {
	norm := rate / reverbMaxHFReference

	var allpassAvg, lineAvg float32
	for i := range reverbLines {
		allpassAvg += lateAllpassLengths[i]
		lineAvg += lateLineLengths[i]
	}
	allpassAvg /= reverbLines
	lineAvg /= reverbLines

	// Input attenuation keeps the tail's energy independent of density and
	// decay, using a decay time weighted by band width.
	length := (lineAvg + allpassAvg) * densityMult
	weighted := lf0norm*norm*lfDecay + (hf0norm-lf0norm)*norm*mfDecay + (1-hf0norm*norm)*hfDecay
	l.densityGain = densityGain(decayCoeff(length, weighted))

	l.ap.coeff = diffusion * diffusion * invSqrt2
	for i := range reverbLines {
		l.ap.offset[i] = int(lateAllpassLengths[i] * densityMult * rate)

		// The cubic read adds a sample of delay.
		length = lateLineLengths[i] * densityMult
		l.offset[i] = max(int(length*rate+0.5), 1) - 1

		// Fold the all-pass and average modulation delay into the decay.
		length += mathutil.Lerp(lateAllpassLengths[i], allpassAvg, diffusion)*densityMult + l.mod.depth/rate
		l.t60[i].calcCoeffs(length, lfDecay, mfDecay, hfDecay, lf0norm, hf0norm)
	}
}

type filterPair struct {
	lp, hp filter.Biquad
}

type reverbPipeline struct {
	filters     [reverbLines]filterPair
	lateDelayIn delayLine

	earlyTap   [reverbLines][2]int
	earlyCoeff [reverbLines][2]float32
	lateTap    [reverbLines][2]int

	mixX, mixY float32

	early earlyReflections
	late  lateReverb

	fadeCount int
}

func (p *reverbPipeline) alloc(rate, mult float32) {
	lateDiffAvg := (lateLineLengths[reverbLines-1] - lateLineLengths[0]) / reverbLines
	p.lateDelayIn = newDelayLine(reverbMaxLateDelay+lateDiffAvg*mult, rate, resample.BufferLineSize)
	p.early.ap.delay = newDelayLine(earlyAllpassLengths[reverbLines-1]*mult, rate, 0)
	p.early.delay = newDelayLine(earlyLineLengths[reverbLines-1]*mult, rate, maxUpdateSamples)
	p.late.ap.delay = newDelayLine(lateAllpassLengths[reverbLines-1]*mult, rate, 0)
	p.late.delay = newDelayLine(lateLineLengths[reverbLines-1]*mult+modMaxDelay, rate, 4)
}

func (p *reverbPipeline) clearLines() {
	p.lateDelayIn.clear()
	p.early.ap.delay.clear()
	p.early.delay.clear()
	p.late.ap.delay.clear()
	p.late.delay.clear()
}

func (p *reverbPipeline) clear() {
	for i := range p.filters {
		p.filters[i].lp.Clear()
		p.filters[i].hp.Clear()
	}
	p.earlyTap = [reverbLines][2]int{}
	p.earlyCoeff = [reverbLines][2]float32{}
	p.lateTap = [reverbLines][2]int{}
	p.early.gains = [reverbLines]chanGains{}
	for i := range p.late.t60 {
		p.late.t60[i].clear()
	}
	p.late.mod.clear()
	p.late.gains = [reverbLines]chanGains{}
}

func (p *reverbPipeline) updateDelayLine(gain, earlyDelay, lateDelay, densityMult, decayTime, rate float32) {
	for i := range reverbLines {
		length := earlyTapLengths[i] * densityMult
		p.earlyTap[i][1] = int((earlyDelay + length) * rate)
		p.earlyCoeff[i][1] = decayCoeff(length, decayTime) * gain

		// The late feed already passed the shortest early line.
		length = (lateLineLengths[i]-lateLineLengths[0])/reverbLines*densityMult + lateDelay
		p.lateTap[i][1] = int(length * rate)
	}
}

// panTransform focuses B-Format toward vec, with its magnitude (up to 1) as
// the focus strength. The vector is in EAX's left-handed space.
func panTransform(vec [3]float32) [reverbLines][reverbLines]float32 {
	mag := float32(math.Sqrt(float64(vec[0]*vec[0] + vec[1]*vec[1] + vec[2]*vec[2])))
	scale := sqrt3
	if mag > 1 {
		scale = sqrt3 / mag
		mag = 1
	}
	n := [3]float32{-vec[0] * scale, vec[1] * scale, vec[2] * scale}
	return [reverbLines][reverbLines]float32{
		{1, 0, 0, 0},
		{n[0], 1 - mag, 0, 0},
		{n[1], 0, 1 - mag, 0},
		{n[2], 0, 0, 1 - mag},
	}
}

// panCoeffs combines an A-to-B conversion with a pan transform, giving the
// ambisonic coefficients of each A-Format line.
func panCoeffs(a2b, mtx *[reverbLines][reverbLines]float32) [reverbLines]panning.Coeffs {
	var res [reverbLines]panning.Coeffs
	for i := range reverbLines {
		for k := range reverbLines {
			a := a2b[k][i]
			for c := range reverbLines {
				res[i][c] += a * mtx[k][c]
			}
		}
	}
	return res
}

func (p *reverbPipeline) update3DPanning(earlyPan, latePan [3]float32, earlyGain, lateGain float32, main *panning.Bus) {
	em, lm := panTransform(earlyPan), panTransform(latePan)
	early := panCoeffs(&earlyA2B, &em)
	late := panCoeffs(&lateA2B, &lm)
	for i := range reverbLines {
		main.PanGains(early[i], earlyGain, p.early.gains[i].target[:])
		main.PanGains(late[i], lateGain, p.late.gains[i].target[:])
	}
}

func (p *reverbPipeline) processEarly(main *delayLine, offset, n int, temp *reverbBlock, out *[reverbLines][resample.BufferLineSize]float32) {
	for base := 0; base < n; {
		todo := min(n-base, maxUpdateSamples)

		// Primary reflections, crossfading from the old taps to the new.
		fadeStep := 1 / float32(todo)
		for j := range reverbLines {
			tap0 := offset - p.earlyTap[j][0]
			tap1 := offset - p.earlyTap[j][1]
			p.earlyTap[j][0] = p.earlyTap[j][1]
			c0, c1 := p.earlyCoeff[j][0], p.earlyCoeff[j][1]
			p.earlyCoeff[j][0] = c1
			for i := range todo {
				temp[j][i] = mathutil.Lerp(main.at(j, tap0+i)*c0, main.at(j, tap1+i)*c1, fadeStep*float32(i))
			}
			p.filters[j].lp.DualProcess(&p.filters[j].hp, temp[j][:todo], temp[j][:todo])
		}

		p.early.ap.process(temp, offset, todo)

		// Secondary reflections from the mirrored echo line.
		p.early.delay.writeReflected(offset, temp, todo)
		for j := range reverbLines {
			tap := offset - p.early.offset[j]
			coeff := p.early.coeff[j]
			dst := out[j][base : base+todo]
			for i := range dst {
				d := p.early.delay.at(j, tap+i)
				dst[i] = d*coeff + temp[j][i]
				temp[j][i] = d
			}
		}

		scatterRev(p.mixX, p.mixY, temp, todo)
		for j := range reverbLines {
			p.lateDelayIn.write(offset, j, temp[j][:todo])
		}

		base += todo
		offset += todo
	}
}

func (p *reverbPipeline) processLate(offset, n int, temp *reverbBlock, out *[reverbLines][resample.BufferLineSize]float32) {
	late := &p.late
	for base := 0; base < n; {
		todo := min(late.offset[0], maxUpdateSamples, n-base)
		todo = max(todo, 1)

		late.mod.calcDelays(todo)

		// Modulated feedback taps, then frequency dependent decay.
		for j := range reverbLines {
			mid := late.t60[j].midGain
			tap := offset - late.offset[j]
			for i, d := range late.mod.delays[:todo] {
				pos := tap + i - int(d>>resample.FracBits)
				mu := float32(d&resample.FracMask) * (1.0 / resample.FracOne)
				v := mathutil.Cubic(late.delay.at(j, pos), late.delay.at(j, pos-1),
					late.delay.at(j, pos-2), late.delay.at(j, pos-3), mu)
				temp[j][i] = v * mid
			}
			late.t60[j].process(temp[j][:todo])
		}

		// Add the early feed, crossfading between tap positions.
		fadeStep := 1 / float32(todo)
		for j := range reverbLines {
			tap0 := offset - p.lateTap[j][0]
			tap1 := offset - p.lateTap[j][1]
			p.lateTap[j][0] = p.lateTap[j][1]
			dg := late.densityGain
			var dstep float32
			if tap0 != tap1 {
				dstep = dg * fadeStep
			}
			for i := range todo {
				fc := float32(i)
				temp[j][i] += p.lateDelayIn.at(j, tap0+i)*(dg-dstep*fc) + p.lateDelayIn.at(j, tap1+i)*dstep*fc
			}
		}

		late.ap.process(temp, offset, p.mixX, p.mixY, todo)
		for j := range reverbLines {
			copy(out[j][base:base+todo], temp[j][:todo])
		}

		scatterRev(p.mixX, p.mixY, temp, todo)
		for j := range reverbLines {
			late.delay.write(offset, j, temp[j][:todo])
		}

		base += todo
		offset += todo
	}
}

type pipelineState int

const (
	pipelineDeviceClear pipelineState = iota
	pipelineStartFade
	pipelineFading
	pipelineCleanup
	pipelineNormal
)

type reverbParams struct {
	density, diffusion       float32
	decay, hfDecay, lfDecay  float32
	modTime, modDepth        float32
	hfReference, lfReference float32
}

// reverbState is the EAX reverb. A change to any parameter that reshapes
// the delay network switches to the second pipeline and lets the old one
// ring out, so the tail never jumps.
type reverbState struct {
	outTarget

	params  reverbParams
	state   pipelineState
	current int

	mainDelay delayLine
	pipes     [2]reverbPipeline
	offset    int

	temp     reverbBlock
	tempLine [resample.BufferLineSize]float32
	early    [reverbLines][resample.BufferLineSize]float32
	late     [reverbLines][resample.BufferLineSize]float32
}

func newReverb() *reverbState {
	return &reverbState{}
}

func (s *reverbState) DeviceUpdate(dev Device, _ *IRBuffer) {
	rate := float32(dev.Frequency)
	mult := densityMult(1)

	s.mainDelay = newDelayLine(reverbMaxReflectionDelay+earlyTapLengths[reverbLines-1]*mult, rate, resample.BufferLineSize)
	for i := range s.pipes {
		s.pipes[i].alloc(rate, mult)
		s.pipes[i].clear()
	}
	s.state = pipelineDeviceClear
	s.offset = 0
}

func (s *reverbState) Update(dev Device, gain float32, props Props, target Target) {
	p := props.(ReverbProps)
	rate := float32(dev.Frequency)

	hfRatio := p.DecayHFRatio
	if p.DecayHFLimit && p.AirAbsorptionGainHF < 1 {
		hfRatio = limitedHFRatio(hfRatio, p.AirAbsorptionGainHF, p.DecayTime)
	}
	lfDecay := mathutil.Clamp(p.DecayTime*p.DecayLFRatio, reverbMinDecayTime, reverbMaxDecayTime)
	hfDecay := mathutil.Clamp(p.DecayTime*hfRatio, reverbMinDecayTime, reverbMaxDecayTime)

	next := reverbParams{
		density: p.Density, diffusion: p.Diffusion,
		decay: p.DecayTime, hfDecay: hfDecay, lfDecay: lfDecay,
		modTime: p.ModulationTime, modDepth: p.ModulationDepth,
		hfReference: p.HFReference, lfReference: p.LFReference,
	}
	fullUpdate := s.state == pipelineDeviceClear || next != s.params
	if fullUpdate {
		s.params = next
		if s.state != pipelineDeviceClear {
			s.state = pipelineStartFade
		} else {
			s.state = pipelineNormal
		}
		s.current ^= 1
		old := &s.pipes[s.current^1]
		for j := range reverbLines {
			old.earlyCoeff[j][1] = 0
		}
	}
	pipe := &s.pipes[s.current]

	mult := densityMult(p.Density)
	pipe.updateDelayLine(p.Gain, p.ReflectionsDelay, p.LateReverbDelay, mult, p.DecayTime, rate)

	boost := dev.ReverbBoost
	if boost <= 0 {
		boost = 1
	}
	s.out = target.Main.Buffer
	g := gain * boost
	pipe.update3DPanning(p.ReflectionsPan, p.LateReverbPan, p.ReflectionsGain*g, p.LateReverbGain*g, target.Main)

	hf0norm := min(p.HFReference/rate, 0.49)
	lf0norm := min(p.LFReference/rate, 0.49)
	pipe.filters[0].lp.SetParamsFromSlope(filter.HighShelf, hf0norm, p.GainHF, 1)
	pipe.filters[0].hp.SetParamsFromSlope(filter.LowShelf, lf0norm, p.GainLF, 1)
	for i := 1; i < reverbLines; i++ {
		pipe.filters[i].lp.CopyParamsFrom(&pipe.filters[0].lp)
		pipe.filters[i].hp.CopyParamsFrom(&pipe.filters[0].hp)
	}

	if fullUpdate {
		pipe.early.updateLines(mult, p.Diffusion, p.DecayTime, rate)
		pipe.mixX, pipe.mixY = matrixCoeffs(p.Diffusion)
		pipe.late.mod.update(p.ModulationTime, p.ModulationDepth, rate)
		pipe.late.updateLines(mult, p.Diffusion, lfDecay, p.DecayTime, hfDecay, lf0norm, hf0norm, rate)
	}

	// Time for the old pipeline to reach -60dB from the start of its tail.
	decayDiff := reverbDecayGain / (p.ReflectionsGain * p.LateReverbGain)
	var diffTime float32
	if decayDiff < 1 {
		diffTime = float32(math.Log10(float64(decayDiff))) * (20.0 / -60.0) * p.DecayTime
	}
	samples := (p.ReflectionsDelay + p.LateReverbDelay + diffTime) * rate
	pipe.fadeCount = int(min(samples, reverbFadeLimit))
}

func (s *reverbState) mixOut(pipe *reverbPipeline, out [][]float32, n int) {
	for j := range reverbLines {
		pipe.early.gains[j].mix(s.early[j][:n], out, n, 0)
	}
	for j := range reverbLines {
		pipe.late.gains[j].mix(s.late[j][:n], out, n, 0)
	}
}

func (s *reverbState) Process(n int, in, out [][]float32) {
	offset := s.offset
	old := &s.pipes[s.current^1]
	pipe := &s.pipes[s.current]

	tmp := s.tempLine[:n]
	numInput := min(len(in), reverbLines)
	for c := range reverbLines {
		clear(tmp)
		for i := range numInput {
			g := reverbB2A[c][i]
			for k, v := range in[i][:n] {
				tmp[k] += v * g
			}
		}
		s.mainDelay.write(offset, c, tmp)
	}

	if s.state < pipelineFading {
		s.state = pipelineFading
	}

	pipe.processEarly(&s.mainDelay, offset, n, &s.temp, &s.early)
	pipe.processLate(offset, n, &s.temp, &s.late)
	s.mixOut(pipe, out, n)

	switch s.state {
	case pipelineNormal:
	case pipelineCleanup:
		old.clearLines()
		old.clear()
		s.state = pipelineNormal
	default:
		// The last block of the old pipeline fades its gains to silence.
		if n >= old.fadeCount {
			for j := range reverbLines {
				clear(old.early.gains[j].target[:])
				clear(old.late.gains[j].target[:])
			}
			old.fadeCount = 0
			s.state = pipelineCleanup
		} else {
			old.fadeCount -= n
		}
		old.processEarly(&s.mainDelay, offset, n, &s.temp, &s.early)
		old.processLate(offset, n, &s.temp, &s.late)
		s.mixOut(old, out, n)
	}

	s.offset = offset + n
}

func densityMult(density float32) float32 {
	return max(5, float32(math.Cbrt(float64(density*reverbDensityScale))))
}

// decayCoeff is the gain per cycle of length seconds that reaches -60dB
// after decayTime.
func decayCoeff(length, decayTime float32) float32 {
	return float32(math.Pow(reverbDecayGain, float64(length/decayTime)))
}

func decayLength(coeff, decayTime float32) float32 {
	return float32(math.Log10(float64(coeff))) * decayTime / -3
}

// densityGain normalizes the energy of a feedback loop with gain a.
func densityGain(a float32) float32 {
	return float32(math.Sqrt(float64(1 - a*a)))
}

func matrixCoeffs(diffusion float32) (x, y float32) {
	t := float64(diffusion) * math.Atan(float64(sqrt3))
	return float32(math.Cos(t)), float32(math.Sin(t)) / sqrt3
}

// limitedHFRatio caps the HF decay ratio by the loss air absorption
// already causes.
func limitedHFRatio(hfRatio, airAbsorption, decayTime float32) float32 {
	limit := 1 / speedOfSound / decayLength(airAbsorption, decayTime)
	return min(limit, hfRatio)
}
