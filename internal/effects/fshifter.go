package effects

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/tphakala/go-audio-mixer/internal/panning"
	"github.com/tphakala/go-audio-mixer/internal/resample"
)

var (
	fshiftLeft  = panning.CalcDirectionCoeffs(-math.Sqrt2/2, 0, math.Sqrt2/2, 0)
	fshiftRight = panning.CalcDirectionCoeffs(math.Sqrt2/2, 0, math.Sqrt2/2, 0)
)

// fshifterState shifts every frequency by a fixed amount. An overlapped
// Hilbert transform turns the omni line into an analytic signal, which is
// then mixed with a complex carrier per side.
type fshifterState struct {
	outTarget

	fft *fourier.CmplxFFT

	count     int
	pos       int
	phaseStep [2]uint32
	phase     [2]uint32
	sign      [2]float64

	inFIFO   [stftSize]float64
	outFIFO  [stftStep]complex128
	accum    [stftSize]complex128
	analytic [stftSize]complex128
	spectrum [stftSize]complex128
	outData  [resample.BufferLineSize]complex128

	buffer [resample.BufferLineSize]float32
	gains  [2]chanGains
}

func newFshifter() *fshifterState {
	return &fshifterState{fft: fourier.NewCmplxFFT(stftSize)}
}

func (s *fshifterState) DeviceUpdate(Device, *IRBuffer) {
	s.count = 0
	s.pos = stftSize - stftStep
	s.phaseStep = [2]uint32{}
	s.phase = [2]uint32{}
	s.sign = [2]float64{1, 1}
	clear(s.inFIFO[:])
	clear(s.outFIFO[:])
	clear(s.accum[:])
	clear(s.analytic[:])
	s.gains = [2]chanGains{}
}

func (s *fshifterState) Update(dev Device, gain float32, props Props, target Target) {
	p := props.(FshifterProps)

	step := uint32(min(p.Frequency/float32(dev.Frequency), 1) * resample.FracOne)
	s.phaseStep = [2]uint32{step, step}
	for side, dir := range [2]ShiftDirection{p.LeftDirection, p.RightDirection} {
		switch dir {
		case ShiftDown:
			s.sign[side] = -1
		case ShiftUp:
			s.sign[side] = 1
		case ShiftOff:
			s.phase[side] = 0
			s.phaseStep[side] = 0
		}
	}

	s.out = target.Main.Buffer
	target.Main.PanGains(fshiftLeft, gain, s.gains[0].target[:])
	target.Main.PanGains(fshiftRight, gain, s.gains[1].target[:])
}

// hilbert replaces buf with its analytic signal.
func (s *fshifterState) hilbert(buf []complex128) {
	s.fft.Coefficients(s.spectrum[:], buf)
	const scale = 1.0 / stftSize
	s.spectrum[0] *= scale
	for k := 1; k < stftHalfSize; k++ {
		s.spectrum[k] *= 2 * scale
	}
	s.spectrum[stftHalfSize] *= scale
	clear(s.spectrum[stftHalfSize+1:])
	s.fft.Sequence(buf, s.spectrum[:])
}

func (s *fshifterState) Process(n int, in, out [][]float32) {
	for base := 0; base < n; {
		todo := min(stftStep-s.count, n-base)
		for range todo {
			s.inFIFO[s.pos+s.count] = float64(in[0][base])
			s.outData[base] = s.outFIFO[s.count]
			base++
			s.count++
		}
		if s.count < stftStep {
			break
		}
		s.count = 0
		s.pos = (s.pos + stftStep) & (stftSize - 1)

		// Window the FIFO, oldest sample first.
		for k := range stftSize {
			s.analytic[k] = complex(s.inFIFO[(s.pos+k)&(stftSize-1)]*hilbertWindow[k], 0)
		}
		s.hilbert(s.analytic[:])
		for k := range stftSize {
			w := complex(2.0/stftOversample*hilbertWindow[k], 0)
			s.accum[(s.pos+k)&(stftSize-1)] += w * s.analytic[k]
		}

		copy(s.outFIFO[:], s.accum[s.pos:s.pos+stftStep])
		clear(s.accum[s.pos : s.pos+stftStep])
	}

	buf := s.buffer[:n]
	for side := range s.gains {
		step, idx := s.phaseStep[side], s.phase[side]
		for k := range buf {
			ph := float64(idx) * (2 * math.Pi / resample.FracOne)
			a := s.outData[k]
			buf[k] = float32(real(a)*math.Cos(ph) - imag(a)*math.Sin(ph)*s.sign[side])
			idx = (idx + step) & resample.FracMask
		}
		s.phase[side] = idx
		s.gains[side].mix(buf, out, max(n, 512), 0)
	}
}
