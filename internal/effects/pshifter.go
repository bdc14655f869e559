package effects

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/tphakala/go-audio-mixer/internal/resample"
)

// pshifterLatency is how far the output trails the input.
const pshifterLatency = stftStep * (stftOversample - 1)

type binFreq struct {
	amplitude float64
	frequency float64
}

// pshifterState is a phase vocoder: each STFT frame is analyzed into bin
// amplitudes and true frequencies, the bins are moved by the pitch ratio,
// and the frame is resynthesized with accumulated phases.
type pshifterState struct {
	outTarget

	fft *fourier.CmplxFFT

	count      int
	shiftFixed uint32
	shift      float64
	freqPerBin float64

	inFIFO    [stftSize]float32
	outFIFO   [stftStep]float32
	lastPhase [stftHalfSize + 1]float64
	sumPhase  [stftHalfSize + 1]float64
	accum     [stftSize]float64
	frame     [stftSize]complex128
	spectrum  [stftSize]complex128
	analysis  [stftHalfSize + 1]binFreq
	synthesis [stftHalfSize + 1]binFreq

	buffer [resample.BufferLineSize]float32
	gains  chanGains
}

func newPshifter() *pshifterState {
	return &pshifterState{fft: fourier.NewCmplxFFT(stftSize)}
}

func (s *pshifterState) DeviceUpdate(dev Device, _ *IRBuffer) {
	s.count = pshifterLatency
	s.shiftFixed = resample.FracOne
	s.shift = 1
	s.freqPerBin = float64(dev.Frequency) / stftSize

	clear(s.inFIFO[:])
	clear(s.outFIFO[:])
	clear(s.lastPhase[:])
	clear(s.sumPhase[:])
	clear(s.accum[:])
	s.gains = chanGains{}
}

func (s *pshifterState) Update(_ Device, gain float32, props Props, target Target) {
	p := props.(PshifterProps)
	pitch := math.Pow(2, float64(p.CoarseTune*100+p.FineTune)/1200)
	s.shiftFixed = uint32(pitch * resample.FracOne)
	s.shift = float64(s.shiftFixed) / resample.FracOne

	s.out = target.Main.Buffer
	target.Main.PanGains(frontCoeffs, gain, s.gains.target[:])
}

func (s *pshifterState) Process(n int, in, out [][]float32) {
	const expected = 2 * math.Pi / stftOversample
	buf := s.buffer[:n]
	count := s.count

	for i := 0; i < n; {
		for ; i < n && count < stftSize; i++ {
			s.inFIFO[count] = in[0][i]
			buf[i] = s.outFIFO[count-pshifterLatency]
			count++
		}
		if count < stftSize {
			break
		}
		count = pshifterLatency
		s.processFrame(expected)
	}
	s.count = count

	s.gains.mix(buf, out, max(n, 512), 0)
}

func (s *pshifterState) processFrame(expected float64) {
	for k := range stftSize {
		s.frame[k] = complex(float64(s.inFIFO[k])*stftWindow[k], 0)
	}
	s.fft.Coefficients(s.spectrum[:], s.frame[:])

	// Analysis: true frequency of each bin from its phase advance.
	for k := range stftHalfSize + 1 {
		amp, phase := cmplx.Abs(s.spectrum[k]), cmplx.Phase(s.spectrum[k])
		tmp := (phase - s.lastPhase[k]) - float64(k)*expected

		qpd := int(tmp / math.Pi)
		tmp -= math.Pi * float64(qpd+qpd%2)
		tmp /= expected

		// Only half the bins are used, so double the amplitude.
		s.analysis[k] = binFreq{amplitude: 2 * amp, frequency: (float64(k) + tmp) * s.freqPerBin}
		s.lastPhase[k] = phase
	}

	clear(s.synthesis[:])
	for k := range stftHalfSize + 1 {
		j := (uint64(k) * uint64(s.shiftFixed)) >> resample.FracBits
		if j >= stftHalfSize+1 {
			break
		}
		s.synthesis[j].amplitude += s.analysis[k].amplitude
		s.synthesis[j].frequency = s.analysis[k].frequency * s.shift
	}

	for k := range stftHalfSize + 1 {
		dev := s.synthesis[k].frequency/s.freqPerBin - float64(k)
		s.sumPhase[k] += (float64(k) + dev) * expected
		s.spectrum[k] = cmplx.Rect(s.synthesis[k].amplitude, s.sumPhase[k])
	}
	// Negative frequencies stay empty; the real part is the signal.
	clear(s.spectrum[stftHalfSize+1:])
	s.fft.Sequence(s.frame[:], s.spectrum[:])

	const norm = 0.5 * stftHalfSize * stftOversample
	for k := range stftSize {
		s.accum[k] += stftWindow[k] * real(s.frame[k]) / norm
	}

	for k := range stftStep {
		s.outFIFO[k] = float32(s.accum[k])
	}
	copy(s.accum[:], s.accum[stftStep:])
	clear(s.accum[stftSize-stftStep:])
	copy(s.inFIFO[:pshifterLatency], s.inFIFO[stftStep:])
}
