package filter

import "math"

// BandSplitter is a phase-matched two-band crossover: the low band is a
// cascade of two one-pole low-passes and the high band is an all-pass minus
// the low band, so low+high reconstructs an all-passed input.
type BandSplitter struct {
	coeff float32
	lpZ1  float32
	lpZ2  float32
	apZ1  float32
}

// Init sets the crossover frequency, normalized to the sample rate.
func (s *BandSplitter) Init(f0norm float32) {
	w := f0norm * 2 * math.Pi
	sinW, cosW := math.Sincos(float64(w))
	if cosW > splitterCosEpsilon {
		s.coeff = float32((sinW - 1) / cosW)
	} else {
		s.coeff = float32(cosW * -0.5)
	}
	s.Clear()
}

// Clear resets the filter state.
func (s *BandSplitter) Clear() {
	s.lpZ1, s.lpZ2, s.apZ1 = 0, 0, 0
}

// Process splits input into high and low bands.
func (s *BandSplitter) Process(hpOut, lpOut, input []float32) {
	apCoeff := s.coeff
	lpCoeff := s.coeff*0.5 + 0.5
	z1, z2, apZ1 := s.lpZ1, s.lpZ2, s.apZ1
	for i, in := range input {
		d := (in - z1) * lpCoeff
		lpY := z1 + d
		z1 = lpY + d

		d = (lpY - z2) * lpCoeff
		lpY = z2 + d
		z2 = lpY + d

		lpOut[i] = lpY

		apY := in*apCoeff + apZ1
		apZ1 = in - apY*apCoeff

		hpOut[i] = apY - lpY
	}
	s.lpZ1, s.lpZ2, s.apZ1 = z1, z2, apZ1
}

// ApplyHFScale scales the high band of samples by hfScale in place.
func (s *BandSplitter) ApplyHFScale(samples []float32, hfScale float32) {
	apCoeff := s.coeff
	lpCoeff := s.coeff*0.5 + 0.5
	z1, z2, apZ1 := s.lpZ1, s.lpZ2, s.apZ1
	for i, in := range samples {
		d := (in - z1) * lpCoeff
		lpY := z1 + d
		z1 = lpY + d

		d = (lpY - z2) * lpCoeff
		lpY = z2 + d
		z2 = lpY + d

		apY := in*apCoeff + apZ1
		apZ1 = in - apY*apCoeff

		samples[i] = (apY-lpY)*hfScale + lpY
	}
	s.lpZ1, s.lpZ2, s.apZ1 = z1, z2, apZ1
}
