package effects

import (
	"math"

	"github.com/tphakala/go-audio-mixer/internal/filter"
)

// Frame geometry shared by the FFT based effects. Frames overlap by a
// factor of stftOversample and are advanced stftStep samples at a time.
const (
	stftSize       = 1024
	stftHalfSize   = stftSize / 2
	stftOversample = 4
	stftStep       = stftSize / stftOversample
)

// hilbertWindow is a periodic Hann window, sampled at bin centers.
var hilbertWindow = func() (w [stftSize]float64) {
	for i := range stftHalfSize {
		v := math.Sin((float64(i) + 0.5) * math.Pi / stftSize)
		w[i] = v * v
		w[stftSize-1-i] = v * v
	}
	return w
}()

// stftWindow is a symmetric Hann window.
var stftWindow = [stftSize]float64(filter.HannWindow(stftSize))
