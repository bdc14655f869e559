package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/tphakala/go-audio-mixer/internal/mathutil"
)

// ErrInvalidRate is returned for sample rates the polyphase resampler
// cannot convert between.
var ErrInvalidRate = errors.New("invalid sample rate")

// Polyphase design constants.
const (
	// polyphaseAttenuation is the stopband rejection in dB.
	polyphaseAttenuation = 180.0

	// polyphaseCutoff and polyphaseWidth are the transition band center and
	// width relative to the lower of the two Nyquist frequencies.
	polyphaseCutoff = 0.95
	polyphaseWidth  = 0.1

	// maxPolyphaseTaps bounds the prototype so absurd rate pairs fail
	// instead of exhausting memory.
	maxPolyphaseTaps = 1 << 22
)

// Polyphase converts whole signals between two fixed sample rates with a
// rational P/Q Kaiser-windowed sinc filter. It is meant for offline use,
// such as matching an impulse response to the device rate, where quality
// matters more than speed.
type Polyphase struct {
	p, q int // up and down factors
	half int // half length of the prototype in upsampled samples

	// proto is the prototype low-pass at the upsampled rate, scaled by p so
	// every phase has unity DC gain.
	proto []float64
}

// NewPolyphase prepares a converter from srcRate to dstRate.
func NewPolyphase(srcRate, dstRate int) (*Polyphase, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("%w: %d -> %d", ErrInvalidRate, srcRate, dstRate)
	}

	g := mathutil.Gcd(srcRate, dstRate)
	pp := &Polyphase{p: dstRate / g, q: srcRate / g}
	if pp.p == pp.q {
		return pp, nil
	}

	// Frequencies normalized to the upsampled rate.
	nyq := 0.5 / float64(max(pp.p, pp.q))
	cutoff := nyq * polyphaseCutoff
	width := nyq * polyphaseWidth

	beta := mathutil.KaiserBeta(polyphaseAttenuation)
	order := int(math.Ceil((polyphaseAttenuation - 7.95) / (2.285 * 2 * math.Pi * width)))
	pp.half = (order + 1) / 2
	if 2*pp.half+1 > maxPolyphaseTaps {
		return nil, fmt.Errorf("%w: %d -> %d needs a %d tap filter", ErrInvalidRate, srcRate, dstRate, 2*pp.half+1)
	}

	pp.proto = make([]float64, 2*pp.half+1)
	i0Beta := mathutil.BesselI0(beta)
	scale := 2 * cutoff * float64(pp.p)
	for i := range pp.proto {
		x := float64(i - pp.half)
		pp.proto[i] = scale * mathutil.Sinc(2*cutoff*x) * mathutil.Kaiser(beta, x/float64(pp.half), i0Beta)
	}
	return pp, nil
}

// OutputLen returns the number of samples Process produces for n input
// samples, rounded up.
func (pp *Polyphase) OutputLen(n int) int {
	return int((int64(n)*int64(pp.p) + int64(pp.q) - 1) / int64(pp.q))
}

// Process resamples src into dst, writing min(len(dst), OutputLen(len(src)))
// samples. The filter is centered, so the output has no group delay.
func (pp *Polyphase) Process(dst, src []float64) {
	n := min(len(dst), pp.OutputLen(len(src)))
	if pp.p == pp.q {
		copy(dst[:n], src)
		return
	}

	p, q, half := int64(pp.p), int64(pp.q), int64(pp.half)
	for j := range int64(n) {
		// Upsampled position of this output, and the input range whose
		// zero-stuffed samples fall under the filter there.
		u := j * q
		first := max(ceilDiv(u-half, p), 0)
		last := min((u+half)/p, int64(len(src))-1)

		var sum float64
		for k := first; k <= last; k++ {
			sum += src[k] * pp.proto[half+u-k*p]
		}
		dst[j] = sum
	}
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return -((-a) / b)
	}
	return (a + b - 1) / b
}
