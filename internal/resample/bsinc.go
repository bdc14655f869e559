package resample

import (
	"math"
	"sync"

	"github.com/tphakala/go-audio-mixer/internal/mathutil"
)

// bsincTable holds Kaiser-windowed sinc filters for bsincScaleCount
// downsampling scales and bsincPhaseCount fractional phases.
//
// For each scale, a block of 4*phaseCount*m floats is laid out as:
//
//	for each phase: m coefficients, then m phase deltas
//	for each phase: m scale deltas, then m scale+phase deltas
//
// so one tap can be computed bilinearly from the fractional phase and the
// scale interpolation factor.
type bsincTable struct {
	scaleBase    float32
	scaleRange   float32
	m            [bsincScaleCount]int
	filterOffset [bsincScaleCount]int
	tab          []float32
}

type bsincHeader struct {
	beta       float64
	scaleBase  float64
	scaleLimit float64
	a          [bsincScaleCount]float64
	m          [bsincScaleCount]int
	totalSize  int
}

func newBSincHeader(rejection float64, order, maxScale int) bsincHeader {
	h := bsincHeader{
		beta:       mathutil.KaiserBeta(rejection),
		scaleBase:  mathutil.KaiserTransitionWidth(rejection, order) / 2,
		scaleLimit: 1 / float64(maxScale),
	}

	baseA := float64(order+1) / 2
	for si := range bsincScaleCount {
		scale := mathutil.Lerp(h.scaleBase, 1, float64(si+1)/bsincScaleCount)
		h.a[si] = math.Min(baseA/scale, baseA*float64(maxScale))
		h.m[si] = int(math.Ceil(h.a[si])) * 2
		h.totalSize += 4 * bsincPhaseCount * padTo4(h.m[si])
	}
	return h
}

func padTo4(n int) int {
	return (n + 3) &^ 3
}

// newBSincTable generates the filter table for the given design.
func newBSincTable(rejection float64, order, maxScale int) *bsincTable {
	hdr := newBSincHeader(rejection, order, maxScale)
	pointsMax := padTo4(hdr.m[0])
	if pointsMax > MaxPadding {
		panic("resample: bsinc filter wider than the resampler padding")
	}

	// filter[si][pi] holds pointsMax taps, centered.
	filter := make([][bsincPhaseCount][]float64, bsincScaleCount)
	besselBeta := mathutil.BesselI0(hdr.beta)

	for si := range bsincScaleCount {
		a := hdr.a[si]
		m := hdr.m[si]
		l := math.Floor(float64(m)*0.5) - 1
		o := (pointsMax - m) / 2
		scale := mathutil.Lerp(hdr.scaleBase, 1, float64(si+1)/bsincScaleCount)

		// Past the scale limit the transition band is allowed to wrap
		// around Nyquist, keeping the cutoff fixed while the width grows.
		maxCutoff := (0.5 - hdr.scaleBase) * scale
		width := hdr.scaleBase * math.Max(hdr.scaleLimit, scale)
		cutoff2 := math.Min(maxCutoff, (scale-width)*0.5) * 2

		for pi := range bsincPhaseCount {
			taps := make([]float64, pointsMax)
			phase := l + float64(pi)/bsincPhaseCount
			for i := range m {
				x := float64(i) - phase
				taps[o+i] = mathutil.Kaiser(hdr.beta, x/a, besselBeta) * cutoff2 *
					mathutil.Sinc(cutoff2*x)
			}
			filter[si][pi] = taps
		}
	}

	t := &bsincTable{
		scaleBase:  float32(hdr.scaleBase),
		scaleRange: float32(1 / (1 - hdr.scaleBase)),
		tab:        make([]float32, 0, hdr.totalSize),
	}

	for si := range bsincScaleCount {
		m := padTo4(hdr.m[si])
		o := (pointsMax - m) / 2
		t.m[si] = m
		if si > 0 {
			t.filterOffset[si] = t.filterOffset[si-1] + t.m[si-1]*4*bsincPhaseCount
		}

		cur := filter[si]
		for pi := range bsincPhaseCount {
			for i := range m {
				t.tab = append(t.tab, float32(cur[pi][o+i]))
			}
			t.tab = appendPhaseDeltas(t.tab, &cur, pi, o, m)
		}

		if si == bsincScaleCount-1 {
			// The last scale has no scale deltas.
			t.tab = append(t.tab, make([]float32, bsincPhaseCount*m*2)...)
			continue
		}

		next := filter[si+1]
		for pi := range bsincPhaseCount {
			for i := range m {
				t.tab = append(t.tab, float32(next[pi][o+i]-cur[pi][o+i]))
			}
			if pi < bsincPhaseCount-1 {
				for i := range m {
					t.tab = append(t.tab, float32((next[pi+1][o+i]-next[pi][o+i])-
						(cur[pi+1][o+i]-cur[pi][o+i])))
				}
				continue
			}
			t.tab = append(t.tab, float32(-next[pi][o]+cur[pi][o]))
			for i := 1; i < m; i++ {
				t.tab = append(t.tab, float32((next[0][o+i-1]-next[pi][o+i])-
					(cur[0][o+i-1]-cur[pi][o+i])))
			}
		}
	}

	if len(t.tab) != hdr.totalSize {
		panic("resample: bsinc table size mismatch")
	}
	return t
}

// appendPhaseDeltas appends the per-tap difference toward the next phase.
// The last phase targets the first phase shifted by one tap.
func appendPhaseDeltas(tab []float32, f *[bsincPhaseCount][]float64, pi, o, m int) []float32 {
	if pi < bsincPhaseCount-1 {
		for i := range m {
			tab = append(tab, float32(f[pi+1][o+i]-f[pi][o+i]))
		}
		return tab
	}
	tab = append(tab, float32(-f[pi][o]))
	for i := 1; i < m; i++ {
		tab = append(tab, float32(f[0][o+i-1]-f[pi][o+i]))
	}
	return tab
}

var (
	bsinc12 = sync.OnceValue(func() *bsincTable {
		return newBSincTable(bsinc12Rejection, bsinc12Order, bsincMaxScale)
	})
	bsinc24 = sync.OnceValue(func() *bsincTable {
		return newBSincTable(bsinc24Rejection, bsinc24Order, bsincMaxScale)
	})
)

// bsincState selects the filter slice for one playback increment.
type bsincState struct {
	sf     float32 // scale interpolation factor
	m      int     // taps
	l      int     // taps before the current sample
	filter []float32
}

func (s *bsincState) prepare(increment uint32, table *bsincTable) {
	si := bsincScaleCount - 1
	var sf float32

	if increment > FracOne {
		sf = float32(FracOne) / float32(increment)
		sf = max(0, (bsincScaleCount-1)*(sf-table.scaleBase)*table.scaleRange)
		si = int(sf)
		// Fit to a diagonally symmetric curve to reduce ripple from mixing
		// two scales of the sinc.
		sf = 1 - float32(math.Cos(math.Asin(float64(sf-float32(si)))))
	}

	s.sf = sf
	s.m = table.m[si]
	s.l = s.m/2 - 1
	s.filter = table.tab[table.filterOffset[si]:]
}
