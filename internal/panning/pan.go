package panning

import (
	"math"
	"slices"
)

type ringSpeaker struct {
	index   int
	azimuth float32
}

// ring returns the non-LFE speakers of l sorted by azimuth.
func (l Layout) ring() []ringSpeaker {
	var r []ringSpeaker
	for i, s := range l.Speakers() {
		if s.Channel == LFE {
			continue
		}
		r = append(r, ringSpeaker{i, s.Azimuth})
	}
	slices.SortFunc(r, func(a, b ringSpeaker) int {
		switch {
		case a.azimuth < b.azimuth:
			return -1
		case a.azimuth > b.azimuth:
			return 1
		}
		return 0
	})
	return r
}

var rings = func() [len(layoutSpeakers)][]ringSpeaker {
	var r [len(layoutSpeakers)][]ringSpeaker
	for l := range r {
		r[l] = Layout(l).ring()
	}
	return r
}()

// wrapDegrees folds a into [-180, 180).
func wrapDegrees(a float32) float32 {
	a = float32(math.Mod(float64(a)+180, 360))
	if a < 0 {
		a += 360
	}
	return a - 180
}

// ComputeDirectGains writes speaker gains for a point source into out
// (one per output channel of l) using pairwise equal-power panning between
// the two speakers adjacent to azimuth. Elevation and spread blend towards
// an even spread across the ring with the total power unchanged. Angles are
// in radians, azimuth negative to the left.
func ComputeDirectGains(l Layout, azimuth, elevation, spread, gain float32, out []float32) {
	clear(out[:l.Count()])
	if l.IsAmbisonic() {
		c := CalcAngleCoeffs(azimuth, elevation, spread)
		for i := range c {
			out[i] = c[i] * gain
		}
		return
	}
	r := rings[l]
	if len(r) == 1 {
		out[r[0].index] = gain
		return
	}

	az := wrapDegrees(float32(float64(azimuth) * 180 / math.Pi))
	pair := [2]int{}
	var frac float32
	if len(r) == 2 {
		// Fold the rear half onto the front arc.
		if az > 90 {
			az = 180 - az
		} else if az < -90 {
			az = -180 - az
		}
		lo, hi := r[0].azimuth, r[1].azimuth
		az = min(max(az, lo), hi)
		pair = [2]int{0, 1}
		frac = (az - lo) / (hi - lo)
	} else {
		pair, frac = findArc(r, az)
	}

	n := float32(len(r))
	h := float32(math.Cos(float64(elevation)))
	h2 := h * h
	s := min(max(spread/(2*math.Pi), 0), 1)
	ga := float32(math.Cos(float64(frac) * math.Pi / 2))
	gb := float32(math.Sin(float64(frac) * math.Pi / 2))
	for i, sp := range r {
		var p float32
		switch i {
		case pair[0]:
			p = ga
		case pair[1]:
			p = gb
		}
		p2 := h2*((1-s)*p*p+s/n) + (1-h2)/n
		out[sp.index] = float32(math.Sqrt(float64(p2))) * gain
	}
}

// findArc locates the ring segment holding az and the position inside it.
func findArc(r []ringSpeaker, az float32) ([2]int, float32) {
	last := len(r) - 1
	for i := range last {
		a, b := r[i].azimuth, r[i+1].azimuth
		if az >= a && az <= b {
			return [2]int{i, i + 1}, (az - a) / (b - a)
		}
	}
	// Across the back, from the last speaker through 180 to the first.
	a, b := r[last].azimuth, r[0].azimuth+360
	if az < r[0].azimuth {
		az += 360
	}
	return [2]int{last, 0}, (az - a) / (b - a)
}
