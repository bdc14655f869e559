package simdops

import "math"

// GainSilenceThreshold is the gain below which a steady mix is skipped
// (about -100dB).
const GainSilenceThreshold = 0.00001

// MixLine adds in, scaled by a gain moving linearly from *cur to target over
// counter samples, into out. *cur is left at the gain reached, which is
// target once the fade completes inside this call.
func MixLine(in, out []float32, cur *float32, target float32, counter int) {
	var delta float32
	if counter > 0 {
		delta = 1 / float32(counter)
	}
	fadeLen := min(counter, len(in))
	mixLine(in, out, cur, target, delta, fadeLen, counter)
}

// Mix adds in to each line of out starting at outPos, fading every line's
// gain from cur[i] to target[i] over counter samples.
func Mix(in []float32, out [][]float32, cur, target []float32, counter, outPos int) {
	var delta float32
	if counter > 0 {
		delta = 1 / float32(counter)
	}
	fadeLen := min(counter, len(in))
	for i, line := range out {
		mixLine(in, line[outPos:], &cur[i], target[i], delta, fadeLen, counter)
	}
}

func mixLine(in, out []float32, cur *float32, target, delta float32, fadeLen, counter int) {
	step := (target - *cur) * delta
	pos := 0
	if math.Abs(float64(step)) > 1.1920929e-07 {
		gain := *cur
		var n float32
		for ; pos < fadeLen; pos++ {
			out[pos] += in[pos] * (gain + step*n)
			n++
		}
		if fadeLen < counter {
			*cur = gain + step*n
			return
		}
	}
	*cur = target
	if !(math.Abs(float64(target)) > GainSilenceThreshold) {
		return
	}
	rest := in[pos:]
	dst := out[pos : pos+len(rest)]
	for i, s := range rest {
		dst[i] += s * target
	}
}
