package convert

import "math"

// ditherSeed starts the generator in a state that yields white noise.
const ditherSeed = 22222

// Ditherer adds triangular (TPDF) noise before quantization. The generator
// is a linear congruential one, cheap enough for the mixer thread.
type Ditherer struct {
	seed uint32
}

// NewDitherer returns a ditherer with the standard seed.
func NewDitherer() *Ditherer {
	return &Ditherer{seed: ditherSeed}
}

func (d *Ditherer) next() uint32 {
	d.seed = d.seed*96314165 + 907633515
	return d.seed
}

// QuantScale converts a dither depth in bits to the quantization scale.
func QuantScale(bits int) float32 {
	if bits <= 0 {
		return 0
	}
	return float32(math.Ldexp(1, bits-1))
}

// Apply dithers the first n samples of each line to the quantization scale
// (2^(bits-1)), rounding to the quantized grid.
func (d *Ditherer) Apply(lines [][]float32, quantScale float32, n int) {
	if quantScale <= 0 {
		return
	}
	invScale := 1 / quantScale
	for _, line := range lines {
		for i, v := range line[:n] {
			val := v * quantScale
			rng0 := d.next()
			rng1 := d.next()
			val += float32(float64(rng0)/math.MaxUint32 - float64(rng1)/math.MaxUint32)
			line[i] = float32(math.RoundToEven(float64(val))) * invScale
		}
	}
}
