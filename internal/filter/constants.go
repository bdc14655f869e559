package filter

// Biquad design constants
const (
	// minBiquadGain limits shelf and peaking gains to -100dB.
	minBiquadGain = 0.00001

	// bandPassChunk is the scratch size used when chaining two biquads.
	bandPassChunk = 256
)

// Window and FIR design constants
const (
	minFilterTaps = 3
	maxFilterTaps = 8191

	windowNormalizationFactor = 2.0
	sincCenterTap             = 1.0
	sincZeroThreshold         = 1e-10
)

// splitterCosEpsilon guards the band splitter coefficient against a zero cosine.
const splitterCosEpsilon = 1.192092896e-07

// NFC filter Bessel polynomial coefficients, indexed by order.
var nfcBessel = [5][4]float32{
	{},
	{1.0},
	{3.0, 3.0},
	{3.6778, 6.4595, 2.3222},
	{4.2076, 11.4877, 5.7924, 9.1401},
}
