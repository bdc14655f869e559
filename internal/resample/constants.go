package resample

// Fixed-point playback position.
const (
	// FracBits is the number of fractional bits in a playback position.
	FracBits = 16
	// FracOne is a step of exactly one source sample.
	FracOne = 1 << FracBits
	// FracMask isolates the fractional part of a position.
	FracMask = FracOne - 1
)

// Buffer geometry.
const (
	// BufferLineSize is the number of samples in one mixing line.
	BufferLineSize = 1024

	// MaxPadding is the most source samples a kernel reads around the
	// current position: up to MaxEdge-1 before it and MaxEdge after it.
	MaxPadding = 48

	// MaxEdge is the number of history samples kept ahead of the current
	// position in a source window. Index MaxEdge of a window is the current
	// sample.
	MaxEdge = MaxPadding / 2

	// WindowSize is the length of the scratch window a voice resamples from.
	WindowSize = BufferLineSize + MaxPadding

	// maxSourceSize is the most samples that may be loaded after the
	// history, including right padding.
	maxSourceSize = WindowSize - MaxEdge
)

// MaxPitch bounds the pitch ratio so that MaxPitch<<FracBits fits a step
// and the source window for a full line stays computable in 64 bits.
const MaxPitch = 10

// MaxStep is the largest playback increment a voice may use.
const MaxStep = MaxPitch << FracBits

// Band-limited sinc table layout.
const (
	bsincScaleBits  = 4
	bsincScaleCount = 1 << bsincScaleBits
	bsincPhaseBits  = 5
	bsincPhaseCount = 1 << bsincPhaseBits

	bsincPhaseDiffBits = FracBits - bsincPhaseBits
	bsincPhaseDiffOne  = 1 << bsincPhaseDiffBits
	bsincPhaseDiffMask = bsincPhaseDiffOne - 1
)

// Filter designs: stopband rejection in dB, order, and the largest
// downsampling factor the filter grows to cover.
const (
	bsinc12Rejection = 60
	bsinc12Order     = 11
	bsinc24Rejection = 60
	bsinc24Order     = 23
	bsincMaxScale    = 2
)

// Catmull-Rom (cubic Hermite) basis coefficients.
const (
	hermiteCoeff0_5 = 0.5
	hermiteCoeff1_5 = 1.5
	hermiteCoeff2_5 = 2.5
)

// fracScale converts a fixed-point fraction to [0, 1).
const fracScale = 1.0 / FracOne
