package mathutil

// Bessel series constants
const (
	// besselMaxTerms bounds the power series; arguments used for window
	// design stay below 40, which converges well within this many terms.
	besselMaxTerms = 200

	// besselEpsilon is the relative term size at which summation stops.
	besselEpsilon = 1e-16
)

// Kaiser window formula constants
// From Kaiser & Schafer's empirical formulas
const (
	// Attenuation thresholds for β calculation
	kaiserAttHigh   = 50.0 // High attenuation threshold (dB)
	kaiserAttMedium = 21.0 // Medium attenuation threshold (dB)

	// Kaiser β formula coefficients
	kaiserBetaHighCoeff1 = 0.1102 // Coefficient for high attenuation
	kaiserBetaHighOffset = 8.7    // Offset for high attenuation

	kaiserBetaMediumCoeff1 = 0.5842  // Primary coefficient for medium attenuation
	kaiserBetaMediumPower  = 0.4     // Power for medium attenuation formula
	kaiserBetaMediumCoeff2 = 0.07886 // Secondary coefficient for medium attenuation
)

// Kaiser transition width constants: width = (att - 7.95) / (2.285 * 2π * order)
const (
	kaiserWidthOffset     = 7.95
	kaiserWidthMultiplier = 2.285
)

// sincZeroThreshold is the |x| below which sinc(x) is taken as 1.
const sincZeroThreshold = 1e-9

// Common division constants
const (
	halfDivisor = 2.0 // Division by 2
)
