package resample

import (
	"errors"
	"fmt"
)

// ErrInsufficientPadding is returned when a source window is too short for
// the kernel to read the samples it needs.
var ErrInsufficientPadding = errors.New("source window lacks resampler padding")

// SourceSize returns how many destination samples can be produced in one
// pass and how many source samples, right padding included, must be loaded
// after the MaxEdge history samples to produce them. dst is reduced (to a
// multiple of 4) when the full request would not fit a window.
func SourceSize(dst int, frac, increment uint32) (dstOut, src int) {
	if dst <= 0 {
		return 0, 0
	}
	// When upsampling, count from the last written position so the source
	// count is not short by one.
	var ext uint64
	if increment <= FracOne {
		ext = 1
	}
	size := (uint64(dst)-ext)*uint64(increment) + uint64(frac)
	size = size>>FracBits + ext + MaxEdge
	if size <= maxSourceSize {
		return dst, int(size)
	}

	fit := ((uint64(maxSourceSize-MaxEdge) << FracBits) - uint64(frac)) / uint64(increment)
	if fit < uint64(dst) {
		dst = int(fit) &^ 3
	}
	return dst, maxSourceSize
}

// LastPosition returns the source offset, relative to the current sample,
// of the last output sample when producing dst samples.
func LastPosition(dst int, frac, increment uint32) int {
	if dst <= 0 {
		return 0
	}
	return int((uint64(dst-1)*uint64(increment) + uint64(frac)) >> FracBits)
}

// CheckPadding reports whether a window of srcLen samples holds the history
// and right padding every kernel needs to produce dst samples.
func CheckPadding(srcLen, dst int, frac, increment uint32) error {
	if frac > FracMask {
		return fmt.Errorf("%w: fraction %d out of range", ErrInsufficientPadding, frac)
	}
	need := MaxEdge + LastPosition(dst, frac, increment) + MaxEdge + 1
	if srcLen < need {
		return fmt.Errorf("%w: have %d samples, need %d", ErrInsufficientPadding, srcLen, need)
	}
	return nil
}
