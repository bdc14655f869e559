//go:build !linux

package rtprio

func raise(int) (Method, error) {
	return None, ErrUnsupported
}
