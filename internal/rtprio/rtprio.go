// Package rtprio raises the scheduling priority of the calling thread for
// the mixer goroutine. Callers must hold the thread with
// runtime.LockOSThread for the change to stay with the goroutine.
package rtprio

import "errors"

var (
	// ErrDenied is returned when the system refused every method tried.
	ErrDenied = errors.New("rtprio: priority change denied")
	// ErrUnsupported is returned on systems without a priority mechanism.
	ErrUnsupported = errors.New("rtprio: unsupported on this system")
)

// Method reports how the priority was raised.
type Method int

const (
	None Method = iota
	RealTime
	Nice
)

func (m Method) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Nice:
		return "nice"
	default:
		return "none"
	}
}

// MaxLevel bounds the requested real-time priority.
const MaxLevel = 99

// niceValue is the fallback when real-time scheduling is refused.
const niceValue = -10

// Raise asks for round-robin real-time scheduling at level for the current
// thread, falling back to a negative nice value. A level of zero or less
// leaves the thread alone.
func Raise(level int) (Method, error) {
	if level <= 0 {
		return None, nil
	}
	return raise(min(level, MaxLevel))
}
