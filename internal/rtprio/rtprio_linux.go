//go:build linux

package rtprio

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func raise(level int) (Method, error) {
	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_RR,
		Priority: uint32(level),
	}
	rtErr := unix.SchedSetAttr(0, &attr, 0)
	if rtErr == nil {
		return RealTime, nil
	}

	if err := unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), niceValue); err != nil {
		return None, fmt.Errorf("%w: sched_setattr: %w, setpriority: %w", ErrDenied, rtErr, err)
	}
	return Nice, nil
}
