package rtprio

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRaiseDisabled(t *testing.T) {
	for _, level := range []int{0, -5} {
		m, err := Raise(level)
		assert.NoError(t, err)
		assert.Equal(t, None, m)
	}
}

func TestRaise(t *testing.T) {
	// Run on a dedicated thread so a granted change does not leak into
	// other tests; the thread exits with the goroutine.
	done := make(chan struct{})
	var (
		m   Method
		err error
	)
	go func() {
		defer close(done)
		runtime.LockOSThread()
		m, err = Raise(1)
	}()
	<-done

	if err != nil {
		assert.True(t, errors.Is(err, ErrDenied) || errors.Is(err, ErrUnsupported), "unexpected error %v", err)
		assert.Equal(t, None, m)
		return
	}
	assert.Contains(t, []Method{RealTime, Nice}, m)
}

func TestMethodString(t *testing.T) {
	assert.Equal(t, "realtime", RealTime.String())
	assert.Equal(t, "nice", Nice.String())
	assert.Equal(t, "none", None.String())
}
