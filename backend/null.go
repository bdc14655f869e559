package backend

import (
	"sync"
	"time"
)

// Null renders in real time and discards the result. It keeps a device's
// clock and events running without an audio API.
type Null struct {
	mu     sync.Mutex
	format Format
	opened bool
	stop   chan struct{}
	done   chan struct{}
}

// NewNull returns a null backend.
func NewNull() *Null {
	return &Null{}
}

func (n *Null) Name() string { return "null" }

// Open accepts any valid format.
func (n *Null) Open(want Format) (Format, error) {
	if err := want.Validate(); err != nil {
		return Format{}, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.format = want
	n.opened = true
	return want, nil
}

// Start renders one period every period length until Stop.
func (n *Null) Start(r Renderer) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.opened {
		return ErrNotOpen
	}
	if n.stop != nil {
		return ErrRunning
	}
	n.stop = make(chan struct{})
	n.done = make(chan struct{})
	go pace(n.format, r, n.stop, n.done, nil)
	return nil
}

// Stop waits for the render goroutine to exit.
func (n *Null) Stop() error {
	n.mu.Lock()
	stop, done := n.stop, n.done
	n.stop, n.done = nil, nil
	n.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}

func (n *Null) Close() error {
	err := n.Stop()
	n.mu.Lock()
	n.opened = false
	n.mu.Unlock()
	return err
}

// pace pulls one period per period length, catching up when the scheduler
// falls behind, and hands every rendered period to sink when set.
func pace(f Format, r Renderer, stop <-chan struct{}, done chan<- struct{}, sink func([]byte)) {
	defer close(done)

	buf := make([]byte, f.UpdateSize*f.FrameSize())
	period := time.Duration(f.UpdateSize) * time.Second / time.Duration(f.Frequency)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	start := time.Now()
	var rendered int64
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			due := int64(now.Sub(start) * time.Duration(f.Frequency) / time.Second)
			// Never try to make up more than the buffered periods.
			if due-rendered > int64(f.UpdateSize*f.Periods) {
				rendered = due - int64(f.UpdateSize*f.Periods)
			}
			for rendered+int64(f.UpdateSize) <= due {
				r.Render(buf, f.UpdateSize)
				if sink != nil {
					sink(buf)
				}
				rendered += int64(f.UpdateSize)
			}
		}
	}
}
