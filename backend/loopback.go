package backend

import "sync"

// Loopback hands rendering to the application: nothing pulls on its own,
// and Render forwards to the device while the backend is started.
type Loopback struct {
	mu     sync.RWMutex
	format Format
	r      Renderer
}

// NewLoopback returns a loopback backend.
func NewLoopback() *Loopback {
	return &Loopback{}
}

func (l *Loopback) Name() string { return "loopback" }

func (l *Loopback) Open(want Format) (Format, error) {
	if err := want.Validate(); err != nil {
		return Format{}, err
	}
	l.mu.Lock()
	l.format = want
	l.mu.Unlock()
	return want, nil
}

func (l *Loopback) Start(r Renderer) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.r != nil {
		return ErrRunning
	}
	l.r = r
	return nil
}

func (l *Loopback) Stop() error {
	l.mu.Lock()
	l.r = nil
	l.mu.Unlock()
	return nil
}

func (l *Loopback) Close() error {
	return l.Stop()
}

// Render pulls frames from the started renderer into out, or fills out
// with silence when stopped. It reports whether a renderer produced the
// data.
func (l *Loopback) Render(out []byte, frames int) bool {
	l.mu.RLock()
	r := l.r
	f := l.format
	l.mu.RUnlock()
	if r == nil {
		clear(out[:frames*f.FrameSize()])
		return false
	}
	r.Render(out, frames)
	return true
}
