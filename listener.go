package mixer

import "math"

// listenerProps is the listener snapshot handed to the mixer.
type listenerProps struct {
	position      [3]float32
	velocity      [3]float32
	orientAt      [3]float32
	orientUp      [3]float32
	gain          float32
	metersPerUnit float32
}

func defaultListenerProps() listenerProps {
	return listenerProps{
		orientAt:      [3]float32{0, 0, -1},
		orientUp:      [3]float32{0, 1, 0},
		gain:          1,
		metersPerUnit: 1,
	}
}

// Listener is the point of view of a context. Each context has exactly one.
type Listener struct {
	ctx *Context
	p   listenerProps
}

func finite3(v [3]float32) bool {
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return false
		}
	}
	return true
}

func finite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}

func (l *Listener) set(fn func(p *listenerProps) error) error {
	c := l.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	p := l.p
	if err := fn(&p); err != nil {
		return c.setError(err)
	}
	l.p = p
	c.listenerChanged()
	return nil
}

// SetPosition moves the listener.
func (l *Listener) SetPosition(x, y, z float32) error {
	return l.set(func(p *listenerProps) error {
		v := [3]float32{x, y, z}
		if !finite3(v) {
			return newError(InvalidValue, "listener position out of range")
		}
		p.position = v
		return nil
	})
}

// SetVelocity sets the velocity used for the Doppler shift.
func (l *Listener) SetVelocity(x, y, z float32) error {
	return l.set(func(p *listenerProps) error {
		v := [3]float32{x, y, z}
		if !finite3(v) {
			return newError(InvalidValue, "listener velocity out of range")
		}
		p.velocity = v
		return nil
	})
}

// SetOrientation sets the "at" and "up" vectors.
func (l *Listener) SetOrientation(at, up [3]float32) error {
	return l.set(func(p *listenerProps) error {
		if !finite3(at) || !finite3(up) {
			return newError(InvalidValue, "listener orientation out of range")
		}
		p.orientAt = at
		p.orientUp = up
		return nil
	})
}

// SetGain sets the master gain of the context, 0 or more.
func (l *Listener) SetGain(g float32) error {
	return l.set(func(p *listenerProps) error {
		if !(g >= 0) || !finite(g) {
			return newError(InvalidValue, "listener gain %g out of range", g)
		}
		p.gain = g
		return nil
	})
}

// SetMetersPerUnit sets the world scale used for air absorption and
// reverb decay.
func (l *Listener) SetMetersPerUnit(m float32) error {
	return l.set(func(p *listenerProps) error {
		if !(m > 0) || !finite(m) {
			return newError(InvalidValue, "meters per unit %g out of range", m)
		}
		p.metersPerUnit = m
		return nil
	})
}

func (l *Listener) get() listenerProps {
	l.ctx.mu.Lock()
	defer l.ctx.mu.Unlock()
	return l.p
}

// Position returns the listener position.
func (l *Listener) Position() [3]float32 { return l.get().position }

// Velocity returns the listener velocity.
func (l *Listener) Velocity() [3]float32 { return l.get().velocity }

// Orientation returns the "at" and "up" vectors.
func (l *Listener) Orientation() (at, up [3]float32) {
	p := l.get()
	return p.orientAt, p.orientUp
}

// Gain returns the master gain.
func (l *Listener) Gain() float32 { return l.get().gain }

// MetersPerUnit returns the world scale.
func (l *Listener) MetersPerUnit() float32 { return l.get().metersPerUnit }
