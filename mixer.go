package mixer

import (
	"cmp"
	"slices"

	"github.com/tphakala/go-audio-mixer/internal/effects"
	"github.com/tphakala/go-audio-mixer/internal/mathutil"
	"github.com/tphakala/go-audio-mixer/internal/voice"
)

// mixState is the mixer's view of a context: the last listener snapshot
// with its derived transform, and the order effect slots are run in.
type mixState struct {
	props        contextProps
	matrix       mathutil.Matrix
	velocity     mathutil.Vector
	speedOfSound float32

	slots  *[]*EffectSlot // list order was built from
	order  []*EffectSlot
	resort bool

	effectsGen uint64
}

func (m *mixState) init() {
	m.apply(&contextProps{
		listener:        defaultListenerProps(),
		dopplerFactor:   1,
		dopplerVelocity: DefaultDopplerVel,
		speedOfSound:    DefaultSpeedOfSound,
		distanceModel:   DistanceInverseClamped,
	})
}

// mixDepth is depth as seen by the mixer.
func (s *EffectSlot) mixDepth() int {
	d := 0
	for p := s.mix.target; p != nil; p = p.mix.target {
		d++
	}
	return d
}

// updateSlotState hands the slot's current settings and output bus to its
// effect.
func (d *Device) updateSlotState(s *EffectSlot) {
	t := effects.Target{Main: d.dry, RealOut: d.realOut}
	if s.mix.target != nil {
		t = effects.Target{Main: s.mix.target.wet}
	}
	s.mix.state.Update(d.effectDevice(), s.mix.gain, s.mix.props, t)
}

// processContext mixes n samples of c into the device buses. It runs on
// the mixer goroutine.
func (d *Device) processContext(c *Context, n int) {
	m := &c.mix
	slots := c.active.Load()
	if slots != m.slots {
		m.slots = slots
		m.resort = true
	}

	if !c.hold.Load() {
		force := false
		refresh := false
		if gen := d.effectsGen.Load(); gen != m.effectsGen {
			m.effectsGen = gen
			refresh = true
		}
		if node := c.update.Take(); node != nil {
			m.apply(&node.Value)
			node.Value = contextProps{}
			c.ctxFree.Push(node)
			force = true
		}
		for _, s := range *slots {
			target := s.mix.target
			if s.applyUpdate() {
				force = true
				if s.mix.target != target {
					m.resort = true
				}
				d.updateSlotState(s)
			} else if refresh {
				d.updateSlotState(s)
			}
		}
		for _, mv := range *c.voices.Load() {
			d.calcSourceParams(c, mv, force)
		}
	}

	for _, s := range *slots {
		s.wet.Clear(n)
	}

	for _, mv := range *c.voices.Load() {
		st := mv.State()
		if st == voice.Pending {
			if !mv.hasProps {
				// Started while updates were held.
				d.calcSourceParams(c, mv, true)
			}
			if mv.CompareAndSwapState(voice.Pending, voice.Playing) {
				st = voice.Playing
			} else {
				st = mv.State()
			}
		}
		if st != voice.Playing && st != voice.Stopping {
			continue
		}
		mv.Mix(st, &d.scratch, n, &mv.events)
		if mv.State() == voice.Stopped {
			mv.events.flush()
		}
	}

	if m.resort {
		// Slots feeding others run first so their output is complete when
		// the target processes it.
		m.order = append(m.order[:0], *slots...)
		slices.SortStableFunc(m.order, func(a, b *EffectSlot) int {
			return cmp.Compare(b.mixDepth(), a.mixDepth())
		})
		m.resort = false
	}
	for _, s := range m.order {
		st := s.mix.state
		st.Process(n, s.wet.Buffer, st.OutTarget())
	}
}
