package mixer

import (
	"cmp"
	"log"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/tphakala/go-audio-mixer/internal/effects"
	"github.com/tphakala/go-audio-mixer/internal/freelist"
	"github.com/tphakala/go-audio-mixer/internal/voice"
)

// Speed of sound defaults, in units per second.
const (
	DefaultSpeedOfSound = 343.3
	DefaultDopplerVel   = 1
)

// contextProps is the listener and world snapshot handed to the mixer.
type contextProps struct {
	listener            listenerProps
	dopplerFactor       float32
	dopplerVelocity     float32
	speedOfSound        float32
	distanceModel       DistanceModel
	sourceDistanceModel bool
}

// mixVoice is a voice plus the mailbox that carries its source's settings.
type mixVoice struct {
	voice.Voice

	update freelist.Slot[sourceProps]
	events voiceEvents

	// Mixer owned.
	props    sourceProps
	hasProps bool
}

// Context is a set of sources, effect slots and a listener rendered
// together by a device. Its methods are safe for concurrent use; every
// object a context creates shares its lock.
type Context struct {
	dev *Device
	cfg ContextConfig
	log *log.Logger

	mu            sync.Mutex
	sources       *idTable[*Source]
	slots         *idTable[*EffectSlot]
	listener      Listener
	props         contextProps
	deferring     bool
	listenerDirty bool
	dirtySources  []*Source
	dirtySlots    []*EffectSlot
	defaultSlot   *EffectSlot
	destroyed     bool

	voices atomic.Pointer[[]*mixVoice]
	active atomic.Pointer[[]*EffectSlot]
	hold   atomic.Bool

	update     freelist.Slot[contextProps]
	ctxFree    freelist.List[contextProps]
	sourceFree freelist.List[sourceProps]
	slotFree   freelist.List[slotProps]

	events    *eventQueue
	lastError atomic.Int32

	// Mixer owned.
	mix mixState
}

func newContext(dev *Device, cfg ContextConfig) *Context {
	cfg = cfg.withDefaults()
	c := &Context{
		dev:     dev,
		cfg:     cfg,
		log:     dev.log,
		sources: newIDTable[*Source](cfg.MaxSources),
		slots:   newIDTable[*EffectSlot](cfg.MaxEffectSlots),
		props: contextProps{
			dopplerFactor:   1,
			dopplerVelocity: DefaultDopplerVel,
			speedOfSound:    DefaultSpeedOfSound,
			distanceModel:   DistanceInverseClamped,
		},
		events: newEventQueue(cfg.EventQueueSize),
	}
	c.listener = Listener{ctx: c, p: defaultListenerProps()}
	c.events.mask.Store(uint32(MaskAll))
	voices := make([]*mixVoice, 0, min(cfg.MaxSources, 64))
	c.voices.Store(&voices)

	if cfg.DefaultSlot {
		c.defaultSlot = newEffectSlot(c, 0)
	}
	c.publishSlots()
	c.publishContext()
	c.mix.init()
	return c
}

// setError records err as the context's last error if none is pending and
// returns it. Callers hold mu.
func (c *Context) setError(err error) error {
	if e, ok := err.(*Error); ok {
		c.lastError.CompareAndSwap(int32(NoError), int32(e.Code))
	}
	return err
}

// LastError returns and clears the first error recorded since the last
// call. Every failing call also returns its error directly.
func (c *Context) LastError() ErrorCode {
	return ErrorCode(c.lastError.Swap(int32(NoError)))
}

// Device returns the device rendering the context.
func (c *Context) Device() *Device {
	return c.dev
}

// Listener returns the context's listener.
func (c *Context) Listener() *Listener {
	return &c.listener
}

// DefaultEffectSlot returns the slot fed by send 0 of sources that route
// no slot there, or nil when the context was created without one.
func (c *Context) DefaultEffectSlot() *EffectSlot {
	return c.defaultSlot
}

// NewSource creates a source.
func (c *Context) NewSource() (*Source, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return nil, c.setError(newError(InvalidOperation, "context destroyed"))
	}
	s, err := c.sources.add(func(id uint32) *Source {
		return &Source{
			ctx:   c,
			id:    id,
			p:     defaultSourceProps(c.dev.engine.Resampler),
			state: Initial,
		}
	})
	if err != nil {
		return nil, c.setError(err)
	}
	return s, nil
}

// DeleteSource stops s and releases its buffers and sends.
func (c *Context) DeleteSource(s *Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == nil || s.ctx != c {
		return c.setError(newError(InvalidName, "source not in this context"))
	}
	if cur, ok := c.sources.get(s.id); !ok || cur != s {
		return c.setError(newError(InvalidName, "source %d already deleted", s.id))
	}
	s.stopVoice()
	s.clearQueue()
	for i := range s.p.sends {
		if sl := s.p.sends[i].slot; sl != nil {
			sl.refs--
			s.p.sends[i].slot = nil
		}
	}
	c.sources.remove(s.id)
	return nil
}

// Source looks up a source by ID.
func (c *Context) Source(id uint32) (*Source, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sources.get(id)
}

// NewEffectSlot creates an effect slot holding the null effect.
func (c *Context) NewEffectSlot() (*EffectSlot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return nil, c.setError(newError(InvalidOperation, "context destroyed"))
	}
	s, err := c.slots.add(func(id uint32) *EffectSlot {
		return newEffectSlot(c, id)
	})
	if err != nil {
		return nil, c.setError(err)
	}
	c.publishSlots()
	return s, nil
}

// DeleteEffectSlot removes s. A slot still used by a source send or as
// another slot's target cannot be deleted.
func (c *Context) DeleteEffectSlot(s *EffectSlot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == nil || s.ctx != c || s == c.defaultSlot {
		return c.setError(newError(InvalidName, "slot not deletable in this context"))
	}
	if cur, ok := c.slots.get(s.id); !ok || cur != s {
		return c.setError(newError(InvalidName, "slot %d already deleted", s.id))
	}
	if s.refs > 0 {
		return c.setError(newError(InvalidOperation, "slot %d is in use by %d referrers", s.id, s.refs))
	}
	if s.target != nil {
		s.target.refs--
		s.target = nil
	}
	if s.buffer != nil {
		s.buffer.release()
		s.buffer = nil
	}
	c.slots.remove(s.id)
	c.publishSlots()
	// The mixer may still be processing the old list.
	c.dev.waitForMix()
	return nil
}

// publishSlots hands the mixer the slots in processing order: slots that
// feed other slots run before their targets. Callers hold mu.
func (c *Context) publishSlots() {
	list := make([]*EffectSlot, 0, c.slots.len()+1)
	if c.defaultSlot != nil {
		list = append(list, c.defaultSlot)
	}
	c.slots.each(func(_ uint32, s *EffectSlot) {
		list = append(list, s)
	})
	slices.SortStableFunc(list, func(a, b *EffectSlot) int {
		if d := cmp.Compare(b.depth(), a.depth()); d != 0 {
			return d
		}
		return cmp.Compare(a.id, b.id)
	})
	c.active.Store(&list)
}

// publishContext hands the mixer the listener and world settings.
func (c *Context) publishContext() {
	n := c.ctxFree.Get()
	p := c.props
	p.listener = c.listener.p
	n.Value = p
	c.listenerDirty = false
	c.update.Publish(n, &c.ctxFree)
}

func (c *Context) listenerChanged() {
	if c.deferring {
		c.listenerDirty = true
		return
	}
	c.publishContext()
}

// slotChanged publishes s, or queues it while updates are deferred. st,
// when set, replaces the slot's effect state.
func (c *Context) slotChanged(s *EffectSlot, st effects.State) {
	if st != nil {
		s.state = st
	}
	if c.deferring {
		if !s.dirty {
			s.dirty = true
			c.dirtySlots = append(c.dirtySlots, s)
		}
		return
	}
	s.publish()
}

func (c *Context) sourceChanged(s *Source) {
	if c.deferring {
		if !s.dirty {
			s.dirty = true
			c.dirtySources = append(c.dirtySources, s)
		}
		return
	}
	s.publish()
}

func (c *Context) setProp(fn func(p *contextProps) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.props
	if err := fn(&p); err != nil {
		return c.setError(err)
	}
	c.props = p
	c.listenerChanged()
	return nil
}

// SetDopplerFactor scales every Doppler shift, 0 or more.
func (c *Context) SetDopplerFactor(f float32) error {
	return c.setProp(func(p *contextProps) error {
		if !(f >= 0) || !finite(f) {
			return newError(InvalidValue, "doppler factor %g out of range", f)
		}
		p.dopplerFactor = f
		return nil
	})
}

// SetDopplerVelocity scales the speed of sound for Doppler shifts.
func (c *Context) SetDopplerVelocity(v float32) error {
	return c.setProp(func(p *contextProps) error {
		if !(v >= 0) || !finite(v) {
			return newError(InvalidValue, "doppler velocity %g out of range", v)
		}
		p.dopplerVelocity = v
		return nil
	})
}

// SetSpeedOfSound sets the speed of sound in units per second.
func (c *Context) SetSpeedOfSound(v float32) error {
	return c.setProp(func(p *contextProps) error {
		if !(v > 0) || !finite(v) {
			return newError(InvalidValue, "speed of sound %g out of range", v)
		}
		p.speedOfSound = v
		return nil
	})
}

// SetDistanceModel sets the distance model used by every source, unless
// per-source models are enabled.
func (c *Context) SetDistanceModel(m DistanceModel) error {
	return c.setProp(func(p *contextProps) error {
		if !m.Valid() {
			return newError(InvalidEnum, "distance model %d", int(m))
		}
		p.distanceModel = m
		return nil
	})
}

// SetSourceDistanceModel lets each source's own distance model apply.
func (c *Context) SetSourceDistanceModel(on bool) error {
	return c.setProp(func(p *contextProps) error {
		p.sourceDistanceModel = on
		return nil
	})
}

func (c *Context) getProps() contextProps {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.props
}

func (c *Context) DopplerFactor() float32       { return c.getProps().dopplerFactor }
func (c *Context) DopplerVelocity() float32     { return c.getProps().dopplerVelocity }
func (c *Context) SpeedOfSound() float32        { return c.getProps().speedOfSound }
func (c *Context) DistanceModel() DistanceModel { return c.getProps().distanceModel }
func (c *Context) SourceDistanceModel() bool    { return c.getProps().sourceDistanceModel }

// DeferUpdates holds back property changes until ProcessUpdates, so a
// batch of changes reaches the mixer at once.
func (c *Context) DeferUpdates() {
	c.mu.Lock()
	c.deferring = true
	c.mu.Unlock()
}

// ProcessUpdates hands every change made since DeferUpdates to the mixer
// in one step.
func (c *Context) ProcessUpdates() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.deferring {
		return
	}
	c.deferring = false

	c.hold.Store(true)
	c.dev.waitForMix()
	if c.listenerDirty {
		c.publishContext()
	}
	for _, s := range c.dirtySlots {
		if s.dirty {
			s.publish()
		}
	}
	for _, s := range c.dirtySources {
		if s.dirty {
			s.publish()
		}
	}
	clear(c.dirtySlots)
	clear(c.dirtySources)
	c.dirtySlots = c.dirtySlots[:0]
	c.dirtySources = c.dirtySources[:0]
	c.hold.Store(false)
}

// SetEventCallback delivers the events selected by mask to fn on a
// dedicated goroutine. A nil fn disables delivery.
func (c *Context) SetEventCallback(mask EventMask, fn func(Event)) {
	c.events.mask.Store(uint32(mask & MaskAll))
	if fn == nil {
		c.events.fn.Store(nil)
		return
	}
	c.events.fn.Store(&fn)
}

// DroppedEvents returns the number of events lost to a full queue.
func (c *Context) DroppedEvents() uint64 {
	return c.events.dropped.Load()
}

// stateEvent reports a state change made by an API call. Callers hold mu.
func (c *Context) stateEvent(id uint32, st SourceState) {
	c.events.push(c.events.api, Event{Type: EventSourceStateChanged, SourceID: id, State: st})
}

// disconnected stops the context's sources after the device was lost.
func (c *Context) disconnected(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events.push(c.events.api, Event{Type: EventDisconnected, Message: reason})
	if c.cfg.KeepVoicesOnDisconnect {
		return
	}
	c.sources.each(func(_ uint32, s *Source) {
		s.syncState()
		if s.state == Playing || s.state == Paused {
			s.stopVoice()
			s.setState(Stopped)
		}
	})
}

// Destroy stops every source and detaches the context from its device.
// Objects of a destroyed context must not be used again.
func (c *Context) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.sources.each(func(_ uint32, s *Source) {
		s.stopVoice()
		s.clearQueue()
	})
	c.slots.each(func(_ uint32, s *EffectSlot) {
		if s.buffer != nil {
			s.buffer.release()
			s.buffer = nil
		}
	})
	c.mu.Unlock()

	c.dev.removeContext(c)
	c.events.close()
}
