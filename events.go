package mixer

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/tphakala/go-audio-mixer/internal/ringbuffer"
)

// EventType identifies an asynchronous notification.
type EventType uint8

const (
	EventBufferCompleted EventType = iota
	EventSourceStateChanged
	EventDisconnected
)

func (t EventType) String() string {
	switch t {
	case EventBufferCompleted:
		return "buffer-completed"
	case EventSourceStateChanged:
		return "source-state-changed"
	case EventDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// EventMask selects the event types delivered to a callback.
type EventMask uint32

const (
	MaskBufferCompleted EventMask = 1 << iota
	MaskSourceStateChanged
	MaskDisconnected

	MaskAll = MaskBufferCompleted | MaskSourceStateChanged | MaskDisconnected
)

func (m EventMask) has(t EventType) bool {
	return m&(1<<t) != 0
}

// Event is one notification. Which fields are set depends on Type:
// BufferCompleted carries SourceID and Count, SourceStateChanged carries
// SourceID and State, and Disconnected carries Message.
type Event struct {
	Type     EventType
	SourceID uint32
	Count    int
	State    SourceState
	Message  string
}

func (e Event) String() string {
	switch e.Type {
	case EventBufferCompleted:
		return fmt.Sprintf("source %d: %d buffer(s) completed", e.SourceID, e.Count)
	case EventSourceStateChanged:
		return fmt.Sprintf("source %d: %v", e.SourceID, e.State)
	default:
		return "disconnected: " + e.Message
	}
}

// eventQueue carries events from the mixer (and, separately, from API calls)
// to a goroutine that runs the application callback. Each ring has a single
// producer: the mixer for mix, callers holding the context lock for api.
// Every event is stamped from one counter so delivery can merge the two
// rings back into enqueue order.
type eventQueue struct {
	mix *ringbuffer.Ring[stampedEvent]
	api *ringbuffer.Ring[stampedEvent]

	seq      atomic.Uint64
	inflight atomic.Int32 // pushes that hold a stamp but may not be visible yet

	mask    atomic.Uint32
	fn      atomic.Pointer[func(Event)]
	dropped atomic.Uint64

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup

	// Consumer side only.
	pending []stampedEvent
	next    uint64
}

type stampedEvent struct {
	seq uint64
	ev  Event
}

func newEventQueue(size int) *eventQueue {
	q := &eventQueue{
		mix:  ringbuffer.New[stampedEvent](size + 1),
		api:  ringbuffer.New[stampedEvent](size + 1),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		next: 1,
	}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *eventQueue) enabled(t EventType) bool {
	return EventMask(q.mask.Load()).has(t)
}

func (q *eventQueue) push(r *ringbuffer.Ring[stampedEvent], ev Event) {
	if !q.enabled(ev.Type) {
		return
	}
	q.inflight.Add(1)
	ok := r.Push(stampedEvent{seq: q.seq.Add(1), ev: ev})
	q.inflight.Add(-1)
	if !ok {
		// The stamp becomes a hole; deliver skips it once nothing is in
		// flight.
		q.dropped.Add(1)
	}
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// collect moves everything waiting in both rings into pending, sorted by
// stamp.
func (q *eventQueue) collect() {
	add := func(e stampedEvent) { q.pending = append(q.pending, e) }
	n := q.api.Drain(add) + q.mix.Drain(add)
	if n > 0 {
		slices.SortFunc(q.pending, func(a, b stampedEvent) int { return cmp.Compare(a.seq, b.seq) })
	}
}

// deliver hands pending events to fn in stamp order. A missing stamp holds
// back everything after it while its push is still in flight; once no push
// is in flight it can only be a dropped event and is skipped. With final
// set, holes are skipped unconditionally.
func (q *eventQueue) deliver(fn func(Event), final bool) {
	q.collect()
	i := 0
	for i < len(q.pending) {
		if q.pending[i].seq != q.next && !final {
			if q.inflight.Load() != 0 {
				// The producer wakes us again after its push.
				break
			}
			q.pending = append(q.pending[:0], q.pending[i:]...)
			i = 0
			q.collect()
		}
		e := q.pending[i]
		i++
		q.next = e.seq + 1
		fn(e.ev)
	}
	q.pending = append(q.pending[:0], q.pending[i:]...)
}

func (q *eventQueue) run() {
	defer q.wg.Done()
	deliver := func(ev Event) {
		if fn := q.fn.Load(); fn != nil && q.enabled(ev.Type) {
			(*fn)(ev)
		}
	}
	for {
		select {
		case <-q.done:
			q.deliver(deliver, true)
			return
		case <-q.wake:
			q.deliver(deliver, false)
		}
	}
}

func (q *eventQueue) close() {
	close(q.done)
	q.wg.Wait()
}

// voiceEvents reports one voice's notifications to its context. The stop
// notice is held back until the voice has run its fade-out pass.
type voiceEvents struct {
	q       *eventQueue
	stopped uint32
}

func (e *voiceEvents) BufferCompleted(sourceID uint32, count int) {
	if sourceID == 0 {
		return
	}
	e.q.push(e.q.mix, Event{Type: EventBufferCompleted, SourceID: sourceID, Count: count})
}

func (e *voiceEvents) SourceStopped(sourceID uint32) {
	e.stopped = sourceID
}

// flush sends a held stop notice.
func (e *voiceEvents) flush() {
	if e.stopped == 0 {
		return
	}
	e.q.push(e.q.mix, Event{Type: EventSourceStateChanged, SourceID: e.stopped, State: Stopped})
	e.stopped = 0
}
