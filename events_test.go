package mixer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueueMergesRingsInOrder(t *testing.T) {
	q := newEventQueue(16)
	defer q.close()

	var (
		mu  sync.Mutex
		got []uint32
	)
	release := make(chan struct{})
	var once sync.Once
	fn := func(ev Event) {
		once.Do(func() { <-release })
		mu.Lock()
		got = append(got, ev.SourceID)
		mu.Unlock()
	}
	q.mask.Store(uint32(MaskAll))
	q.fn.Store(&fn)

	q.push(q.api, Event{Type: EventSourceStateChanged, SourceID: 1})
	time.Sleep(10 * time.Millisecond) // let delivery block in the callback
	q.push(q.mix, Event{Type: EventSourceStateChanged, SourceID: 2})
	q.push(q.api, Event{Type: EventSourceStateChanged, SourceID: 3})
	q.push(q.mix, Event{Type: EventBufferCompleted, SourceID: 4})
	q.push(q.api, Event{Type: EventSourceStateChanged, SourceID: 5})
	close(release)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 5
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, []uint32{1, 2, 3, 4, 5}, got)
}

func TestEventQueueSkipsDroppedEvents(t *testing.T) {
	q := newEventQueue(2)
	defer q.close()
	require.Equal(t, 3, q.mix.Cap())

	var (
		mu  sync.Mutex
		got []uint32
	)
	release := make(chan struct{})
	var once sync.Once
	fn := func(ev Event) {
		once.Do(func() { <-release })
		mu.Lock()
		got = append(got, ev.SourceID)
		mu.Unlock()
	}
	q.mask.Store(uint32(MaskAll))
	q.fn.Store(&fn)

	q.push(q.mix, Event{Type: EventBufferCompleted, SourceID: 1})
	time.Sleep(10 * time.Millisecond)
	// The mix ring holds three records; the fourth push is dropped.
	for id := uint32(2); id <= 5; id++ {
		q.push(q.mix, Event{Type: EventBufferCompleted, SourceID: id})
	}
	q.push(q.api, Event{Type: EventSourceStateChanged, SourceID: 6})
	close(release)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 5
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, []uint32{1, 2, 3, 4, 6}, got)
	assert.Equal(t, uint64(1), q.dropped.Load())
}

// A state change made by the application after the mixer stopped a source
// must reach the callback after the mixer's stop.
func TestStateEventsKeepEnqueueOrder(t *testing.T) {
	d := newTestDevice(t, nil)
	c := newTestContext(t, d)

	var rec eventRecorder
	release := make(chan struct{})
	var once sync.Once
	c.SetEventCallback(MaskSourceStateChanged, func(ev Event) {
		once.Do(func() { <-release })
		rec.add(ev)
	})

	src, err := c.NewSource()
	require.NoError(t, err)
	require.NoError(t, src.SetBuffer(sineBuffer(t, d, 440, 480)))

	require.NoError(t, src.Play())
	for range 4 {
		renderStereo(d, 512)
	}
	require.Equal(t, Stopped, src.State())
	require.NoError(t, src.Play())
	close(release)

	require.Eventually(t, func() bool {
		return len(rec.matching(func(Event) bool { return true })) == 3
	}, 2*time.Second, time.Millisecond)
	var states []SourceState
	for _, ev := range rec.matching(func(Event) bool { return true }) {
		states = append(states, ev.State)
	}
	assert.Equal(t, []SourceState{Playing, Stopped, Playing}, states)
}
