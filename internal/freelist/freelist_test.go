package freelist

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPopLIFO(t *testing.T) {
	var l List[int]
	assert.Nil(t, l.Pop())
	for i := range 3 {
		l.Push(&Node[int]{Value: i})
	}
	assert.Equal(t, 3, l.Len())
	for want := 2; want >= 0; want-- {
		n := l.Pop()
		require.NotNil(t, n)
		assert.Equal(t, want, n.Value)
	}
	assert.NotNil(t, l.Get(), "empty list allocates")
}

func TestTakeAllOldestFirst(t *testing.T) {
	var l List[int]
	assert.Nil(t, l.TakeAll())
	for i := range 4 {
		l.Push(&Node[int]{Value: i})
	}
	var got []int
	for n := l.TakeAll(); n != nil; n = n.Next() {
		got = append(got, n.Value)
	}
	assert.Equal(t, []int{0, 1, 2, 3}, got)
	assert.Zero(t, l.Len())
}

func TestSlotPublishRecycles(t *testing.T) {
	var (
		free List[string]
		s    Slot[string]
	)
	a := free.Get()
	a.Value = "first"
	s.Publish(a, &free)
	assert.True(t, s.Pending())

	b := free.Get()
	b.Value = "second"
	s.Publish(b, &free)
	assert.Equal(t, 1, free.Len(), "replaced snapshot goes back to the list")

	got := s.Take()
	require.NotNil(t, got)
	assert.Equal(t, "second", got.Value)
	assert.Nil(t, s.Take())
	assert.False(t, s.Pending())
}

func TestConcurrentPublishTake(t *testing.T) {
	var (
		free List[int]
		s    Slot[int]
		mu   sync.Mutex
		wg   sync.WaitGroup
	)
	const writers, writes = 4, 2000
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range writes {
				mu.Lock()
				n := free.Get()
				mu.Unlock()
				n.Value = w*writes + i
				s.Publish(n, &free)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	taken := 0
	for {
		if n := s.Take(); n != nil {
			taken++
			free.Push(n)
		}
		select {
		case <-done:
			if n := s.Take(); n != nil {
				taken++
				free.Push(n)
			}
			assert.Positive(t, taken)
			assert.False(t, s.Pending())
			return
		default:
		}
	}
}
