// Package freelist recycles parameter snapshots between API goroutines and
// the mixer without allocating on the mixer's side.
package freelist

import "sync/atomic"

// Node is a recyclable container for one snapshot.
type Node[T any] struct {
	next  *Node[T]
	Value T
}

// List is a lock-free LIFO of nodes. Push is safe from any number of
// goroutines. Pop must be serialized by the caller (the context's property
// lock), which keeps a popped node from reappearing under a pending CAS.
type List[T any] struct {
	head atomic.Pointer[Node[T]]
}

// Push returns n to the list.
func (l *List[T]) Push(n *Node[T]) {
	for {
		old := l.head.Load()
		n.next = old
		if l.head.CompareAndSwap(old, n) {
			return
		}
	}
}

// Pop takes a node from the list, or returns nil when it is empty.
func (l *List[T]) Pop() *Node[T] {
	for {
		old := l.head.Load()
		if old == nil {
			return nil
		}
		if l.head.CompareAndSwap(old, old.next) {
			old.next = nil
			return old
		}
	}
}

// Get pops a node or allocates a fresh one.
func (l *List[T]) Get() *Node[T] {
	if n := l.Pop(); n != nil {
		return n
	}
	return new(Node[T])
}

// TakeAll detaches every node at once and returns the chain oldest
// first. Walk it with Next before pushing any node elsewhere.
func (l *List[T]) TakeAll() *Node[T] {
	head := l.head.Swap(nil)
	var prev *Node[T]
	for head != nil {
		next := head.next
		head.next = prev
		prev, head = head, next
	}
	return prev
}

// Next returns the node following n in a chain returned by TakeAll.
func (n *Node[T]) Next() *Node[T] {
	return n.next
}

// Len walks the list. It is only meaningful while no other goroutine is
// using it.
func (l *List[T]) Len() int {
	n := 0
	for p := l.head.Load(); p != nil; p = p.next {
		n++
	}
	return n
}

// Slot is a single-entry mailbox carrying the newest snapshot for one
// object from writers to the mixer.
type Slot[T any] struct {
	p atomic.Pointer[Node[T]]
}

// Publish installs n as the pending snapshot and recycles the one it
// replaces, if the mixer had not picked it up yet.
func (s *Slot[T]) Publish(n *Node[T], free *List[T]) {
	if old := s.p.Swap(n); old != nil {
		free.Push(old)
	}
}

// Take removes the pending snapshot, or returns nil.
func (s *Slot[T]) Take() *Node[T] {
	return s.p.Swap(nil)
}

// Pending reports whether a snapshot is waiting.
func (s *Slot[T]) Pending() bool {
	return s.p.Load() != nil
}
