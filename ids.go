package mixer

// idTable hands out object IDs for one kind of object. IDs start at 1 and
// freed IDs are reused lowest first. Callers serialize access.
type idTable[T any] struct {
	objs  map[uint32]T
	free  []uint32 // freed IDs, kept sorted descending
	next  uint32
	limit int
}

func newIDTable[T any](limit int) *idTable[T] {
	if limit <= 0 || limit > maxObjectIDs {
		limit = maxObjectIDs
	}
	return &idTable[T]{objs: make(map[uint32]T), next: 1, limit: limit}
}

// add stores obj under a new ID built by mk. It fails with OutOfMemory when
// the table is full.
func (t *idTable[T]) add(mk func(id uint32) T) (T, error) {
	var zero T
	if len(t.objs) >= t.limit {
		return zero, newError(OutOfMemory, "limit of %d objects reached", t.limit)
	}
	var id uint32
	if n := len(t.free); n > 0 {
		id = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		id = t.next
		t.next++
	}
	obj := mk(id)
	t.objs[id] = obj
	return obj, nil
}

func (t *idTable[T]) get(id uint32) (T, bool) {
	obj, ok := t.objs[id]
	return obj, ok
}

func (t *idTable[T]) remove(id uint32) {
	if _, ok := t.objs[id]; !ok {
		return
	}
	delete(t.objs, id)
	// Insert keeping the slice descending so the lowest ID pops first.
	i := len(t.free)
	t.free = append(t.free, id)
	for i > 0 && t.free[i-1] < id {
		t.free[i] = t.free[i-1]
		i--
	}
	t.free[i] = id
}

func (t *idTable[T]) len() int {
	return len(t.objs)
}

func (t *idTable[T]) each(fn func(id uint32, obj T)) {
	for id, obj := range t.objs {
		fn(id, obj)
	}
}
