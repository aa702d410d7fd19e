package frame

// ChunkKey addresses a chunk by its position in the chunk grid.
type ChunkKey struct {
	CX, CY, CZ int
}

// Queue is a FIFO of chunk keys that holds each key at most once.
type Queue struct {
	items  []ChunkKey
	queued map[ChunkKey]struct{}
}

func NewQueue() *Queue {
	return &Queue{queued: map[ChunkKey]struct{}{}}
}

// Push appends k unless it is already queued. It reports whether k was added.
func (q *Queue) Push(k ChunkKey) bool {
	if _, ok := q.queued[k]; ok {
		return false
	}
	q.queued[k] = struct{}{}
	q.items = append(q.items, k)
	return true
}

// PushFront puts k at the head unless it is already queued.
func (q *Queue) PushFront(k ChunkKey) bool {
	if _, ok := q.queued[k]; ok {
		return false
	}
	q.queued[k] = struct{}{}
	q.items = append([]ChunkKey{k}, q.items...)
	return true
}

func (q *Queue) Pop() (ChunkKey, bool) {
	if len(q.items) == 0 {
		return ChunkKey{}, false
	}
	k := q.items[0]
	q.items[0] = ChunkKey{}
	q.items = q.items[1:]
	delete(q.queued, k)
	if len(q.items) == 0 {
		q.items = q.items[:0:0]
	}
	return k, true
}

func (q *Queue) Len() int { return len(q.items) }

func (q *Queue) Contains(k ChunkKey) bool {
	_, ok := q.queued[k]
	return ok
}

// Keys returns the queued keys in pop order.
func (q *Queue) Keys() []ChunkKey {
	return append([]ChunkKey(nil), q.items...)
}

func (q *Queue) Clear() {
	q.items = nil
	q.queued = map[ChunkKey]struct{}{}
}
