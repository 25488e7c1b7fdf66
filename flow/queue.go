package flow

// workQueue is the engine's run queue: a deque of node ids supporting
// normal enqueue at the back and priority re-insertion at the front for
// loop iterations.
type workQueue struct {
	items []string
}

// PushBack appends ids in order.
func (q *workQueue) PushBack(ids ...string) {
	q.items = append(q.items, ids...)
}

// PushFront inserts ids at the head, preserving their given order, so loop
// iterations are processed before unrelated already-queued work.
func (q *workQueue) PushFront(ids ...string) {
	q.items = append(append([]string{}, ids...), q.items...)
}

// Pop removes and returns the head of the queue.
func (q *workQueue) Pop() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	id := q.items[0]
	q.items = q.items[1:]
	return id, true
}

// Len returns the number of queued ids.
func (q *workQueue) Len() int {
	return len(q.items)
}
