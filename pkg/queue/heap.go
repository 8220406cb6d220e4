package queue

import (
	"container/heap"
	"sort"
	"sync"
)

// PrioritizedJob orders a JobContext for selection: higher Priority first,
// ties broken by earlier EnqueuedAt (FIFO within a priority level).
type PrioritizedJob struct {
	Context     *JobContext
	EnqueuedAt  int64 // monotonic sequence number, not wall-clock — avoids same-tick ties
}

// less implements the total order described above.
func (p PrioritizedJob) less(other PrioritizedJob) bool {
	if p.Context.Priority != other.Context.Priority {
		return p.Context.Priority > other.Context.Priority
	}
	return p.EnqueuedAt < other.EnqueuedAt
}

// innerHeap is the container/heap.Interface implementation backing
// PriorityQueue. Not exported — callers use PriorityQueue's methods.
type innerHeap []PrioritizedJob

func (h innerHeap) Len() int            { return len(h) }
func (h innerHeap) Less(i, j int) bool  { return h[i].less(h[j]) }
func (h innerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *innerHeap) Push(x any)         { *h = append(*h, x.(PrioritizedJob)) }
func (h *innerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// PriorityQueue is a binary heap ordered by (priority desc, enqueue time
// asc). Add/RemoveFirst/Clear/Length are O(log n) or O(1); Peek is O(1);
// ToSortedList is O(n log n) and returns a stable-sorted copy.
type PriorityQueue struct {
	mu   sync.Mutex
	h    innerHeap
	seq  int64
}

// NewPriorityQueue returns an empty queue.
func NewPriorityQueue() *PriorityQueue {
	q := &PriorityQueue{}
	heap.Init(&q.h)
	return q
}

// Add inserts ctx, assigning it the next enqueue sequence number.
func (q *PriorityQueue) Add(ctx *JobContext) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	heap.Push(&q.h, PrioritizedJob{Context: ctx, EnqueuedAt: q.seq})
}

// RemoveFirst pops and returns the highest-priority, earliest-enqueued
// context, or nil if the queue is empty.
func (q *PriorityQueue) RemoveFirst() *JobContext {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.h.Len() == 0 {
		return nil
	}
	item := heap.Pop(&q.h).(PrioritizedJob)
	return item.Context
}

// Peek returns the head without removing it, or nil if empty.
func (q *PriorityQueue) Peek() *JobContext {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.h.Len() == 0 {
		return nil
	}
	return q.h[0].Context
}

// Clear removes all entries.
func (q *PriorityQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.h = q.h[:0]
}

// Length returns the number of entries.
func (q *PriorityQueue) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.h.Len()
}

// ToSortedList returns a stable-sorted copy (priority desc, then FIFO),
// leaving the queue untouched.
func (q *PriorityQueue) ToSortedList() []*JobContext {
	q.mu.Lock()
	defer q.mu.Unlock()

	cp := make(innerHeap, len(q.h))
	copy(cp, q.h)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].less(cp[j]) })

	out := make([]*JobContext, len(cp))
	for i, item := range cp {
		out[i] = item.Context
	}
	return out
}
