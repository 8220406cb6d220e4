package queue_test

import (
	"testing"

	"github.com/shashiranjanraj/taskqueue/pkg/queue"
)

func ctxWithPriority(p queue.Priority) *queue.JobContext {
	return queue.NewJobContext("noop", &greetJob{}, p, 0)
}

func TestPriorityQueueOrdering(t *testing.T) {
	q := queue.NewPriorityQueue()
	q.Add(ctxWithPriority(queue.PriorityLow))
	q.Add(ctxWithPriority(queue.PriorityCritical))
	q.Add(ctxWithPriority(queue.PriorityHigh))

	order := []queue.Priority{
		q.RemoveFirst().Priority,
		q.RemoveFirst().Priority,
		q.RemoveFirst().Priority,
	}

	want := []queue.Priority{queue.PriorityCritical, queue.PriorityHigh, queue.PriorityLow}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: got %v, want %v", i, order[i], want[i])
		}
	}
}

func TestPriorityQueueFIFOWithinLevel(t *testing.T) {
	q := queue.NewPriorityQueue()
	first := ctxWithPriority(queue.PriorityNormal)
	second := ctxWithPriority(queue.PriorityNormal)
	q.Add(first)
	q.Add(second)

	if got := q.RemoveFirst(); got.ID != first.ID {
		t.Error("expected FIFO order within same priority")
	}
	if got := q.RemoveFirst(); got.ID != second.ID {
		t.Error("expected FIFO order within same priority")
	}
}

func TestPriorityQueueEmptyRemoveFirst(t *testing.T) {
	q := queue.NewPriorityQueue()
	if got := q.RemoveFirst(); got != nil {
		t.Errorf("got %v, want nil on empty queue", got)
	}
}

func TestPriorityQueueToSortedList(t *testing.T) {
	q := queue.NewPriorityQueue()
	q.Add(ctxWithPriority(queue.PriorityNormal))
	q.Add(ctxWithPriority(queue.PriorityCritical))

	list := q.ToSortedList()
	if len(list) != 2 {
		t.Fatalf("got %d entries, want 2", len(list))
	}
	if list[0].Priority != queue.PriorityCritical {
		t.Error("expected critical first in sorted list")
	}
	if q.Length() != 2 {
		t.Error("ToSortedList should not mutate the queue")
	}
}
