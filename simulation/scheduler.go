package simulation

import "container/heap"

type eventHeap []Event

func (e eventHeap) Len() int { return len(e) }
func (e eventHeap) Less(i, j int) bool {
	if e[i].Time != e[j].Time {
		return e[i].Time < e[j].Time
	}
	return e[i].seq < e[j].seq
}
func (e eventHeap) Swap(i, j int) { e[i], e[j] = e[j], e[i] }
func (e *eventHeap) Push(x interface{}) {
	*e = append(*e, x.(Event))
}
func (e *eventHeap) Pop() interface{} {
	old := *e
	n := len(old)
	x := old[n-1]
	*e = old[0 : n-1]
	return x
}

// EventQueue is a min-heap of events ordered by time. Events with equal
// times pop in insertion order.
type EventQueue struct {
	events eventHeap
	seq    uint64
}

func NewEventQueue() *EventQueue {
	return &EventQueue{events: make(eventHeap, 0)}
}

func (q *EventQueue) Push(ev Event) {
	q.seq++
	ev.seq = q.seq
	heap.Push(&q.events, ev)
}

// Pop removes the earliest event. It returns ErrEmptyQueue when there is
// nothing left to run.
func (q *EventQueue) Pop() (Event, error) {
	if len(q.events) == 0 {
		return Event{}, ErrEmptyQueue
	}
	return heap.Pop(&q.events).(Event), nil
}

func (q *EventQueue) Peek() (Event, bool) {
	if len(q.events) == 0 {
		return Event{}, false
	}
	return q.events[0], true
}

func (q *EventQueue) Len() int {
	return len(q.events)
}

func (q *EventQueue) Empty() bool {
	return len(q.events) == 0
}
