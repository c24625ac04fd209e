package sched

import "container/heap"

// runQueue is a per-core max-priority heap of READY threads. No third-party
// priority-queue library appears anywhere in the retrieval pack, so this
// layers container/heap the way the standard library intends it to be used
// (see DESIGN.md for the stdlib-usage justification).
type runQueue struct {
	items []*Thread
}

func (q *runQueue) Len() int { return len(q.items) }

func (q *runQueue) Less(i, j int) bool {
	return q.items[i].Priority > q.items[j].Priority
}

func (q *runQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].heapIndex = i
	q.items[j].heapIndex = j
}

func (q *runQueue) Push(x any) {
	t := x.(*Thread)
	t.heapIndex = len(q.items)
	q.items = append(q.items, t)
}

func (q *runQueue) Pop() any {
	old := q.items
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.heapIndex = -1
	q.items = old[:n-1]
	return t
}

func (q *runQueue) push(t *Thread) { heap.Push(q, t) }

func (q *runQueue) pop() *Thread {
	if q.Len() == 0 {
		return nil
	}
	return heap.Pop(q).(*Thread)
}
