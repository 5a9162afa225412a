package task

import "container/heap"

// readyQueue is a min-heap of ready tasks ordered by (priority, enqueue
// sequence). It implements heap.Interface and must only be used under the
// scheduler mutex.
type readyQueue []*Task

func (q readyQueue) Len() int { return len(q) }

func (q readyQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q readyQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].heapIndex = i
	q[j].heapIndex = j
}

func (q *readyQueue) Push(x any) {
	t := x.(*Task)
	t.heapIndex = len(*q)
	*q = append(*q, t)
}

func (q *readyQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.heapIndex = -1
	*q = old[:n-1]
	return t
}

// push enqueues a task with the given sequence number.
func (q *readyQueue) push(t *Task, seq uint64) {
	t.seq = seq
	heap.Push(q, t)
}

// pop removes and returns the highest-priority task, or nil if empty.
func (q *readyQueue) pop() *Task {
	if q.Len() == 0 {
		return nil
	}
	return heap.Pop(q).(*Task)
}

// remove detaches a task from the heap if it is currently enqueued.
func (q *readyQueue) remove(t *Task) {
	if t.heapIndex >= 0 {
		heap.Remove(q, t.heapIndex)
	}
}
