package stage

import (
	"container/heap"
	"time"
)

type expiry struct {
	usr int64
	at  time.Time
}

// expiryQueue is a min-heap of stage deadlines. A user may have several
// entries; only the one matching the stored deadline is live.
type expiryQueue struct {
	backingArray []*expiry
}

func newExpiryQueue() *expiryQueue {
	q := &expiryQueue{backingArray: []*expiry{}}
	heap.Init(q)
	return q
}

func (q expiryQueue) Len() int {
	return len(q.backingArray)
}

func (q expiryQueue) Less(i, j int) bool {
	return q.backingArray[i].at.Before(q.backingArray[j].at)
}

func (q expiryQueue) Swap(i, j int) {
	q.backingArray[j], q.backingArray[i] = q.backingArray[i], q.backingArray[j]
}

func (q *expiryQueue) Push(x any) {
	e, ok := x.(*expiry)
	if !ok {
		return
	}
	q.backingArray = append(q.backingArray, e)
}

func (q *expiryQueue) Pop() any {
	n := len(q.backingArray)
	if n == 0 {
		return nil
	}

	popped := q.backingArray[n-1]
	q.backingArray[n-1] = nil
	q.backingArray = q.backingArray[:n-1]
	return popped
}

func (q *expiryQueue) Peek() *expiry {
	if len(q.backingArray) == 0 {
		return nil
	}
	return q.backingArray[0]
}
