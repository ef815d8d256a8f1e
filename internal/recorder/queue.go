// Package recorder persists frames and their analysis on a background
// writer, decoupled from the pipeline by a bounded queue so the producer is
// never blocked on disk I/O.
package recorder

import (
	"sync"

	"github.com/banshee-data/posture.report/internal/session"
)

// Strategy selects the backpressure policy when the queue is full.
// DropOldest bounds latency at the cost of archival completeness, the right
// trade when recency matters; DropNewest keeps the backlog intact and
// discards incoming items instead.
type Strategy string

const (
	DropOldest Strategy = "drop_oldest"
	DropNewest Strategy = "drop_newest"
)

// DefaultQueueCapacity is roughly four seconds of 30fps footage.
const DefaultQueueCapacity = 120

// Item is one queued unit of work: the frame and a snapshot of its
// analysis.
type Item struct {
	Frame  session.Frame
	Record session.SessionRecord
}

// Queue is a fixed-capacity FIFO with non-blocking push-with-eviction and
// blocking pop. Close acts as the sentinel: pending items drain, then Pop
// returns false.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	items    []Item
	head     int
	count    int
	strategy Strategy
	closed   bool
	drops    int64
}

// NewQueue returns a queue of the given capacity. Non-positive capacities
// fall back to DefaultQueueCapacity; unknown strategies to DropOldest.
func NewQueue(capacity int, strategy Strategy) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if strategy != DropNewest {
		strategy = DropOldest
	}
	q := &Queue{
		items:    make([]Item, capacity),
		strategy: strategy,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Push enqueues without ever blocking. On a full queue the configured
// strategy applies: DropOldest evicts the oldest undrained item to make
// room (the incoming item is never discarded), DropNewest discards the
// incoming item. Returns false when the item was not enqueued.
func (q *Queue) Push(item Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.count == len(q.items) {
		q.drops++
		if q.strategy == DropNewest {
			return false
		}
		// Evict the oldest queued item.
		q.head = (q.head + 1) % len(q.items)
		q.count--
	}
	q.items[(q.head+q.count)%len(q.items)] = item
	q.count++
	q.notEmpty.Signal()
	return true
}

// Pop blocks until an item is available or the queue is closed and
// drained. The second return is false only when no more items will ever
// arrive.
func (q *Queue) Pop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if q.count == 0 {
		return Item{}, false
	}
	item := q.items[q.head]
	q.items[q.head] = Item{}
	q.head = (q.head + 1) % len(q.items)
	q.count--
	return item, true
}

// Close marks the end of input. Queued items remain poppable; Push becomes
// a no-op.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notEmpty.Broadcast()
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Drops returns how many items the backpressure policy has discarded.
func (q *Queue) Drops() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drops
}
