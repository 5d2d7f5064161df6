package engine

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Pop after Close.
var ErrQueueClosed = errors.New("queue closed")

// Queue is an unbounded FIFO handoff between intake and workers.
//
// Push never blocks the producer; Pop blocks the consumer until an item is
// available, the context is cancelled, or the queue is closed. Safe for
// many producers and many consumers.
type Queue struct {
	mu     sync.Mutex
	items  []Job
	closed bool

	// wake has capacity 1: a pending token means "items may be available".
	wake chan struct{}
	done chan struct{}
}

func NewQueue() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Push appends a job and returns its 1-based queue position.
// Pushing to a closed queue reports ErrQueueClosed.
func (q *Queue) Push(j Job) (int, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0, ErrQueueClosed
	}
	q.items = append(q.items, j)
	pos := len(q.items)
	q.mu.Unlock()

	q.notify()
	return pos, nil
}

// Pop removes and returns the oldest job, blocking until one is available.
func (q *Queue) Pop(ctx context.Context) (Job, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			j := q.items[0]
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			if remaining > 0 {
				// Hand the token on so another blocked consumer wakes too.
				q.notify()
			}
			return j, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return Job{}, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return Job{}, ctx.Err()
		case <-q.done:
			return Job{}, ErrQueueClosed
		case <-q.wake:
		}
	}
}

// Len reports the number of queued (not yet popped) jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close rejects further pushes and wakes all blocked consumers.
// Already-queued jobs are discarded.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.items = nil
	q.mu.Unlock()
	close(q.done)
}

func (q *Queue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
