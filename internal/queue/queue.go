package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned when the queue is at capacity.
	ErrQueueFull = errors.New("queue is full")

	// ErrQueueClosed is returned once the queue has been closed.
	ErrQueueClosed = errors.New("queue is closed")
)

// DefaultMaxSize is used when NewUtteranceQueue is given a non-positive size.
const DefaultMaxSize = 256

// Utterance is a piece of text waiting to be spoken.
type Utterance struct {
	// ID increases with every enqueued utterance.
	ID uint64

	// Text is what will be spoken.
	Text string

	// Generation is the flush generation the utterance was added in.
	Generation uint64

	// Enqueued is when the utterance was added.
	Enqueued time.Time
}

// Stats describes queue activity.
type Stats struct {
	TotalEnqueued   int64
	TotalDequeued   int64
	TotalDropped    int64 // rejected while full
	TotalFlushed    int64 // dropped by Clear
	CurrentSize     int
	PeakSize        int
	LastEnqueue     time.Time
	LastDequeue     time.Time
	AverageWaitTime time.Duration
}

// UtteranceQueue is a bounded FIFO of utterances with a blocking Dequeue.
// Enqueue never blocks so that callers on an event loop stay responsive.
type UtteranceQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond

	items      []Utterance
	maxSize    int
	nextID     uint64
	generation uint64
	closed     bool

	stats     Stats
	totalWait time.Duration
}

// NewUtteranceQueue creates a queue holding at most maxSize utterances.
func NewUtteranceQueue(maxSize int) *UtteranceQueue {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	q := &UtteranceQueue{maxSize: maxSize}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends text and returns the queued utterance.
func (q *UtteranceQueue) Enqueue(text string) (Utterance, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return Utterance{}, ErrQueueClosed
	}
	if len(q.items) >= q.maxSize {
		q.stats.TotalDropped++
		return Utterance{}, ErrQueueFull
	}

	q.nextID++
	u := Utterance{
		ID:         q.nextID,
		Text:       text,
		Generation: q.generation,
		Enqueued:   time.Now(),
	}
	q.items = append(q.items, u)

	q.stats.TotalEnqueued++
	q.stats.LastEnqueue = u.Enqueued
	q.stats.PeakSize = max(q.stats.PeakSize, len(q.items))

	q.notEmpty.Signal()
	return u, nil
}

// Dequeue removes and returns the oldest utterance, waiting until one is
// available, ctx is done or the queue is closed.
func (q *UtteranceQueue) Dequeue(ctx context.Context) (Utterance, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.notEmpty.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed && ctx.Err() == nil {
		q.notEmpty.Wait()
	}
	if q.closed {
		return Utterance{}, ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		return Utterance{}, err
	}

	u := q.items[0]
	q.items[0] = Utterance{}
	q.items = q.items[1:]

	now := time.Now()
	q.stats.TotalDequeued++
	q.stats.LastDequeue = now
	q.totalWait += now.Sub(u.Enqueued)

	return u, nil
}

// Clear drops every waiting utterance, starts a new generation and returns
// how many were dropped.
func (q *UtteranceQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	q.items = nil
	q.generation++
	q.stats.TotalFlushed += int64(n)
	return n
}

// Generation returns the current flush generation. An utterance whose
// Generation is older was queued before the last Clear.
func (q *UtteranceQueue) Generation() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.generation
}

// Size returns the number of waiting utterances.
func (q *UtteranceQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats returns a snapshot of queue activity.
func (q *UtteranceQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := q.stats
	s.CurrentSize = len(q.items)
	if s.TotalDequeued > 0 {
		s.AverageWaitTime = q.totalWait / time.Duration(s.TotalDequeued)
	}
	return s
}

// Close wakes every waiting Dequeue. Further calls fail with ErrQueueClosed.
func (q *UtteranceQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	q.items = nil
	q.notEmpty.Broadcast()
	return nil
}
