package bus

import (
	"context"
	"errors"
	"sync/atomic"
)

var (
	ErrQueueFull   = errors.New("inbound queue full")
	ErrQueueClosed = errors.New("inbound queue closed")
)

// Inbound is one external input waiting to enter the emulator: a command
// aimed at an endpoint, or a tick/event aimed at a topic.
type Inbound struct {
	Endpoint string // endpoint send when set
	Topic    string // topic publish when Endpoint is empty
	Msg      any
	TsRecv   int64
}

// Queue is a bounded, non-blocking inbound queue. Producers (feed
// goroutines, external command sources) push from any goroutine; a single
// consumer drains it, which is what serializes all emulator work.
type Queue struct {
	ch     chan Inbound
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Inbound, capacity)}
}

// TryPush enqueues an input without blocking.
func (q *Queue) TryPush(in Inbound) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- in:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the queue from accepting new inputs.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Drain consumes inputs until the context is done or the queue is closed,
// dispatching each onto the bus in arrival order.
func (q *Queue) Drain(ctx context.Context, b *Bus) {
	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-q.ch:
			if !ok {
				return
			}
			if in.Endpoint != "" {
				b.Send(in.Endpoint, in.Msg)
			} else {
				b.Publish(in.Topic, in.Msg)
			}
		}
	}
}
