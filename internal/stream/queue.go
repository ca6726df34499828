// Package stream maintains exchange market-data subscriptions and turns
// them into an ordered feed of closed-bar events for the live engine.
package stream

import (
	"context"

	"github.com/gorkemacar/signalbot/internal/monitoring"
	"github.com/gorkemacar/signalbot/pkg/types"
)

// Event is one closed bar delivered to the engine.
type Event struct {
	Bar types.Bar
}

// Queue is the bounded FIFO between the streamer goroutines and the
// engine's event loop. When full, the oldest event is dropped and counted;
// monitoring a stale bar is worse than skipping it, because the per-bar
// position sweep must keep running during bursts.
type Queue struct {
	ch chan Event
}

// NewQueue creates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{ch: make(chan Event, capacity)}
}

// Push enqueues an event, evicting the oldest entry when the queue is full.
func (q *Queue) Push(ev Event) {
	for {
		select {
		case q.ch <- ev:
			return
		default:
		}

		select {
		case <-q.ch:
			monitoring.RecordQueueDrop()
		default:
		}
	}
}

// Pop blocks until an event is available or the context is cancelled.
func (q *Queue) Pop(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case ev := <-q.ch:
		return ev, nil
	}
}

// Len reports the number of queued events.
func (q *Queue) Len() int {
	return len(q.ch)
}
