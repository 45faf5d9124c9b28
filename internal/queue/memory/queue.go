// Package memory provides queue implementations for local development.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tautaras/review-crawler/internal/reviews"
)

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan reviews.TaskPayload
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan reviews.TaskPayload, capacity),
	}
}

// Publish pushes a task into the queue or returns if the context ends.
func (q *Queue) Publish(ctx context.Context, task reviews.TaskPayload) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("publish canceled: %w", ctx.Err())
	case q.ch <- task:
		return nil
	}
}

// Receive delivers tasks to handler until the context finishes or the queue
// closes. The in-memory queue does not redeliver on handler error; that is a
// property of the durable backends.
func (q *Queue) Receive(ctx context.Context, handler func(context.Context, reviews.TaskPayload) error) error {
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("receive canceled: %w", ctx.Err())
		case task, ok := <-q.ch:
			if !ok {
				return errors.New("queue closed")
			}
			_ = handler(ctx, task)
		}
	}
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() error {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return nil
	}
	close(q.ch)
	q.closed = true
	return nil
}
