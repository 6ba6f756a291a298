package crm

import "context"

// MemoryQueue is a channel-backed queue used by tests and local development.
type MemoryQueue struct {
	jobs chan Update
}

func NewMemoryQueue(buffer int) *MemoryQueue {
	return &MemoryQueue{jobs: make(chan Update, buffer)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, update Update) error {
	select {
	case q.jobs <- update:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (Update, error) {
	select {
	case update := <-q.jobs:
		return update, nil
	case <-ctx.Done():
		return Update{}, ctx.Err()
	}
}
