package session

import (
	"context"
	"sync"
)

// Task is an asynchronous teardown. It is finished exactly once and may be
// cancelled while running; cancelling a finished task does nothing.
type Task struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error
}

func newTask(parent context.Context) *Task {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &Task{ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

// finishedTask returns a task that is already done with err.
func finishedTask(err error) *Task {
	t := &Task{ctx: context.Background(), cancel: func() {}, done: make(chan struct{})}
	t.finish(err)
	return t
}

func (t *Task) finish(err error) {
	t.once.Do(func() {
		t.err = err
		t.cancel()
		close(t.done)
	})
}

// Done is closed when the teardown has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel aborts the close and quit calls still in flight.
func (t *Task) Cancel() { t.cancel() }

// Wait blocks until the task finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the teardown error once Done is closed, nil before.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}
