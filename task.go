package flowz

import (
	"context"
	"sync"
)

// Task is a deferred value with single-settlement semantics: it is completed
// or failed exactly once, by one producer, and observed by any number of
// consumers. Terminal operations return their outcome as a Task, and
// FlatMapAsync consumes user-produced Tasks as its per-element async values.
//
// A Task is safe for concurrent use. Settlement is first-wins: once
// completed, failed or canceled, later settlements report false and change
// nothing.
type Task[R any] struct {
	mu        sync.Mutex
	done      chan struct{}
	value     R
	err       error
	settled   bool
	callbacks []func(R, error)
	canceller func()
}

// NewTask creates an unsettled Task. The caller is the producer and settles
// it with Complete or Fail.
//
//	task := flowz.NewTask[string]()
//	go func() {
//	    v, err := fetch()
//	    if err != nil {
//	        task.Fail(err)
//	        return
//	    }
//	    task.Complete(v)
//	}()
func NewTask[R any]() *Task[R] {
	return &Task[R]{done: make(chan struct{})}
}

// CompletedTask returns a Task already completed with value.
func CompletedTask[R any](value R) *Task[R] {
	t := NewTask[R]()
	t.Complete(value)
	return t
}

// FailedTask returns a Task already failed with err.
func FailedTask[R any](err error) *Task[R] {
	t := NewTask[R]()
	t.Fail(err)
	return t
}

// Async runs fn on its own goroutine and returns a Task settled with fn's
// outcome. A panic in fn fails the Task.
func Async[R any](fn func() (R, error)) *Task[R] {
	t := NewTask[R]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fail(recoverToError(r))
			}
		}()
		v, err := fn()
		if err != nil {
			t.Fail(err)
			return
		}
		t.Complete(v)
	}()
	return t
}

// Complete settles the Task with value. It reports whether this call won the
// settlement.
func (t *Task[R]) Complete(value R) bool {
	return t.settle(value, nil)
}

// Fail settles the Task with err. It reports whether this call won the
// settlement.
func (t *Task[R]) Fail(err error) bool {
	var zero R
	if err == nil {
		panic("flowz: task failed with nil error")
	}
	return t.settle(zero, err)
}

// Cancel fails the Task with ErrCanceled and, for tasks attached to a
// running stream, tears the stream down: upstream stages stop receiving
// pulls and the terminal receives no further signals. Canceling a settled
// Task is a no-op.
func (t *Task[R]) Cancel() {
	var zero R
	t.mu.Lock()
	cancel := t.canceller
	t.mu.Unlock()
	if t.settle(zero, ErrCanceled) && cancel != nil {
		cancel()
	}
}

// Done returns a channel closed when the Task settles.
func (t *Task[R]) Done() <-chan struct{} {
	return t.done
}

// Await blocks until the Task settles or ctx is done, returning the value or
// the failure (ctx.Err when the context won).
func (t *Task[R]) Await(ctx context.Context) (R, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		select {
		case <-t.done:
		default:
			var zero R
			return zero, ctx.Err()
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value, t.err
}

func (t *Task[R]) settle(value R, err error) bool {
	t.mu.Lock()
	if t.settled {
		t.mu.Unlock()
		return false
	}
	t.settled = true
	t.value = value
	t.err = err
	callbacks := t.callbacks
	t.callbacks = nil
	t.canceller = nil
	t.mu.Unlock()

	close(t.done)
	for _, cb := range callbacks {
		cb(value, err)
	}
	return true
}

// onSettle registers cb to run when the Task settles, on the settling
// goroutine. Already-settled tasks invoke cb immediately.
func (t *Task[R]) onSettle(cb func(R, error)) {
	t.mu.Lock()
	if !t.settled {
		t.callbacks = append(t.callbacks, cb)
		t.mu.Unlock()
		return
	}
	value, err := t.value, t.err
	t.mu.Unlock()
	cb(value, err)
}

// setCanceller attaches the stream teardown hook invoked by Cancel. No-op on
// a settled task.
func (t *Task[R]) setCanceller(cancel func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.settled {
		return
	}
	t.canceller = cancel
}
