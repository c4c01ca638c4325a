package correlation

import (
	"context"
	"errors"
	"sync"
)

// Machine is the lifecycle shared by every in-flight request. Concrete request
// types embed *Machine and decide, per inbound message, whether to call Progress,
// Complete or Fail.
type Machine[T any] struct {
	id     string
	future *Future[T]

	mu       sync.Mutex
	status   Status
	hooks    []func()
	stopLink func() bool
}

// NewMachine creates a machine for an id that the caller has already stamped into
// the outbound message, then links ctx. A context that is already done completes
// the machine before NewMachine returns. A context that ends later with
// context.Canceled completes it with ErrCancelled; a deadline leaves it pending,
// since the exchange may still answer.
func NewMachine[T any](ctx context.Context, id string) *Machine[T] {
	m := &Machine[T]{
		id:     id,
		future: newFuture[T](),
		status: StatusCreated,
	}
	if ctx == nil {
		return m
	}
	if ctx.Err() != nil {
		m.Fail(contextError(ctx))
		return m
	}
	if ctx.Done() == nil {
		return m
	}
	m.mu.Lock()
	if m.status != StatusCompleted {
		m.stopLink = context.AfterFunc(ctx, func() {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return
			}
			m.Fail(ErrCancelled)
		})
	}
	m.mu.Unlock()
	return m
}

func (m *Machine[T]) ID() string {
	return m.id
}

func (m *Machine[T]) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Machine[T]) Completed() bool {
	return m.Status() == StatusCompleted
}

// Send marks the request as handed to the transport and returns its future.
// Repeated calls return the same future and never move the status backwards.
func (m *Machine[T]) Send() *Future[T] {
	m.mu.Lock()
	if m.status == StatusCreated {
		m.status = StatusSent
	}
	m.mu.Unlock()
	return m.future
}

// Future returns the result future without changing status.
func (m *Machine[T]) Future() *Future[T] {
	return m.future
}

// Err returns the completion error, or nil while pending or after success.
func (m *Machine[T]) Err() error {
	_, err, _ := m.future.Result()
	return err
}

// Progress records a non-terminal response. It reports false once completed.
func (m *Machine[T]) Progress() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusCompleted {
		return false
	}
	m.status = StatusInProgress
	return true
}

// Complete resolves the request successfully. Only the first completion counts.
func (m *Machine[T]) Complete(value T) bool {
	return m.finish(value, nil)
}

// Fail resolves the request with err. Only the first completion counts.
func (m *Machine[T]) Fail(err error) bool {
	var zero T
	return m.finish(zero, err)
}

// Reject fails the request with a *RejectError. Safe to call after completion.
func (m *Machine[T]) Reject(reason string) bool {
	return m.Fail(Rejected(reason))
}

// OnComplete registers fn to run once after completion. If the machine is already
// completed fn runs immediately on the calling goroutine.
func (m *Machine[T]) OnComplete(fn func()) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	if m.status != StatusCompleted {
		m.hooks = append(m.hooks, fn)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	fn()
}

func (m *Machine[T]) finish(value T, err error) bool {
	m.mu.Lock()
	if m.status == StatusCompleted {
		m.mu.Unlock()
		return false
	}
	m.status = StatusCompleted
	m.future.resolve(value, err)
	hooks := m.hooks
	m.hooks = nil
	stop := m.stopLink
	m.stopLink = nil
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	for _, fn := range hooks {
		fn()
	}
	return true
}
