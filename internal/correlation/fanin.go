package correlation

import (
	"context"
	"sync"

	"exconnector/internal/logger"
)

// FanIn completes after an acknowledgement announcing N reports and exactly N reports.
// Reports that arrive before the acknowledgement are held and counted once it lands.
type FanIn[T any] struct {
	*Machine[[]T]

	mu       sync.Mutex
	acked    bool
	expected int
	items    []T
}

func NewFanIn[T any](ctx context.Context, id string) *FanIn[T] {
	return &FanIn[T]{Machine: NewMachine[[]T](ctx, id)}
}

// Ack sets the expected report count. A count of zero completes with an empty result.
func (f *FanIn[T]) Ack(count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Completed() {
		logger.Warnf("correlation: ack for completed request %s ignored", f.ID())
		return
	}
	if f.acked {
		logger.Warnf("correlation: duplicate ack for %s (expected=%d, announced=%d) ignored", f.ID(), f.expected, count)
		return
	}
	if count < 0 {
		f.acked = true
		f.Reject("negative report count")
		return
	}
	f.acked = true
	f.expected = count
	if len(f.items) > count {
		logger.Warnf("correlation: %s received %d reports before ack announced %d, extra dropped", f.ID(), len(f.items), count)
		f.items = f.items[:count]
	}
	if len(f.items) == count {
		f.Complete(f.snapshot())
		return
	}
	f.Progress()
}

// AckRejected completes the request with a rejection; no reports are expected afterwards.
func (f *FanIn[T]) AckRejected(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acked || f.Completed() {
		logger.Warnf("correlation: rejecting ack for %s after ack/completion ignored", f.ID())
		return
	}
	f.acked = true
	f.Reject(reason)
}

// Add appends one report.
func (f *FanIn[T]) Add(item T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Completed() {
		logger.Warnf("correlation: report for completed request %s ignored", f.ID())
		return
	}
	f.items = append(f.items, item)
	if f.acked && len(f.items) == f.expected {
		f.Complete(f.snapshot())
		return
	}
	f.Progress()
}

// Counts returns the collected count and the announced count (-1 before the ack).
func (f *FanIn[T]) Counts() (collected, expected int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.acked {
		return len(f.items), -1
	}
	return len(f.items), f.expected
}

func (f *FanIn[T]) snapshot() []T {
	out := make([]T, len(f.items))
	copy(out, f.items)
	return out
}
