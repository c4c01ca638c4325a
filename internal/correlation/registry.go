package correlation

import (
	"sort"
	"sync"

	"exconnector/internal/logger"
)

// Tracked is what a Registry needs from a request.
type Tracked interface {
	ID() string
	Status() Status
	Reject(reason string) bool
	OnComplete(fn func())
}

// Registry is the pending-requests table of one command family. Entries leave the
// table as soon as their request completes, whatever the cause.
type Registry[M Tracked] struct {
	name string

	mu      sync.Mutex
	pending map[string]M

	onUnknown func(name, id string)
}

func NewRegistry[M Tracked](name string) *Registry[M] {
	return &Registry[M]{name: name, pending: make(map[string]M)}
}

func (r *Registry[M]) Name() string {
	return r.name
}

// SetUnknownHook is called for every response whose id is not pending.
func (r *Registry[M]) SetUnknownHook(fn func(name, id string)) {
	r.mu.Lock()
	r.onUnknown = fn
	r.mu.Unlock()
}

// Register inserts m and arranges for its eviction on completion. A request that is
// already completed (pre-cancelled) is evicted again before Register returns.
func (r *Registry[M]) Register(m M) M {
	id := m.ID()
	r.mu.Lock()
	if _, dup := r.pending[id]; dup {
		logger.Warnf("correlation: %s duplicate id %s replaces pending entry", r.name, id)
	}
	r.pending[id] = m
	r.mu.Unlock()
	m.OnComplete(func() { r.evictIf(id, m) })
	return m
}

// Dispatch hands m to process if id is pending and evicts it if the call completed it.
// It reports whether id was pending.
func (r *Registry[M]) Dispatch(id string, process func(M)) bool {
	r.mu.Lock()
	m, ok := r.pending[id]
	hook := r.onUnknown
	r.mu.Unlock()
	if !ok {
		logger.Warnf("correlation: %s response for unknown id %s", r.name, id)
		if hook != nil {
			hook(r.name, id)
		}
		return false
	}
	process(m)
	if m.Status() == StatusCompleted {
		r.evictIf(id, m)
	}
	return true
}

// Lookup returns the pending request for id.
func (r *Registry[M]) Lookup(id string) (M, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.pending[id]
	return m, ok
}

// Evict removes id without touching the request's completion state.
func (r *Registry[M]) Evict(id string) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

func (r *Registry[M]) evictIf(id string, m M) {
	r.mu.Lock()
	if cur, ok := r.pending[id]; ok && any(cur) == any(m) {
		delete(r.pending, id)
	}
	r.mu.Unlock()
}

func (r *Registry[M]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// IDs returns the pending ids in sorted order.
func (r *Registry[M]) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// RejectAll rejects and evicts every pending request. Rejection happens outside the
// table lock so completion hooks may take other locks.
func (r *Registry[M]) RejectAll(reason string) int {
	r.mu.Lock()
	items := make([]M, 0, len(r.pending))
	for _, m := range r.pending {
		items = append(items, m)
	}
	r.pending = make(map[string]M)
	r.mu.Unlock()
	for _, m := range items {
		m.Reject(reason)
	}
	return len(items)
}
