package coordinator

import (
	"sync"

	"github.com/google/uuid"
)

// fetchKey names one outstanding pub-sub query.
type fetchKey struct {
	node     string
	identity string
}

// fetch is one outstanding query. Followers wait on done and read the result.
type fetch[T any] struct {
	id     string
	done   chan struct{}
	result T
	err    error
}

// tracker allows at most one outstanding query per (node, identity). Callers
// asking for a key that is already in flight share its result.
type tracker[T any] struct {
	mu      sync.Mutex
	pending map[fetchKey]*fetch[T]
}

func newTracker[T any]() *tracker[T] {
	return &tracker[T]{pending: make(map[fetchKey]*fetch[T])}
}

// join returns the outstanding fetch for key. leader is true when the caller
// created it and must call finish.
func (t *tracker[T]) join(key fetchKey) (f *fetch[T], leader bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if f, ok := t.pending[key]; ok {
		return f, false
	}
	f = &fetch[T]{id: uuid.NewString(), done: make(chan struct{})}
	t.pending[key] = f
	return f, true
}

// finish publishes the result of the fetch for key and forgets it.
func (t *tracker[T]) finish(key fetchKey, f *fetch[T], result T, err error) {
	t.mu.Lock()
	if t.pending[key] == f {
		delete(t.pending, key)
	}
	t.mu.Unlock()
	f.result, f.err = result, err
	close(f.done)
}

// outstanding reports how many queries are in flight.
func (t *tracker[T]) outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
