package cursor

import (
	"sync"

	"github.com/google/uuid"

	"github.com/okian/pulse/internal/domain/model"
)

const defaultMaxCursors = 1024

// Option configures a Registry.
type Option func(*Registry)

// WithMaxCursors bounds the number of open cursors. When full, opening a new
// cursor closes the oldest one. Values <= 0 are ignored.
func WithMaxCursors(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.max = n
		}
	}
}

// Registry owns the cursors of all open stream sessions, one per session ID.
type Registry struct {
	mu      sync.RWMutex
	cursors map[string]*Cursor
	order   []string // open IDs, oldest first
	max     int
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		cursors: make(map[string]*Cursor),
		max:     defaultMaxCursors,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open creates a cursor over samples and returns its session ID.
func (r *Registry) Open(samples []model.HRSample) (string, *Cursor, error) {
	c, err := New(samples)
	if err != nil {
		return "", nil, err
	}
	id := uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.order) >= r.max {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.cursors, oldest)
	}
	r.cursors[id] = c
	r.order = append(r.order, id)
	return id, c, nil
}

// Get returns the cursor for id.
func (r *Registry) Get(id string) (*Cursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cursors[id]
	if !ok {
		return nil, ErrCursorNotFound
	}
	return c, nil
}

// Close drops the cursor for id.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cursors[id]; !ok {
		return ErrCursorNotFound
	}
	delete(r.cursors, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Len returns the number of open cursors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cursors)
}
