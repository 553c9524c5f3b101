// Package cursor steps through a recorded heart-rate stream one sample at a time.
package cursor

import (
	"sync"

	"github.com/okian/pulse/internal/domain/model"
)

// Cursor is an iterator over a fixed sample sequence. Once the last sample
// is reached every further call to Next returns it again.
type Cursor struct {
	mu      sync.Mutex
	samples []model.HRSample
	pos     int
}

// New creates a cursor positioned at the first sample.
func New(samples []model.HRSample) (*Cursor, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	cp := make([]model.HRSample, len(samples))
	copy(cp, samples)
	return &Cursor{samples: cp}, nil
}

// Next returns the current sample and advances, clamping at the last one.
func (c *Cursor) Next() model.HRSample {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.samples[c.pos]
	if c.pos < len(c.samples)-1 {
		c.pos++
	}
	return s
}

// Reset rewinds to the first sample.
func (c *Cursor) Reset() {
	c.mu.Lock()
	c.pos = 0
	c.mu.Unlock()
}

// Position is the index Next will return.
func (c *Cursor) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

// Len is the number of samples.
func (c *Cursor) Len() int { return len(c.samples) }
