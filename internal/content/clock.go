package content

import (
	"sync"
	"time"
)

// Clock stamps mutations. Readings are truncated to milliseconds (the store's
// resolution) and strictly increase, so every write advances max(updatedAt).
type Clock struct {
	now func() time.Time

	mu   sync.Mutex
	last time.Time
}

func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(time.Millisecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Millisecond)
	}
	c.last = t
	return t
}
