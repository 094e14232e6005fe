package runner

import (
	"context"
	"sync"
)

// Coordinator serializes runs between the interval scheduler and manual API
// triggers, and remembers the most recent outcome for the status endpoint.
type Coordinator struct {
	runner *Runner

	mu      sync.Mutex
	running bool

	lastMu  sync.RWMutex
	last    *Result
	lastErr error
}

func NewCoordinator(r *Runner) *Coordinator {
	return &Coordinator{runner: r}
}

// Run executes a single pass unless one is already in flight, in which case
// it returns ErrLocked without blocking.
func (c *Coordinator) Run(ctx context.Context) (*Result, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil, ErrLocked
	}
	c.running = true
	c.mu.Unlock()

	result, err := c.runner.RunOnce(ctx)

	c.lastMu.Lock()
	c.last, c.lastErr = result, err
	c.lastMu.Unlock()

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	return result, err
}

// Last returns the most recent run's result and error, or (nil, nil) before
// the first run completes.
func (c *Coordinator) Last() (*Result, error) {
	c.lastMu.RLock()
	defer c.lastMu.RUnlock()
	return c.last, c.lastErr
}

// Running reports whether a run is currently in flight.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
