// Package health aggregates readiness checks for the HTTP and gRPC surfaces.
package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const defaultTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function (e.g. (*sql.DB).PingContext) to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Checker runs every registered Pinger concurrently under a shared timeout.
type Checker struct {
	mu      sync.RWMutex
	names   []string
	checks  map[string]Pinger
	timeout time.Duration
}

// NewChecker returns an empty Checker. A non-positive timeout uses 2s.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Checker{checks: make(map[string]Pinger), timeout: timeout}
}

// Add registers p under name. A nil p is ignored.
func (c *Checker) Add(name string, p Pinger) {
	if c == nil || p == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.checks[name]; !ok {
		c.names = append(c.names, name)
	}
	c.checks[name] = p
}

// Check pings every dependency and returns a status per name ("ok" or the
// error text) plus a joined error when any check failed.
func (c *Checker) Check(ctx context.Context) (map[string]string, error) {
	if c == nil {
		return map[string]string{}, nil
	}
	c.mu.RLock()
	names := append([]string(nil), c.names...)
	checks := make(map[string]Pinger, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	errs := make([]error, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, p Pinger) {
			defer wg.Done()
			errs[i] = p.Ping(ctx)
		}(i, checks[name])
	}
	wg.Wait()

	status := make(map[string]string, len(names))
	var failed []error
	for i, name := range names {
		if errs[i] != nil {
			status[name] = errs[i].Error()
			failed = append(failed, fmt.Errorf("%s: %w", name, errs[i]))
			continue
		}
		status[name] = "ok"
	}
	return status, errors.Join(failed...)
}
