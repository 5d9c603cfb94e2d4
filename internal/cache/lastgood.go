// Package cache remembers the last accepted reading of a location.
package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultMaxAge is the staleness bound for serving a remembered value
const DefaultMaxAge = 30 * time.Minute

var (
	// ErrStale is matched by both ErrEmpty and *StaleError
	ErrStale = errors.New("no fresh cached value")
	ErrEmpty = fmt.Errorf("%w: nothing cached", ErrStale)
)

// StaleError reports a remembered value that is too old to serve
type StaleError struct {
	Age    time.Duration
	MaxAge time.Duration
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("cached value is %s old (limit %s)", e.Age.Round(time.Second), e.MaxAge)
}

func (e *StaleError) Is(target error) bool {
	return target == ErrStale
}

// LastGood holds one value. It is safe for concurrent use.
type LastGood struct {
	maxAge time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	value float64
	at    time.Time
	set   bool
}

// NewLastGood returns an empty cache with the given staleness bound
func NewLastGood(maxAge time.Duration) *LastGood {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &LastGood{maxAge: maxAge, now: time.Now}
}

// WithClock replaces the time source
func (c *LastGood) WithClock(now func() time.Time) *LastGood {
	c.now = now
	return c
}

// Remember stores value as acquired at at
func (c *LastGood) Remember(value float64, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value, c.at, c.set = value, at, true
}

// Fallback returns the remembered value while it is younger than the bound
func (c *LastGood) Fallback() (float64, time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.set {
		return 0, time.Time{}, ErrEmpty
	}
	age := c.now().Sub(c.at)
	if age >= c.maxAge {
		return 0, c.at, &StaleError{Age: age, MaxAge: c.maxAge}
	}
	return c.value, c.at, nil
}

// MaxAge returns the staleness bound
func (c *LastGood) MaxAge() time.Duration {
	return c.maxAge
}
