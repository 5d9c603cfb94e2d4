package cache

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestFallbackEmpty(t *testing.T) {
	c := NewLastGood(time.Minute)
	_, _, err := c.Fallback()
	if !errors.Is(err, ErrEmpty) || !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestFallbackFreshThenStale(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: base}
	c := NewLastGood(30 * time.Minute).WithClock(clock.now)

	c.Remember(18.4, base)

	clock.t = base.Add(29 * time.Minute)
	v, at, err := c.Fallback()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 18.4 || !at.Equal(base) {
		t.Fatalf("expected 18.4 at %s, got %v at %s", base, v, at)
	}

	clock.t = base.Add(31 * time.Minute)
	_, _, err = c.Fallback()
	var se *StaleError
	if !errors.As(err, &se) {
		t.Fatalf("expected StaleError, got %v", err)
	}
	if !errors.Is(err, ErrStale) {
		t.Fatalf("expected StaleError to match ErrStale")
	}
	if se.Age != 31*time.Minute {
		t.Fatalf("expected age 31m, got %s", se.Age)
	}
}

func TestRememberOverwrites(t *testing.T) {
	base := time.Now()
	c := NewLastGood(time.Hour).WithClock(func() time.Time { return base })
	c.Remember(1, base.Add(-10*time.Minute))
	c.Remember(2, base.Add(-time.Minute))
	v, _, err := c.Fallback()
	if err != nil || v != 2 {
		t.Fatalf("expected 2, got %v (%v)", v, err)
	}
}

func TestDefaultMaxAge(t *testing.T) {
	if got := NewLastGood(0).MaxAge(); got != DefaultMaxAge {
		t.Fatalf("expected %s, got %s", DefaultMaxAge, got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := NewLastGood(time.Hour)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(v float64) {
			defer wg.Done()
			c.Remember(v, time.Now())
		}(float64(i))
		go func() {
			defer wg.Done()
			_, _, _ = c.Fallback()
		}()
	}
	wg.Wait()
	if _, _, err := c.Fallback(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
