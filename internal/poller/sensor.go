package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"loggamera-bridge/internal/cache"
	"loggamera-bridge/internal/extract"
	"loggamera-bridge/internal/logging"
	"loggamera-bridge/internal/models"
	"loggamera-bridge/internal/portal"
)

// Fetcher returns the raw overview page of a location
type Fetcher interface {
	Fetch(ctx context.Context, locationID int) (portal.Page, error)
}

// Sensor owns everything one location needs between polls: its spec, its
// fetcher and its last-good cache. Nothing is shared between sensors.
type Sensor struct {
	loc     models.Location
	spec    models.SensorSpec
	fetcher Fetcher
	cache   *cache.LastGood
	logger  *slog.Logger
	now     func() time.Time

	mu   sync.RWMutex
	last models.Reading
}

// NewSensor builds the per-location context. maxAge is the cache staleness bound.
func NewSensor(loc models.Location, fetcher Fetcher, maxAge time.Duration, logger *slog.Logger) *Sensor {
	s := &Sensor{
		loc:     loc,
		spec:    loc.Kind.Spec(),
		fetcher: fetcher,
		cache:   cache.NewLastGood(maxAge),
		logger:  logging.Component(logger, "Sensor").With("location", loc.ID, "kind", loc.Kind.String()),
		now:     time.Now,
	}
	s.last = s.blank()
	return s
}

// WithClock replaces the time source of the sensor and its cache
func (s *Sensor) WithClock(now func() time.Time) *Sensor {
	s.now = now
	s.cache.WithClock(now)
	return s
}

// Location returns the monitored location
func (s *Sensor) Location() models.Location { return s.loc }

// Spec returns the sensor kind spec
func (s *Sensor) Spec() models.SensorSpec { return s.spec }

// Last returns the reading produced by the most recent cycle
func (s *Sensor) Last() models.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *Sensor) blank() models.Reading {
	return models.Reading{
		LocationID: s.loc.ID,
		Location:   s.loc.Name,
		Kind:       s.loc.Kind.String(),
		Unit:       s.spec.Unit,
	}
}

// Cycle runs one fetch+parse for the location. The returned reading is always
// usable: on failure it is marked unavailable and err says why.
//
// The cache only covers extraction failures after a successful fetch.
func (s *Sensor) Cycle(ctx context.Context) (models.Reading, error) {
	r, err := s.cycle(ctx)
	s.mu.Lock()
	s.last = r
	s.mu.Unlock()
	return r, err
}

func (s *Sensor) cycle(ctx context.Context) (models.Reading, error) {
	r := s.blank()

	page, err := s.fetcher.Fetch(ctx, s.loc.ID)
	r.Attempts = page.Attempts
	if err != nil {
		r.Outcome = fetchOutcome(err)
		r.Error = err.Error()
		s.logger.Error("fetch failed", "outcome", r.Outcome, "error", err)
		return r, err
	}

	value, err := extract.Extract(page.Body, s.spec)
	if err == nil {
		now := s.now()
		s.cache.Remember(value, now)
		r.Value, r.AcquiredAt, r.Valid, r.Outcome = value, now, true, models.OutcomeSuccess
		s.logger.Debug("reading accepted", "value", value, "unit", s.spec.Unit)
		return r, nil
	}

	r.Outcome = extractOutcome(err)
	s.logger.Warn("no valid value in response", "outcome", r.Outcome, "error", err)
	if logging.DebugEnabled() {
		for _, c := range extract.Candidates(page.Body, s.spec) {
			s.logger.Debug("candidate", "raw", c.Raw, "in_range", c.InRange, "parse_error", c.Err)
		}
	}

	cached, at, cerr := s.cache.Fallback()
	if cerr == nil {
		s.logger.Info("using cached value", "value", cached, "age", s.now().Sub(at).Round(time.Second))
		r.Value, r.AcquiredAt, r.Valid, r.Stale = cached, at, true, true
		r.Outcome = models.OutcomeCached
		return r, nil
	}

	err = fmt.Errorf("location %d: %w (%w)", s.loc.ID, err, cerr)
	r.Error = err.Error()
	return r, err
}

func fetchOutcome(err error) models.Outcome {
	var se *portal.StatusError
	switch {
	case portal.IsTimeout(err):
		return models.OutcomeTimeout
	case errors.As(err, &se):
		return models.OutcomeHTTPStatus
	default:
		return models.OutcomeNetworkError
	}
}

func extractOutcome(err error) models.Outcome {
	if errors.Is(err, extract.ErrOutOfRange) {
		return models.OutcomeOutOfRange
	}
	return models.OutcomeNoMatch
}
