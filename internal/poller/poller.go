package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"loggamera-bridge/internal/logging"
	"loggamera-bridge/internal/models"
)

// Observer receives per-cycle and per-poll results, e.g. for metrics
type Observer interface {
	ObserveCycle(r models.Reading, took time.Duration)
	ObservePoll(rep *models.Report)
}

// Config holds poller options
type Config struct {
	Interval time.Duration
	// Budget caps a whole poll; normally the fetcher's timeout x attempts plus delays
	Budget      time.Duration
	ChannelSize int
	Observer    Observer
	Logger      *slog.Logger
}

// Poller runs a cycle for every sensor on a fixed interval and emits one
// report per poll. Cycles of different locations run concurrently and never
// affect each other.
type Poller struct {
	sensors  []*Sensor
	budget   time.Duration
	observer Observer
	logger   *slog.Logger

	// Output channel (read by the report service)
	Reports chan *models.Report

	mu       sync.Mutex
	interval time.Duration
	reset    chan struct{}
	trigger  chan struct{}
}

// New creates a poller over sensors
func New(sensors []*Sensor, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = models.DefaultScanInterval
	}
	if cfg.ChannelSize <= 0 {
		cfg.ChannelSize = 10
	}
	return &Poller{
		sensors:  sensors,
		budget:   cfg.Budget,
		observer: cfg.Observer,
		logger:   logging.Component(cfg.Logger, "Poller"),
		Reports:  make(chan *models.Report, cfg.ChannelSize),
		interval: cfg.Interval,
		reset:    make(chan struct{}, 1),
		trigger:  make(chan struct{}, 1),
	}
}

// Sensors returns the polled sensors
func (p *Poller) Sensors() []*Sensor { return p.sensors }

// Interval returns the current poll interval
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// SetInterval changes the poll interval; the running loop picks it up immediately
func (p *Poller) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	changed := p.interval != d
	p.interval = d
	p.mu.Unlock()
	if changed {
		signal(p.reset)
		p.logger.Info("interval changed", "interval", d)
	}
}

// PollNow asks the running loop for an extra poll
func (p *Poller) PollNow() {
	signal(p.trigger)
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Start polls once, then on every tick, until ctx is cancelled.
// Reports is closed on return.
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("starting", "locations", len(p.sensors), "interval", p.Interval())
	defer close(p.Reports)

	ticker := time.NewTicker(p.Interval())
	defer ticker.Stop()

	p.emit(ctx, p.Poll(ctx))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("shutting down")
			return
		case <-p.reset:
			ticker.Reset(p.Interval())
		case <-p.trigger:
			p.emit(ctx, p.Poll(ctx))
		case <-ticker.C:
			p.emit(ctx, p.Poll(ctx))
		}
	}
}

func (p *Poller) emit(ctx context.Context, rep *models.Report) {
	if rep == nil {
		return
	}
	select {
	case p.Reports <- rep:
	case <-ctx.Done():
	case <-time.After(time.Second):
		p.logger.Warn("report channel full, dropping report", "poll_id", rep.PollID)
	}
}

// Poll runs one cycle per sensor and returns the combined report
func (p *Poller) Poll(ctx context.Context) *models.Report {
	if ctx.Err() != nil {
		return nil
	}
	rep := &models.Report{
		PollID:    uuid.NewString(),
		StartedAt: time.Now(),
		Readings:  make([]models.Reading, len(p.sensors)),
	}

	if p.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.budget)
		defer cancel()
	}

	// Plain group: a failing location must not cancel the others.
	var g errgroup.Group
	for i, s := range p.sensors {
		i, s := i, s
		g.Go(func() error {
			start := time.Now()
			r, _ := s.Cycle(ctx)
			r.Took = time.Since(start)
			rep.Readings[i] = r
			if p.observer != nil {
				p.observer.ObserveCycle(r, r.Took)
			}
			return nil
		})
	}
	_ = g.Wait()

	rep.Duration = time.Since(rep.StartedAt)
	rep.Summary = Summarize(rep.Readings)
	if p.observer != nil {
		p.observer.ObservePoll(rep)
	}

	p.logger.Info("poll complete",
		"poll_id", rep.PollID,
		"state", rep.Summary.State,
		"ok", rep.Summary.OK,
		"failed", rep.Summary.Failed,
		"took", rep.Duration.Round(time.Millisecond))
	return rep
}

// Summarize derives the rollup status from per-location readings
func Summarize(readings []models.Reading) models.Summary {
	s := models.Summary{Total: len(readings)}
	for _, r := range readings {
		if r.Valid {
			s.OK++
		}
	}
	s.Failed = s.Total - s.OK
	switch {
	case s.Total == 0:
		s.State = models.StatusIdle
	case s.Failed == 0:
		s.State = models.StatusOK
	case s.OK == 0:
		s.State = models.StatusAllFailed
	default:
		s.State = models.StatusPartial
	}
	return s
}
