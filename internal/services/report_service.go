package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"loggamera-bridge/internal/logging"
	"loggamera-bridge/internal/models"
)

// StatePublisher pushes state to the host
type StatePublisher interface {
	PublishDiscovery() error
	PublishReport(rep *models.Report, interval time.Duration) error
	PublishSettings(s models.Settings) error
}

// CycleRecorder keeps the outcome log
type CycleRecorder interface {
	RecordCycles(ctx context.Context, records []models.CycleRecord) error
}

// ReportService forwards poll reports to the host and the outcome log, and
// keeps the latest readings for the status API
type ReportService struct {
	publisher StatePublisher
	recorder  CycleRecorder
	interval  func() time.Duration
	logger    *slog.Logger

	// Input channel from the poller
	ReportsChan <-chan *models.Report

	mu       sync.RWMutex
	latest   *models.Report
	readings map[int][]models.Reading
}

// ReportServiceConfig holds the collaborators of the report service.
// Publisher and Recorder are optional.
type ReportServiceConfig struct {
	Publisher StatePublisher
	Recorder  CycleRecorder
	Interval  func() time.Duration
	Logger    *slog.Logger
}

// NewReportService creates a report service reading from reports
func NewReportService(reports <-chan *models.Report, config ReportServiceConfig) *ReportService {
	if config.Interval == nil {
		config.Interval = func() time.Duration { return models.DefaultScanInterval }
	}
	return &ReportService{
		publisher:   config.Publisher,
		recorder:    config.Recorder,
		interval:    config.Interval,
		logger:      logging.Component(config.Logger, "ReportService"),
		ReportsChan: reports,
		readings:    make(map[int][]models.Reading),
	}
}

// Start processes reports until ctx is cancelled or the channel is closed
func (s *ReportService) Start(ctx context.Context) {
	s.logger.Info("starting")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down")
			return
		case rep, ok := <-s.ReportsChan:
			if !ok {
				s.logger.Info("report channel closed, shutting down")
				return
			}
			s.Process(ctx, rep)
		}
	}
}

// Process handles a single report. Sink failures are logged, never returned.
func (s *ReportService) Process(ctx context.Context, rep *models.Report) {
	s.store(rep)

	if s.publisher != nil {
		if err := s.publisher.PublishReport(rep, s.interval()); err != nil {
			s.logger.Error("failed to publish report", "poll_id", rep.PollID, "error", err)
		}
	}

	if s.recorder != nil {
		if err := s.recorder.RecordCycles(ctx, CycleRecords(rep)); err != nil {
			s.logger.Error("failed to record cycles", "poll_id", rep.PollID, "error", err)
		}
	}
}

func (s *ReportService) store(rep *models.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = rep
	for _, r := range rep.Readings {
		list := s.readings[r.LocationID]
		replaced := false
		for i := range list {
			if list[i].Kind == r.Kind {
				list[i] = r
				replaced = true
			}
		}
		if !replaced {
			list = append(list, r)
		}
		s.readings[r.LocationID] = list
	}
}

// Republish pushes the latest report again, e.g. after the host restarted
func (s *ReportService) Republish() {
	rep := s.Latest()
	if rep == nil || s.publisher == nil {
		return
	}
	if err := s.publisher.PublishReport(rep, s.interval()); err != nil {
		s.logger.Error("failed to republish report", "error", err)
	}
}

// Latest returns the most recent report, nil before the first poll
func (s *ReportService) Latest() *models.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Readings returns the latest readings of a location
func (s *ReportService) Readings(locationID int) ([]models.Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list, ok := s.readings[locationID]
	if !ok {
		return nil, false
	}
	return append([]models.Reading(nil), list...), true
}

// CycleRecords converts a report to outcome log rows
func CycleRecords(rep *models.Report) []models.CycleRecord {
	out := make([]models.CycleRecord, 0, len(rep.Readings))
	for _, r := range rep.Readings {
		out = append(out, models.CycleRecord{
			PollID:     rep.PollID,
			Timestamp:  rep.StartedAt,
			LocationID: r.LocationID,
			Kind:       r.Kind,
			Outcome:    r.Outcome.String(),
			Attempts:   r.Attempts,
			Duration:   r.Took,
			Stale:      r.Stale,
		})
	}
	return out
}
