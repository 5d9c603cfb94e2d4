package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"loggamera-bridge/internal/logging"
	"loggamera-bridge/internal/models"
)

type fakePublisher struct {
	mu        sync.Mutex
	discovery int
	reports   []*models.Report
	intervals []time.Duration
	settings  []models.Settings
	err       error
}

func (p *fakePublisher) PublishDiscovery() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.discovery++
	return p.err
}

func (p *fakePublisher) PublishReport(rep *models.Report, interval time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, rep)
	p.intervals = append(p.intervals, interval)
	return p.err
}

func (p *fakePublisher) PublishSettings(s models.Settings) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = append(p.settings, s)
	return p.err
}

func (p *fakePublisher) reportCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reports)
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []models.CycleRecord
	err     error
}

func (r *fakeRecorder) RecordCycles(ctx context.Context, records []models.CycleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, records...)
	return r.err
}

type fakeScheduler struct {
	intervals []time.Duration
}

func (f *fakeScheduler) SetInterval(d time.Duration) {
	f.intervals = append(f.intervals, d)
}

type failingStore struct {
	saves int
}

func (f *failingStore) Load(ctx context.Context) (models.Settings, bool, error) {
	return models.Settings{}, false, errors.New("connection refused")
}

func (f *failingStore) Save(ctx context.Context, s models.Settings) error {
	f.saves++
	return errors.New("connection refused")
}

func sampleReport(id string) *models.Report {
	readings := []models.Reading{
		{LocationID: 22, Kind: "temperature", Value: 18.5, Valid: true, Outcome: models.OutcomeSuccess, Attempts: 1, Took: 120 * time.Millisecond},
		{LocationID: 21, Kind: "temperature", Outcome: models.OutcomeTimeout, Attempts: 3, Error: "timeout"},
	}
	return &models.Report{
		PollID:    id,
		StartedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Readings:  readings,
		Summary:   models.Summary{Total: 2, OK: 1, Failed: 1, State: models.StatusPartial},
	}
}

func TestReportServiceProcess(t *testing.T) {
	pub := &fakePublisher{}
	rec := &fakeRecorder{}
	svc := NewReportService(nil, ReportServiceConfig{
		Publisher: pub,
		Recorder:  rec,
		Interval:  func() time.Duration { return 10 * time.Minute },
		Logger:    logging.Discard(),
	})

	rep := sampleReport("poll-1")
	svc.Process(context.Background(), rep)

	if svc.Latest() != rep {
		t.Fatalf("latest report not stored")
	}
	if pub.reportCount() != 1 || pub.intervals[0] != 10*time.Minute {
		t.Fatalf("expected one publish with interval, got %d %v", pub.reportCount(), pub.intervals)
	}
	if len(rec.records) != 2 {
		t.Fatalf("expected 2 cycle records, got %d", len(rec.records))
	}
	first := rec.records[0]
	if first.PollID != "poll-1" || first.LocationID != 22 || first.Outcome != "success" || first.Duration != 120*time.Millisecond {
		t.Fatalf("unexpected record %+v", first)
	}
	if rec.records[1].Outcome != "timeout" || rec.records[1].Attempts != 3 {
		t.Fatalf("unexpected record %+v", rec.records[1])
	}

	readings, ok := svc.Readings(22)
	if !ok || len(readings) != 1 || readings[0].Value != 18.5 {
		t.Fatalf("unexpected readings %+v", readings)
	}
	if _, ok := svc.Readings(99); ok {
		t.Fatalf("unknown location should not be found")
	}
}

func TestReportServiceSinkFailuresAreNotFatal(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	rec := &fakeRecorder{err: errors.New("db down")}
	reports := make(chan *models.Report, 2)
	svc := NewReportService(reports, ReportServiceConfig{Publisher: pub, Recorder: rec, Logger: logging.Discard()})

	reports <- sampleReport("a")
	reports <- sampleReport("b")
	close(reports)

	done := make(chan struct{})
	go func() {
		svc.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("service did not stop after channel close")
	}
	if pub.reportCount() != 2 {
		t.Fatalf("expected both reports processed, got %d", pub.reportCount())
	}
	if svc.Latest().PollID != "b" {
		t.Fatalf("expected latest poll b, got %s", svc.Latest().PollID)
	}
}

func TestReportServiceKeepsReadingsPerKind(t *testing.T) {
	svc := NewReportService(nil, ReportServiceConfig{Logger: logging.Discard()})
	svc.Process(context.Background(), &models.Report{Readings: []models.Reading{
		{LocationID: 30, Kind: "temperature", Value: 12},
		{LocationID: 30, Kind: "humidity", Value: 80},
	}})
	svc.Process(context.Background(), &models.Report{Readings: []models.Reading{
		{LocationID: 30, Kind: "humidity", Value: 82},
	}})

	readings, _ := svc.Readings(30)
	if len(readings) != 2 {
		t.Fatalf("expected 2 readings, got %+v", readings)
	}
	if readings[1].Value != 82 {
		t.Fatalf("humidity not replaced: %+v", readings)
	}
}

func TestReportServiceRepublish(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewReportService(nil, ReportServiceConfig{Publisher: pub, Logger: logging.Discard()})

	svc.Republish()
	if pub.reportCount() != 0 {
		t.Fatalf("nothing to republish before the first poll")
	}

	svc.Process(context.Background(), sampleReport("x"))
	svc.Republish()
	if pub.reportCount() != 2 {
		t.Fatalf("expected republish, got %d publishes", pub.reportCount())
	}
}

func newSettingsService(store SettingsStore, pub *fakePublisher, sched *fakeScheduler, debug *bool) *SettingsService {
	return NewSettingsService(nil, nil, SettingsServiceConfig{
		Store:     store,
		Publisher: pub,
		Scheduler: sched,
		SetDebug:  func(on bool) { *debug = on },
		Logger:    logging.Discard(),
	})
}

func TestSettingsInitUsesPersisted(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Save(context.Background(), models.Settings{ScanInterval: 15 * time.Minute, DebugMode: true})
	sched := &fakeScheduler{}
	var debug bool
	svc := newSettingsService(store, &fakePublisher{}, sched, &debug)

	got := svc.Init(context.Background(), models.DefaultSettings())
	if got.ScanInterval != 15*time.Minute || !got.DebugMode {
		t.Fatalf("expected persisted settings, got %+v", got)
	}
	if !debug || len(sched.intervals) != 1 || sched.intervals[0] != 15*time.Minute {
		t.Fatalf("settings not applied: debug=%v intervals=%v", debug, sched.intervals)
	}
}

func TestSettingsInitFallsBackToDefaults(t *testing.T) {
	var debug bool
	svc := newSettingsService(&failingStore{}, &fakePublisher{}, &fakeScheduler{}, &debug)

	defaults := models.Settings{ScanInterval: 10 * time.Minute}
	if got := svc.Init(context.Background(), defaults); got != defaults {
		t.Fatalf("expected defaults, got %+v", got)
	}
	if svc.Interval() != 10*time.Minute {
		t.Fatalf("unexpected interval %v", svc.Interval())
	}
}

func TestSettingsHandleClampsPersistsAndPublishes(t *testing.T) {
	store := NewMemoryStore()
	pub := &fakePublisher{}
	sched := &fakeScheduler{}
	var debug bool
	svc := newSettingsService(store, pub, sched, &debug)
	svc.Init(context.Background(), models.DefaultSettings())

	huge := 48 * time.Hour
	got := svc.Handle(context.Background(), models.SettingsCommand{ScanInterval: &huge})
	if got.ScanInterval != models.MaxScanInterval {
		t.Fatalf("expected clamp to %v, got %v", models.MaxScanInterval, got.ScanInterval)
	}
	saved, ok, _ := store.Load(context.Background())
	if !ok || saved.ScanInterval != models.MaxScanInterval {
		t.Fatalf("settings not persisted: %+v", saved)
	}
	if last := sched.intervals[len(sched.intervals)-1]; last != models.MaxScanInterval {
		t.Fatalf("scheduler not updated: %v", last)
	}

	on := true
	svc.Handle(context.Background(), models.SettingsCommand{DebugMode: &on})
	if !debug || !svc.Current().DebugMode {
		t.Fatalf("debug mode not applied")
	}
	if len(pub.settings) != 2 {
		t.Fatalf("expected settings published per command, got %d", len(pub.settings))
	}
}

func TestSettingsHandleUnchangedSkipsSave(t *testing.T) {
	store := &failingStore{}
	pub := &fakePublisher{}
	var debug bool
	svc := newSettingsService(store, pub, &fakeScheduler{}, &debug)
	svc.Init(context.Background(), models.DefaultSettings())

	same := models.DefaultScanInterval
	svc.Handle(context.Background(), models.SettingsCommand{ScanInterval: &same})
	if store.saves != 0 {
		t.Fatalf("unchanged settings should not be saved")
	}
	if len(pub.settings) != 1 {
		t.Fatalf("state should still be published")
	}

	other := 2 * time.Minute
	got := svc.Handle(context.Background(), models.SettingsCommand{ScanInterval: &other})
	if store.saves != 1 || got.ScanInterval != other {
		t.Fatalf("save failure must not block the change: saves=%d got=%+v", store.saves, got)
	}
}

type fakeReports struct{ n int }

func (f *fakeReports) Republish() { f.n++ }

func TestSettingsStartHandlesHostBirth(t *testing.T) {
	commands := make(chan models.SettingsCommand)
	birth := make(chan struct{})
	pub := &fakePublisher{}
	reports := &fakeReports{}
	svc := NewSettingsService(commands, birth, SettingsServiceConfig{
		Publisher: pub,
		Scheduler: &fakeScheduler{},
		Reports:   reports,
		SetDebug:  func(bool) {},
		Logger:    logging.Discard(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	birth <- struct{}{}
	interval := 120 * time.Second
	commands <- models.SettingsCommand{ScanInterval: &interval}
	cancel()
	<-done

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.discovery != 1 || reports.n != 1 {
		t.Fatalf("expected discovery and report republish, got %d %d", pub.discovery, reports.n)
	}
	if len(pub.settings) != 2 {
		t.Fatalf("expected settings published on birth and command, got %d", len(pub.settings))
	}
	if svc.Interval() != interval {
		t.Fatalf("command not applied: %v", svc.Interval())
	}
}
