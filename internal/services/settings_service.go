package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"loggamera-bridge/internal/logging"
	"loggamera-bridge/internal/models"
)

const storeTimeout = 10 * time.Second

// IntervalSetter is the scheduler side of the scan interval
type IntervalSetter interface {
	SetInterval(d time.Duration)
}

// Republisher re-sends the last known state
type Republisher interface {
	Republish()
}

// SettingsService applies settings commands from the host, persists them and
// keeps the host's view of them current
type SettingsService struct {
	store     SettingsStore
	publisher StatePublisher
	scheduler IntervalSetter
	reports   Republisher
	setDebug  func(bool)
	logger    *slog.Logger

	// Input channels
	SettingsChan <-chan models.SettingsCommand
	HostOnline   <-chan struct{}

	mu      sync.RWMutex
	current models.Settings
}

// SettingsServiceConfig holds the collaborators of the settings service.
// Publisher and Reports are optional; SetDebug defaults to logging.SetDebug.
type SettingsServiceConfig struct {
	Store     SettingsStore
	Publisher StatePublisher
	Scheduler IntervalSetter
	Reports   Republisher
	SetDebug  func(bool)
	Logger    *slog.Logger
}

// NewSettingsService creates a settings service
func NewSettingsService(commands <-chan models.SettingsCommand, hostOnline <-chan struct{}, config SettingsServiceConfig) *SettingsService {
	if config.Store == nil {
		config.Store = NewMemoryStore()
	}
	if config.SetDebug == nil {
		config.SetDebug = logging.SetDebug
	}
	return &SettingsService{
		store:        config.Store,
		publisher:    config.Publisher,
		scheduler:    config.Scheduler,
		reports:      config.Reports,
		setDebug:     config.SetDebug,
		logger:       logging.Component(config.Logger, "SettingsService"),
		SettingsChan: commands,
		HostOnline:   hostOnline,
		current:      models.DefaultSettings(),
	}
}

// Init loads persisted settings, falling back to defaults, and applies them.
// A store failure is logged and the defaults are used.
func (s *SettingsService) Init(ctx context.Context, defaults models.Settings) models.Settings {
	settings := defaults

	loadCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	stored, ok, err := s.store.Load(loadCtx)
	cancel()
	switch {
	case err != nil:
		s.logger.Warn("failed to load settings, using defaults", "error", err)
	case ok:
		settings = stored
		s.logger.Info("loaded persisted settings", "scan_interval", stored.ScanInterval, "debug_mode", stored.DebugMode)
	}

	settings.ScanInterval = models.ClampInterval(settings.ScanInterval)
	s.apply(settings)
	return settings
}

// Start processes commands and host birth messages until ctx is cancelled
func (s *SettingsService) Start(ctx context.Context) {
	s.logger.Info("starting")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down")
			return
		case cmd, ok := <-s.SettingsChan:
			if !ok {
				return
			}
			s.Handle(ctx, cmd)
		case <-s.HostOnline:
			s.logger.Info("host came online, republishing")
			s.Republish()
		}
	}
}

// Handle applies a single command. The resulting state is always published
// so the host entity snaps back to the effective value after clamping.
func (s *SettingsService) Handle(ctx context.Context, cmd models.SettingsCommand) models.Settings {
	prev := s.Current()
	next := cmd.Apply(prev)

	if next != prev {
		s.apply(next)
		s.logger.Info("settings updated", "scan_interval", next.ScanInterval, "debug_mode", next.DebugMode)

		saveCtx, cancel := context.WithTimeout(ctx, storeTimeout)
		if err := s.store.Save(saveCtx, next); err != nil {
			s.logger.Error("failed to persist settings", "error", err)
		}
		cancel()
	}

	s.publishSettings(next)
	return next
}

// Republish sends discovery, settings and the last report again
func (s *SettingsService) Republish() {
	if s.publisher != nil {
		if err := s.publisher.PublishDiscovery(); err != nil {
			s.logger.Error("failed to publish discovery", "error", err)
		}
	}
	s.publishSettings(s.Current())
	if s.reports != nil {
		s.reports.Republish()
	}
}

// Current returns the effective settings
func (s *SettingsService) Current() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Interval returns the effective scan interval
func (s *SettingsService) Interval() time.Duration {
	return s.Current().ScanInterval
}

func (s *SettingsService) apply(settings models.Settings) {
	s.mu.Lock()
	s.current = settings
	s.mu.Unlock()

	if s.scheduler != nil {
		s.scheduler.SetInterval(settings.ScanInterval)
	}
	s.setDebug(settings.DebugMode)
}

func (s *SettingsService) publishSettings(settings models.Settings) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSettings(settings); err != nil {
		s.logger.Error("failed to publish settings", "error", err)
	}
}
