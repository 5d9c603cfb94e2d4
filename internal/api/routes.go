package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"loggamera-bridge/internal/metrics"
	"loggamera-bridge/internal/models"
)

const (
	apiBasePath      = "/api"
	readingsBasePath = "/readings"
	statusPath       = "/status"
	pollPath         = "/poll"
	outcomesSubPath  = "/outcomes"

	paramID = "id"
)

// ReportSource serves the latest poll results
type ReportSource interface {
	Latest() *models.Report
	Readings(locationID int) ([]models.Reading, bool)
}

// SettingsSource serves the effective settings
type SettingsSource interface {
	Current() models.Settings
}

// Trigger requests an out-of-band poll
type Trigger interface {
	PollNow()
}

// OutcomeSource serves outcome counts from the cycle log
type OutcomeSource interface {
	OutcomeCounts(ctx context.Context, locationID int, since time.Time) (map[string]uint64, error)
}

// Deps are the collaborators of the HTTP API. Outcomes and Metrics are optional.
type Deps struct {
	Reports   ReportSource
	Settings  SettingsSource
	Trigger   Trigger
	Outcomes  OutcomeSource
	Metrics   *metrics.Metrics
	Locations []models.Location
}

// SetupRoutes builds the router
func SetupRoutes(deps Deps) http.Handler {
	h := &handler{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.wrap("/health", h.handleHealth))

	r.Route(apiBasePath, func(r chi.Router) {
		r.Route(readingsBasePath, func(r chi.Router) {
			r.Get("/", h.wrap("/api/readings", h.handleGetReadings))
			r.Route("/{"+paramID+"}", func(r chi.Router) {
				r.Get("/", h.wrap("/api/readings/{id}", h.handleGetReading))
				r.Get(outcomesSubPath, h.wrap("/api/readings/{id}/outcomes", h.handleGetOutcomes))
			})
		})
		r.Get(statusPath, h.wrap("/api/status", h.handleStatus))
		r.Post(pollPath, h.wrap("/api/poll", h.handlePoll))
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	return r
}
