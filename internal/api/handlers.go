package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"loggamera-bridge/internal/models"
)

const defaultOutcomeWindow = 24 * time.Hour

type handler struct {
	deps Deps
}

func (h *handler) wrap(route string, fn http.HandlerFunc) http.HandlerFunc {
	if h.deps.Metrics == nil {
		return fn
	}
	return h.deps.Metrics.WrapHandler(route, fn).ServeHTTP
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleGetReadings(w http.ResponseWriter, r *http.Request) {
	readings := make([]models.Reading, 0, len(h.deps.Locations))
	if rep := h.deps.Reports.Latest(); rep != nil {
		readings = append(readings, rep.Readings...)
	}
	writeJSON(w, http.StatusOK, readings)
}

func (h *handler) handleGetReading(w http.ResponseWriter, r *http.Request) {
	id, ok := locationID(w, r)
	if !ok {
		return
	}
	readings, found := h.deps.Reports.Readings(id)
	if !found {
		writeError(w, http.StatusNotFound, "no reading for location "+strconv.Itoa(id))
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

func (h *handler) handleGetOutcomes(w http.ResponseWriter, r *http.Request) {
	if h.deps.Outcomes == nil {
		writeError(w, http.StatusNotImplemented, "cycle log disabled")
		return
	}
	id, ok := locationID(w, r)
	if !ok {
		return
	}

	window := defaultOutcomeWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "invalid window")
			return
		}
		window = d
	}

	counts, err := h.deps.Outcomes.OutcomeCounts(r.Context(), id, time.Now().Add(-window))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"location_id": id,
		"window":      window.String(),
		"outcomes":    counts,
	})
}

type statusResponse struct {
	State        string            `json:"state"`
	Summary      *models.Summary   `json:"summary,omitempty"`
	PollID       string            `json:"poll_id,omitempty"`
	LastPoll     *time.Time        `json:"last_poll,omitempty"`
	ScanInterval int64             `json:"scan_interval_seconds"`
	DebugMode    bool              `json:"debug_mode"`
	Locations    []models.Location `json:"locations"`
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	settings := h.deps.Settings.Current()
	resp := statusResponse{
		State:        models.StatusIdle,
		ScanInterval: int64(settings.ScanInterval / time.Second),
		DebugMode:    settings.DebugMode,
		Locations:    h.deps.Locations,
	}
	if rep := h.deps.Reports.Latest(); rep != nil {
		summary := rep.Summary
		started := rep.StartedAt
		resp.State = summary.State
		resp.Summary = &summary
		resp.PollID = rep.PollID
		resp.LastPoll = &started
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handlePoll(w http.ResponseWriter, r *http.Request) {
	h.deps.Trigger.PollNow()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "poll requested"})
}

func locationID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, paramID))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid location id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
