package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// SensorKind is the closed set of readings the portal exposes
type SensorKind int

const (
	KindTemperature SensorKind = iota
	KindHumidity
)

// SensorSpec describes how a reading of one kind is located and validated.
// Specs are built once at package init and never modified.
type SensorSpec struct {
	Kind        SensorKind
	Label       string
	Pattern     *regexp.Regexp // must have exactly one capture group
	Min         float64        // inclusive
	Max         float64        // inclusive
	Unit        string
	DeviceClass string
	Icon        string
}

var specs = [...]SensorSpec{
	KindTemperature: {
		Kind:        KindTemperature,
		Label:       "Temperature",
		Pattern:     regexp.MustCompile(`data-value="(-?\d+\.?\d*)"`),
		Min:         -5,
		Max:         40,
		Unit:        "°C",
		DeviceClass: "temperature",
		Icon:        "mdi:waves",
	},
	KindHumidity: {
		Kind:        KindHumidity,
		Label:       "Humidity",
		Pattern:     regexp.MustCompile(`humidity["\s]*:\s*["\s]*(\d+\.?\d*)`),
		Min:         0,
		Max:         100,
		Unit:        "%",
		DeviceClass: "humidity",
		Icon:        "mdi:water-percent",
	},
}

// Spec returns the immutable spec for the kind
func (k SensorKind) Spec() SensorSpec {
	return specs[k]
}

// String returns the configuration name of the kind
func (k SensorKind) String() string {
	switch k {
	case KindTemperature:
		return "temperature"
	case KindHumidity:
		return "humidity"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid reports whether k is one of the declared kinds
func (k SensorKind) Valid() bool {
	return k >= KindTemperature && k <= KindHumidity
}

// ParseSensorKind maps a configuration string to a kind
func ParseSensorKind(s string) (SensorKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "temperature", "temp":
		return KindTemperature, nil
	case "humidity":
		return KindHumidity, nil
	}
	return 0, fmt.Errorf("unknown sensor kind %q", s)
}

// Location is one monitored sensor endpoint at the portal
type Location struct {
	ID   int        `json:"id"`
	Name string     `json:"name"`
	Kind SensorKind `json:"-"`
}

// KnownLocations are the public lake sensors published by Hjo Energi
var KnownLocations = map[int]string{
	22: "Lake Vättern",
	21: "Lake Mullsjön",
}

// NewLocation builds a location, naming it from the known catalog when possible
func NewLocation(id int, kind SensorKind) Location {
	name, ok := KnownLocations[id]
	if !ok {
		name = fmt.Sprintf("Location %d", id)
	}
	return Location{ID: id, Name: name, Kind: kind}
}

// Key is the identifier used for topics, metrics and entity ids
func (l Location) Key() string {
	if l.Kind == KindTemperature {
		return fmt.Sprintf("%d", l.ID)
	}
	return fmt.Sprintf("%d_%s", l.ID, l.Kind)
}

// Reading is the exposed value of one location after a poll cycle
type Reading struct {
	LocationID int       `json:"location_id"`
	Location   string    `json:"location"`
	Kind       string    `json:"kind"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	AcquiredAt time.Time `json:"acquired_at"`
	Valid      bool      `json:"valid"`
	Stale      bool      `json:"stale"`
	Outcome    Outcome   `json:"outcome"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error,omitempty"`

	Took time.Duration `json:"-"`
}

// Outcome tags the result of one fetch+parse cycle
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeCached
	OutcomeNoMatch
	OutcomeOutOfRange
	OutcomeNetworkError
	OutcomeTimeout
	OutcomeHTTPStatus
)

var outcomeNames = [...]string{
	OutcomeSuccess:      "success",
	OutcomeCached:       "cached",
	OutcomeNoMatch:      "no_match",
	OutcomeOutOfRange:   "out_of_range",
	OutcomeNetworkError: "network_error",
	OutcomeTimeout:      "timeout",
	OutcomeHTTPStatus:   "http_status",
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return "unknown"
	}
	return outcomeNames[o]
}

// OK reports whether the outcome produced an available value
func (o Outcome) OK() bool {
	return o == OutcomeSuccess || o == OutcomeCached
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Summary states
const (
	StatusOK        = "ok"
	StatusPartial   = "partial"
	StatusAllFailed = "all_failed"
	StatusIdle      = "idle"
)

// Summary is the rollup of one poll across all locations
type Summary struct {
	Total  int    `json:"total"`
	OK     int    `json:"ok"`
	Failed int    `json:"failed"`
	State  string `json:"state"`
}

// Report is emitted by the poller once per poll
type Report struct {
	PollID    string        `json:"poll_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Readings  []Reading     `json:"readings"`
	Summary   Summary       `json:"summary"`
}
