package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"loggamera-bridge/internal/logging"
	"loggamera-bridge/internal/models"
)

const publishTimeout = 5 * time.Second

// Publisher writes discovery, state and settings messages for Home Assistant.
// Every message is retained so the host sees the last state after a restart.
type Publisher struct {
	client    Broker
	topics    Topics
	locations []models.Location
	endpoint  string
	logger    *slog.Logger
}

// PublisherConfig holds configuration for MQTT publisher
type PublisherConfig struct {
	Topics    Topics
	Locations []models.Location
	// Endpoint is shown as an entity attribute
	Endpoint string
	Logger   *slog.Logger
}

// NewPublisher creates a new MQTT publisher
func NewPublisher(client Broker, config PublisherConfig) *Publisher {
	return &Publisher{
		client:    client,
		topics:    config.Topics,
		locations: config.Locations,
		endpoint:  config.Endpoint,
		logger:    logging.Component(config.Logger, "MQTT Publisher"),
	}
}

// locationAttributes is the JSON attributes payload of a location sensor
type locationAttributes struct {
	LocationID          int    `json:"location_id"`
	Source              string `json:"source"`
	APIEndpoint         string `json:"api_endpoint,omitempty"`
	ScanIntervalSeconds int    `json:"scan_interval_seconds,omitempty"`
	Outcome             string `json:"outcome"`
	Stale               bool   `json:"stale"`
	Attempts            int    `json:"attempts"`
	LastUpdate          string `json:"last_update,omitempty"`
	Error               string `json:"error,omitempty"`
}

type statusAttributes struct {
	models.Summary
	PollID    string `json:"poll_id"`
	Timestamp string `json:"timestamp"`
}

// PublishDiscovery announces every entity
func (p *Publisher) PublishDiscovery() error {
	var errs []error
	for _, d := range AllDiscovery(p.topics, p.locations) {
		if err := p.publishJSON(d.Topic, d.Config); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		p.logger.Info("discovery published", "entities", len(p.locations)+3)
	}
	return errors.Join(errs...)
}

// PublishReport pushes the readings and rollup status of one poll
func (p *Publisher) PublishReport(rep *models.Report, interval time.Duration) error {
	var errs []error
	for _, r := range rep.Readings {
		if err := p.publishReading(r, interval); err != nil {
			errs = append(errs, err)
		}
	}

	attrs := statusAttributes{
		Summary:   rep.Summary,
		PollID:    rep.PollID,
		Timestamp: rep.StartedAt.UTC().Format(time.RFC3339),
	}
	if err := p.publish(p.topics.StatusState(), rep.Summary.State); err != nil {
		errs = append(errs, err)
	}
	if err := p.publishJSON(p.topics.StatusAttributes(), attrs); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (p *Publisher) publishReading(r models.Reading, interval time.Duration) error {
	loc := p.locationFor(r)

	attrs := locationAttributes{
		LocationID:          r.LocationID,
		Source:              models.SourceName,
		APIEndpoint:         p.endpoint,
		ScanIntervalSeconds: int(interval.Seconds()),
		Outcome:             r.Outcome.String(),
		Stale:               r.Stale,
		Attempts:            r.Attempts,
		Error:               r.Error,
	}
	if !r.AcquiredAt.IsZero() {
		attrs.LastUpdate = r.AcquiredAt.UTC().Format(time.RFC3339)
	}

	availability := PayloadOffline
	if r.Valid {
		availability = PayloadOnline
		if err := p.publish(p.topics.LocationState(loc), FormatValue(r.Value)); err != nil {
			return err
		}
	}
	if err := p.publishJSON(p.topics.LocationAttributes(loc), attrs); err != nil {
		return err
	}
	return p.publish(p.topics.LocationAvailability(loc), availability)
}

func (p *Publisher) locationFor(r models.Reading) models.Location {
	for _, loc := range p.locations {
		if loc.ID == r.LocationID && loc.Kind.String() == r.Kind {
			return loc
		}
	}
	kind, _ := models.ParseSensorKind(r.Kind)
	return models.NewLocation(r.LocationID, kind)
}

// PublishSettings pushes the current settings to the number and switch entities
func (p *Publisher) PublishSettings(s models.Settings) error {
	debug := SwitchOff
	if s.DebugMode {
		debug = SwitchOn
	}
	return errors.Join(
		p.publish(p.topics.IntervalState(), strconv.Itoa(int(s.ScanInterval.Seconds()))),
		p.publish(p.topics.DebugState(), debug),
	)
}

func (p *Publisher) publishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", topic, err)
	}
	return p.publish(topic, payload)
}

func (p *Publisher) publish(topic string, payload any) error {
	token := p.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timeout publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	p.logger.Debug("published", "topic", topic)
	return nil
}

// FormatValue renders a reading without losing precision
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
