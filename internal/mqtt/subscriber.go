package mqtt

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"loggamera-bridge/internal/logging"
	"loggamera-bridge/internal/models"
)

// Subscriber handles MQTT subscriptions and writes commands to channels
type Subscriber struct {
	client Broker
	topics Topics
	logger *slog.Logger

	// Output channels (written by subscriber, read by services)
	SettingsChan chan models.SettingsCommand
	HostOnline   chan struct{}
}

// NewSubscriber creates a new MQTT subscriber with channels
func NewSubscriber(
	client Broker,
	topics Topics,
	settingsChan chan models.SettingsCommand,
	hostOnline chan struct{},
	logger *slog.Logger,
) *Subscriber {
	return &Subscriber{
		client:       client,
		topics:       topics,
		SettingsChan: settingsChan,
		HostOnline:   hostOnline,
		logger:       logging.Component(logger, "MQTT Subscriber"),
	}
}

// SubscribeAll subscribes to the command topics and the host birth topic
func (s *Subscriber) SubscribeAll() error {
	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{s.topics.IntervalCommand(), s.handleInterval},
		{s.topics.DebugCommand(), s.handleDebug},
		{s.topics.HostStatus(), s.handleHostStatus},
	}
	for _, sub := range subs {
		if err := s.subscribeToTopic(sub.topic, sub.handler); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", sub.topic, err)
		}
		s.logger.Info("subscribed", "topic", sub.topic)
	}
	return nil
}

// subscribeToTopic is a helper function to subscribe to a topic with a handler
func (s *Subscriber) subscribeToTopic(topic string, handler mqtt.MessageHandler) error {
	token := s.client.Subscribe(topic, 1, handler)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (s *Subscriber) handleInterval(client mqtt.Client, msg mqtt.Message) {
	d, err := ParseInterval(string(msg.Payload()))
	if err != nil {
		s.logger.Warn("invalid interval command", "payload", string(msg.Payload()), "error", err)
		return
	}
	s.send(models.SettingsCommand{ScanInterval: &d})
}

func (s *Subscriber) handleDebug(client mqtt.Client, msg mqtt.Message) {
	on, err := ParseSwitch(string(msg.Payload()))
	if err != nil {
		s.logger.Warn("invalid debug command", "payload", string(msg.Payload()), "error", err)
		return
	}
	s.send(models.SettingsCommand{DebugMode: &on})
}

func (s *Subscriber) handleHostStatus(client mqtt.Client, msg mqtt.Message) {
	if strings.TrimSpace(string(msg.Payload())) != PayloadOnline {
		return
	}
	s.logger.Info("host came online")
	select {
	case s.HostOnline <- struct{}{}:
	default:
		// one pending announcement is enough
	}
}

// Write to channel (non-blocking with timeout)
func (s *Subscriber) send(cmd models.SettingsCommand) {
	select {
	case s.SettingsChan <- cmd:
	case <-time.After(1 * time.Second):
		s.logger.Warn("settings channel full, dropping command")
	}
}

// ParseInterval accepts a number of seconds, as sent by the number entity
func ParseInterval(payload string) (time.Duration, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(payload), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, fmt.Errorf("interval must be a positive number of seconds")
	}
	if f > models.MaxScanInterval.Seconds() {
		return models.MaxScanInterval, nil
	}
	return time.Duration(f * float64(time.Second)), nil
}

// ParseSwitch accepts the switch payloads plus common boolean spellings
func ParseSwitch(payload string) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(payload)) {
	case SwitchOn, "TRUE", "1":
		return true, nil
	case SwitchOff, "FALSE", "0":
		return false, nil
	}
	return false, fmt.Errorf("unknown switch payload %q", payload)
}
