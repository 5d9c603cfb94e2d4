package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"loggamera-bridge/internal/logging"
)

// Broker is the part of the paho client used by Publisher and Subscriber
type Broker interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Client manages the MQTT connection (low-level connection management only)
// For subscribing and publishing, use Subscriber and Publisher respectively
type Client struct {
	client mqtt.Client
	config ClientConfig
	logger *slog.Logger

	mu        sync.Mutex
	onConnect func()
}

// ClientConfig holds MQTT client configuration
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string

	// AvailabilityTopic gets "online" on every (re)connect and "offline" as last will
	AvailabilityTopic string
	Logger            *slog.Logger
}

const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// NewClient creates a new MQTT client connection
func NewClient(config ClientConfig) (*Client, error) {
	c := &Client{config: config, logger: logging.Component(config.Logger, "MQTT")}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetDefaultPublishHandler(c.messagePubHandler)
	opts.SetOnConnectHandler(c.connectHandler)
	opts.SetConnectionLostHandler(c.connectLostHandler)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	if config.AvailabilityTopic != "" {
		opts.SetWill(config.AvailabilityTopic, PayloadOffline, 1, true)
	}

	c.client = mqtt.NewClient(opts)

	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	c.logger.Info("connected to broker", "broker", config.Broker)
	return c, nil
}

// SetOnConnect registers fn to run after every later reconnect, e.g. to resubscribe
// and republish retained state
func (c *Client) SetOnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = fn
}

// GetNativeClient returns the underlying paho MQTT client
// This is used by Subscriber and Publisher
func (c *Client) GetNativeClient() mqtt.Client {
	return c.client
}

// IsConnected returns whether the client is currently connected
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Close marks the bridge offline and closes the connection
func (c *Client) Close() {
	if c.config.AvailabilityTopic != "" && c.client.IsConnected() {
		token := c.client.Publish(c.config.AvailabilityTopic, 1, true, PayloadOffline)
		token.WaitTimeout(2 * time.Second)
	}
	c.client.Disconnect(250)
	c.logger.Info("disconnected")
}

func (c *Client) messagePubHandler(client mqtt.Client, msg mqtt.Message) {
	c.logger.Debug("unrouted message", "topic", msg.Topic())
}

func (c *Client) connectHandler(client mqtt.Client) {
	c.logger.Info("connection established")
	if c.config.AvailabilityTopic != "" {
		client.Publish(c.config.AvailabilityTopic, 1, true, PayloadOnline)
	}
	c.mu.Lock()
	fn := c.onConnect
	c.mu.Unlock()
	if fn != nil {
		go fn()
	}
}

func (c *Client) connectLostHandler(client mqtt.Client, err error) {
	c.logger.Warn("connection lost", "error", err)
}
