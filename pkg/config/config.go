package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"loggamera-bridge/internal/models"
)

type Config struct {
	// Portal
	PortalBaseURL   string
	LocationList    string
	FetchTimeout    time.Duration
	FetchAttempts   int
	FetchRetryDelay time.Duration
	CacheMaxAge     time.Duration
	UserAgent       string

	// Defaults for the host adjustable settings
	ScanInterval time.Duration
	DebugMode    bool

	// MQTT / Home Assistant
	MQTTBroker        string
	MQTTClientID      string
	MQTTUsername      string
	MQTTPassword      string
	MQTTBaseTopic     string
	HADiscoveryPrefix string

	// ClickHouse (settings persistence and cycle log)
	ClickHouseEnabled bool
	ClickHouseAddr    string
	ClickHouseDB      string
	ClickHouseUser    string
	ClickHousePass    string

	// Local status API
	HTTPAddr string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		PortalBaseURL:   getEnv("PORTAL_BASE_URL", "https://portal.loggamera.se"),
		LocationList:    getEnv("LOCATIONS", "22,21"),
		FetchTimeout:    getEnvSeconds("FETCH_TIMEOUT_SECONDS", 30*time.Second),
		FetchAttempts:   getEnvInt("FETCH_MAX_ATTEMPTS", 3),
		FetchRetryDelay: getEnvSeconds("FETCH_RETRY_DELAY_SECONDS", 5*time.Second),
		CacheMaxAge:     time.Duration(getEnvInt("CACHE_MAX_AGE_MINUTES", 30)) * time.Minute,
		UserAgent:       getEnv("USER_AGENT", "Home Assistant Temperature Sensor"),

		ScanInterval: models.ClampInterval(getEnvSeconds("SCAN_INTERVAL_SECONDS", models.DefaultScanInterval)),
		DebugMode:    getEnvBool("DEBUG_MODE", false),

		MQTTBroker:        getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID:      getEnv("MQTT_CLIENT_ID", "loggamera-bridge"),
		MQTTUsername:      getEnv("MQTT_USERNAME", ""),
		MQTTPassword:      getEnv("MQTT_PASSWORD", ""),
		MQTTBaseTopic:     strings.Trim(getEnv("MQTT_BASE_TOPIC", "loggamera"), "/"),
		HADiscoveryPrefix: strings.Trim(getEnv("HA_DISCOVERY_PREFIX", "homeassistant"), "/"),

		ClickHouseEnabled: getEnvBool("CLICKHOUSE_ENABLED", false),
		ClickHouseAddr:    getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDB:      getEnv("CLICKHOUSE_DB", "loggamera"),
		ClickHouseUser:    getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePass:    getEnv("CLICKHOUSE_PASS", ""),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
	}
}

// Settings returns the defaults for the host adjustable settings
func (c *Config) Settings() models.Settings {
	return models.Settings{ScanInterval: c.ScanInterval, DebugMode: c.DebugMode}
}

// Locations parses LOCATIONS. Entries are "id" or "id:kind", comma separated.
// Duplicates are dropped.
func (c *Config) Locations() ([]models.Location, error) {
	return ParseLocations(c.LocationList)
}

func ParseLocations(list string) ([]models.Location, error) {
	var out []models.Location
	seen := make(map[string]bool)
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		idPart, kindPart, _ := strings.Cut(entry, ":")
		id, err := strconv.Atoi(strings.TrimSpace(idPart))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid location id %q", idPart)
		}
		kind, err := models.ParseSensorKind(kindPart)
		if err != nil {
			return nil, fmt.Errorf("location %d: %w", id, err)
		}
		loc := models.NewLocation(id, kind)
		if seen[loc.Key()] {
			continue
		}
		seen[loc.Key()] = true
		out = append(out, loc)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no locations configured")
	}
	return out, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("failed to parse env as int, using default", "key", key, "error", err)
		return defaultValue
	}
	return intValue
}

func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		slog.Warn("failed to parse env as seconds, using default", "key", key, "value", value)
		return defaultValue
	}
	d, err := models.DurationFromSeconds(seconds)
	if err != nil {
		slog.Warn("failed to parse env as seconds, using default", "key", key, "value", value)
		return defaultValue
	}
	return d
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("failed to parse env as bool, using default", "key", key, "error", err)
		return defaultValue
	}
	return boolValue
}
