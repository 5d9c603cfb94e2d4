package models

import (
	"fmt"
	"math"
	"time"
)

// Scan interval bounds
const (
	MinScanInterval     = 60 * time.Second
	MaxScanInterval     = 24 * time.Hour
	DefaultScanInterval = 5 * time.Minute
	ScanIntervalStep    = 60 * time.Second
)

// Settings are the user adjustable options surfaced in Home Assistant
type Settings struct {
	ScanInterval time.Duration `json:"scan_interval"`
	DebugMode    bool          `json:"debug_mode"`
}

// DefaultSettings returns the settings used before anything is persisted
func DefaultSettings() Settings {
	return Settings{ScanInterval: DefaultScanInterval}
}

// Validate checks the interval bounds
func (s Settings) Validate() error {
	if s.ScanInterval < MinScanInterval || s.ScanInterval > MaxScanInterval {
		return fmt.Errorf("scan interval %v outside [%v, %v]", s.ScanInterval, MinScanInterval, MaxScanInterval)
	}
	return nil
}

// DurationFromSeconds converts a seconds value from user input. Values too
// large for a Duration saturate instead of wrapping.
func DurationFromSeconds(seconds float64) (time.Duration, error) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return 0, fmt.Errorf("invalid seconds value %v", seconds)
	}
	if seconds >= float64(math.MaxInt64)/float64(time.Second) {
		return time.Duration(math.MaxInt64), nil
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// ClampInterval snaps d to the step and bounds of the interval entity
func ClampInterval(d time.Duration) time.Duration {
	d = d.Round(ScanIntervalStep)
	if d < MinScanInterval {
		return MinScanInterval
	}
	if d > MaxScanInterval {
		return MaxScanInterval
	}
	return d
}

// SettingsCommand is a change requested from the host
type SettingsCommand struct {
	ScanInterval *time.Duration
	DebugMode    *bool
}

// Apply returns s with the command's fields applied
func (c SettingsCommand) Apply(s Settings) Settings {
	if c.ScanInterval != nil {
		s.ScanInterval = ClampInterval(*c.ScanInterval)
	}
	if c.DebugMode != nil {
		s.DebugMode = *c.DebugMode
	}
	return s
}

// CycleRecord is the outcome log entry of one location cycle; the value itself is not kept
type CycleRecord struct {
	PollID     string
	Timestamp  time.Time
	LocationID int
	Kind       string
	Outcome    string
	Attempts   int
	Duration   time.Duration
	Stale      bool
}
