package mqtt

import (
	"fmt"

	"loggamera-bridge/internal/models"
)

// Topics derives every topic of the bridge from the base topic and the
// Home Assistant discovery prefix
type Topics struct {
	Base            string // e.g. "loggamera"
	DiscoveryPrefix string // e.g. "homeassistant"
}

func (t Topics) Availability() string { return t.Base + "/availability" }

func (t Topics) LocationState(loc models.Location) string {
	return fmt.Sprintf("%s/%s/state", t.Base, loc.Key())
}

func (t Topics) LocationAttributes(loc models.Location) string {
	return fmt.Sprintf("%s/%s/attributes", t.Base, loc.Key())
}

func (t Topics) LocationAvailability(loc models.Location) string {
	return fmt.Sprintf("%s/%s/availability", t.Base, loc.Key())
}

func (t Topics) StatusState() string      { return t.Base + "/status/state" }
func (t Topics) StatusAttributes() string { return t.Base + "/status/attributes" }

func (t Topics) IntervalState() string   { return t.Base + "/settings/interval/state" }
func (t Topics) IntervalCommand() string { return t.Base + "/settings/interval/set" }
func (t Topics) DebugState() string      { return t.Base + "/settings/debug/state" }
func (t Topics) DebugCommand() string    { return t.Base + "/settings/debug/set" }

// HostStatus is where Home Assistant announces its birth ("online")
func (t Topics) HostStatus() string { return t.DiscoveryPrefix + "/status" }

// Discovery returns the config topic for an entity
func (t Topics) Discovery(component, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/config", t.DiscoveryPrefix, component, objectID)
}
