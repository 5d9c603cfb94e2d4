package mqtt

import "loggamera-bridge/internal/models"

// Availability is one entry of an entity's availability list
type Availability struct {
	Topic string `json:"topic"`
}

// EntityConfig is the Home Assistant MQTT discovery payload.
// Only the fields used by the bridge are declared.
type EntityConfig struct {
	Name                string            `json:"name"`
	UniqueID            string            `json:"unique_id"`
	ObjectID            string            `json:"object_id,omitempty"`
	StateTopic          string            `json:"state_topic"`
	CommandTopic        string            `json:"command_topic,omitempty"`
	JSONAttributesTopic string            `json:"json_attributes_topic,omitempty"`
	Availability        []Availability    `json:"availability,omitempty"`
	AvailabilityMode    string            `json:"availability_mode,omitempty"`
	UnitOfMeasurement   string            `json:"unit_of_measurement,omitempty"`
	DeviceClass         string            `json:"device_class,omitempty"`
	StateClass          string            `json:"state_class,omitempty"`
	EntityCategory      string            `json:"entity_category,omitempty"`
	Icon                string            `json:"icon,omitempty"`
	Min                 *float64          `json:"min,omitempty"`
	Max                 *float64          `json:"max,omitempty"`
	Step                *float64          `json:"step,omitempty"`
	Mode                string            `json:"mode,omitempty"`
	PayloadOn           string            `json:"payload_on,omitempty"`
	PayloadOff          string            `json:"payload_off,omitempty"`
	Device              models.DeviceInfo `json:"device"`
}

// Discovery is one config message
type Discovery struct {
	Topic  string
	Config EntityConfig
}

const (
	SwitchOn  = "ON"
	SwitchOff = "OFF"
)

func float(v float64) *float64 { return &v }

// LocationDiscovery describes the sensor entity of a location
func LocationDiscovery(t Topics, loc models.Location) Discovery {
	spec := loc.Kind.Spec()
	id := "loggamera_" + loc.Key()
	return Discovery{
		Topic: t.Discovery("sensor", id),
		Config: EntityConfig{
			Name:                loc.Name + " " + spec.Label,
			UniqueID:            id,
			ObjectID:            id,
			StateTopic:          t.LocationState(loc),
			JSONAttributesTopic: t.LocationAttributes(loc),
			Availability: []Availability{
				{Topic: t.Availability()},
				{Topic: t.LocationAvailability(loc)},
			},
			AvailabilityMode:  "all",
			UnitOfMeasurement: spec.Unit,
			DeviceClass:       spec.DeviceClass,
			StateClass:        "measurement",
			Icon:              spec.Icon,
			Device:            models.LocationDevice(loc),
		},
	}
}

// StatusDiscovery describes the rollup status sensor
func StatusDiscovery(t Topics) Discovery {
	return Discovery{
		Topic: t.Discovery("sensor", "loggamera_status"),
		Config: EntityConfig{
			Name:                "Status",
			UniqueID:            "loggamera_status",
			ObjectID:            "loggamera_status",
			StateTopic:          t.StatusState(),
			JSONAttributesTopic: t.StatusAttributes(),
			Availability:        []Availability{{Topic: t.Availability()}},
			EntityCategory:      "diagnostic",
			Icon:                "mdi:list-status",
			Device:              models.BridgeDevice(),
		},
	}
}

// IntervalDiscovery describes the poll interval number entity
func IntervalDiscovery(t Topics) Discovery {
	return Discovery{
		Topic: t.Discovery("number", "loggamera_update_interval"),
		Config: EntityConfig{
			Name:              "Update interval",
			UniqueID:          "loggamera_update_interval",
			ObjectID:          "loggamera_update_interval",
			StateTopic:        t.IntervalState(),
			CommandTopic:      t.IntervalCommand(),
			Availability:      []Availability{{Topic: t.Availability()}},
			UnitOfMeasurement: "s",
			EntityCategory:    "config",
			Icon:              "mdi:timer-cog",
			Min:               float(models.MinScanInterval.Seconds()),
			Max:               float(models.MaxScanInterval.Seconds()),
			Step:              float(models.ScanIntervalStep.Seconds()),
			Mode:              "box",
			Device:            models.BridgeDevice(),
		},
	}
}

// DebugDiscovery describes the debug mode switch
func DebugDiscovery(t Topics) Discovery {
	return Discovery{
		Topic: t.Discovery("switch", "loggamera_debug_mode"),
		Config: EntityConfig{
			Name:           "Debug mode",
			UniqueID:       "loggamera_debug_mode",
			ObjectID:       "loggamera_debug_mode",
			StateTopic:     t.DebugState(),
			CommandTopic:   t.DebugCommand(),
			Availability:   []Availability{{Topic: t.Availability()}},
			EntityCategory: "config",
			Icon:           "mdi:bug",
			PayloadOn:      SwitchOn,
			PayloadOff:     SwitchOff,
			Device:         models.BridgeDevice(),
		},
	}
}

// AllDiscovery returns the config messages for every entity of the bridge
func AllDiscovery(t Topics, locations []models.Location) []Discovery {
	out := make([]Discovery, 0, len(locations)+3)
	for _, loc := range locations {
		out = append(out, LocationDiscovery(t, loc))
	}
	return append(out, StatusDiscovery(t), IntervalDiscovery(t), DebugDiscovery(t))
}
