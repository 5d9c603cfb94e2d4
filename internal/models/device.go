package models

import "fmt"

const (
	PortalURL     = "https://portal.loggamera.se/"
	SourceName    = "Loggamera Portal"
	BridgeVersion = "1.0.0"
)

// DeviceInfo is the Home Assistant device registry entry an entity belongs to
type DeviceInfo struct {
	Identifiers      []string `json:"identifiers"`
	Name             string   `json:"name"`
	Manufacturer     string   `json:"manufacturer"`
	Model            string   `json:"model"`
	SWVersion        string   `json:"sw_version,omitempty"`
	ConfigurationURL string   `json:"configuration_url,omitempty"`
}

// LocationDevice groups the entities of one portal location
func LocationDevice(loc Location) DeviceInfo {
	return DeviceInfo{
		Identifiers:      []string{fmt.Sprintf("loggamera_location_%d", loc.ID)},
		Name:             "Loggamera " + loc.Name,
		Manufacturer:     "Loggamera",
		Model:            loc.Kind.Spec().Label + " Sensor",
		ConfigurationURL: PortalURL,
	}
}

// BridgeDevice holds the settings and status entities
func BridgeDevice() DeviceInfo {
	return DeviceInfo{
		Identifiers:  []string{"loggamera_hjo_energi_badtemperaturer"},
		Name:         "Hjo Energi Badtemperaturer",
		Manufacturer: "Hjo Energi AB",
		Model:        "Loggamera Temperatursensorer",
		SWVersion:    BridgeVersion,
	}
}
