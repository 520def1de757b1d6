package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// -----------------------------------------------------------------------------
// Discovery Types
// -----------------------------------------------------------------------------

// GeneralInfo is the device description announced over SPINE.
type GeneralInfo struct {
	SpineDeviceAddress string `json:"spineDeviceAddress"`
	DeviceName         string `json:"deviceName"`
	Brand              string `json:"brand"`
	Vendor             string `json:"vendor"`
	SerialNumber       string `json:"serialNumber"`
	Model              string `json:"model"`
	Type               string `json:"type"`
}

// SHIPInfo is the mDNS service record of a SHIP node.
type SHIPInfo struct {
	ShipID       string `json:"shipId"`
	InstanceName string `json:"instanceName"`
	HostAddress  string `json:"hostAddress"`
	Port         int    `json:"port"`
}

// Device is one discovered EEBUS device.
type Device struct {
	GeneralInfo GeneralInfo `json:"generalInfo"`
	ShipInfo    SHIPInfo    `json:"shipInfo"`
	SKI         string      `json:"ski"`
}

// DisplayName returns the device name, then the SHIP instance name, then a
// placeholder.
func (d Device) DisplayName() string {
	if d.GeneralInfo.DeviceName != "" {
		return d.GeneralInfo.DeviceName
	}
	if d.ShipInfo.InstanceName != "" {
		return d.ShipInfo.InstanceName
	}
	return "Unnamed Device"
}

// Device categories derived from GeneralInfo.Type.
const (
	CategoryEVCharger = "ev_charger"
	CategoryHeatPump  = "heat_pump"
	CategoryBattery   = "battery"
	CategoryInverter  = "inverter"
	CategorySolar     = "solar"
	CategoryGrid      = "grid"
	CategoryOther     = "other"
)

var categories = map[string]string{
	"ev_charger": CategoryEVCharger,
	"wallbox":    CategoryEVCharger,
	"hvac":       CategoryHeatPump,
	"heatpump":   CategoryHeatPump,
	"heat pump":  CategoryHeatPump,
	"battery":    CategoryBattery,
	"storage":    CategoryBattery,
	"inverter":   CategoryInverter,
	"solar":      CategorySolar,
	"grid":       CategoryGrid,
}

// Category maps the free-form device type to a known category.
func (d Device) Category() string {
	if c, ok := categories[strings.ToLower(d.GeneralInfo.Type)]; ok {
		return c
	}
	return CategoryOther
}

// -----------------------------------------------------------------------------
// Control Types
// -----------------------------------------------------------------------------

// PowerLimit is a consumption (LPC) or production (LPP) limit reported for a
// remote device.
type PowerLimit struct {
	SKI      string  `json:"ski,omitempty"`
	Value    float64 `json:"value"`              // Watts
	Duration int64   `json:"duration,omitempty"` // Seconds, 0 = unlimited
	Active   bool    `json:"active"`
}

// DeviceSKIs returns the SKIs of devices, in order.
func DeviceSKIs(devices []Device) []string {
	skis := make([]string, 0, len(devices))
	for _, d := range devices {
		skis = append(skis, d.SKI)
	}
	return skis
}

// DecodeDevices accepts a device array, a {"devices": [...]} wrapper, or
// null. The result is never nil.
func DecodeDevices(data []byte) ([]Device, error) {
	var devices []Device
	if err := json.Unmarshal(data, &devices); err == nil {
		if devices == nil {
			devices = []Device{}
		}
		return devices, nil
	}

	var wrapped struct {
		Devices []Device `json:"devices"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decode devices: %w", err)
	}
	if wrapped.Devices == nil {
		wrapped.Devices = []Device{}
	}
	return wrapped.Devices, nil
}
