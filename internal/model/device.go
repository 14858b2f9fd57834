package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// DeviceStatusUpdate replaces the previous status for a device,
// last-write-wins. LastSeen is stamped at ingestion time, not taken from
// the device.
type DeviceStatusUpdate struct {
	DeviceID        string    `json:"device_id"`
	Status          string    `json:"status"`
	BatteryLevel    float64   `json:"battery_level"`
	SignalStrength  float64   `json:"signal_strength"`
	FirmwareVersion string    `json:"firmware_version"`
	IPAddress       string    `json:"ip_address"`
	LastSeen        time.Time `json:"last_seen"`
}

// StatusFromPayload decodes a status payload, defaulting unknown/missing
// fields the way the devices in the field actually report them.
func StatusFromPayload(deviceID string, payload []byte, now time.Time) (DeviceStatusUpdate, error) {
	var p struct {
		Status          string  `json:"status"`
		BatteryLevel    float64 `json:"battery_level"`
		SignalStrength  float64 `json:"signal_strength"`
		FirmwareVersion string  `json:"firmware_version"`
		IPAddress       string  `json:"ip_address"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return DeviceStatusUpdate{}, fmt.Errorf("decode status payload: %w", err)
	}
	if p.Status == "" {
		p.Status = "unknown"
	}
	return DeviceStatusUpdate{
		DeviceID:        deviceID,
		Status:          p.Status,
		BatteryLevel:    p.BatteryLevel,
		SignalStrength:  p.SignalStrength,
		FirmwareVersion: p.FirmwareVersion,
		IPAddress:       p.IPAddress,
		LastSeen:        now,
	}, nil
}

// DeviceConfig is the full opaque configuration for a device, upserted
// whole on every update. No history is kept.
type DeviceConfig struct {
	DeviceID  string         `json:"device_id" bson:"device_id"`
	Config    map[string]any `json:"config" bson:"config"`
	UpdatedAt time.Time      `json:"updated_at" bson:"updated_at"`
}

// ConfigFromPayload decodes a config payload into a DeviceConfig.
func ConfigFromPayload(deviceID string, payload []byte, now time.Time) (DeviceConfig, error) {
	var cfg map[string]any
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return DeviceConfig{}, fmt.Errorf("decode config payload: %w", err)
	}
	return DeviceConfig{DeviceID: deviceID, Config: cfg, UpdatedAt: now}, nil
}
