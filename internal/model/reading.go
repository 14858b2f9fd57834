package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// SensorReading is one validated measurement from a device. DataHash is
// empty until the reading has passed validation; a rejected reading never
// carries a hash and is never persisted.
type SensorReading struct {
	DeviceID   string    `json:"device_id"`
	SensorType string    `json:"sensor_type"`
	Timestamp  time.Time `json:"timestamp"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	Quality    float64   `json:"quality"`
	Metadata   Metadata  `json:"metadata,omitempty"`
	DataHash   string    `json:"data_hash,omitempty"`
}

// sensorPayload mirrors the inbound JSON on carbon/sensors/+/+/data.
// Only value is required; everything else has a default.
type sensorPayload struct {
	Timestamp *time.Time `json:"timestamp"`
	Value     *float64   `json:"value"`
	Unit      string     `json:"unit"`
	Quality   *float64   `json:"quality"`
	Metadata  Metadata   `json:"metadata"`
}

// ReadingFromPayload decodes an inbound sensor-data payload into a
// SensorReading, applying defaults: timestamp = now, quality = 1.0.
func ReadingFromPayload(deviceID, sensorType string, payload []byte, now time.Time) (SensorReading, error) {
	var p sensorPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return SensorReading{}, fmt.Errorf("decode sensor payload: %w", err)
	}
	if p.Value == nil {
		return SensorReading{}, fmt.Errorf("sensor payload missing required field \"value\"")
	}

	r := SensorReading{
		DeviceID:   deviceID,
		SensorType: sensorType,
		Timestamp:  now,
		Value:      *p.Value,
		Unit:       p.Unit,
		Quality:    1.0,
		Metadata:   p.Metadata,
	}
	if p.Timestamp != nil {
		r.Timestamp = *p.Timestamp
	}
	if p.Quality != nil {
		r.Quality = *p.Quality
	}
	return r, nil
}
