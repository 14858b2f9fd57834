package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadingFromPayloadDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	r, err := ReadingFromPayload("dev-1", "co2", []byte(`{"value":450}`), now)
	require.NoError(t, err)

	assert.Equal(t, "dev-1", r.DeviceID)
	assert.Equal(t, "co2", r.SensorType)
	assert.Equal(t, 450.0, r.Value)
	assert.Equal(t, now, r.Timestamp, "timestamp defaults to ingestion time")
	assert.Equal(t, 1.0, r.Quality, "quality defaults to 1.0")
	assert.Empty(t, r.Unit)
	assert.Empty(t, r.DataHash, "hash is only attached after validation")
}

func TestReadingFromPayloadExplicitFields(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{
		"timestamp": "2026-02-28T08:30:00Z",
		"value": 21.5,
		"unit": "°C",
		"quality": 0.9,
		"metadata": {"floor": "2", "offset": 0.1}
	}`)

	r, err := ReadingFromPayload("dev-2", "temperature", payload, now)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 2, 28, 8, 30, 0, 0, time.UTC), r.Timestamp)
	assert.Equal(t, 21.5, r.Value)
	assert.Equal(t, "°C", r.Unit)
	assert.Equal(t, 0.9, r.Quality)
	assert.Equal(t, TextValue("2"), r.Metadata["floor"])
	assert.Equal(t, NumberValue(0.1), r.Metadata["offset"])
}

func TestReadingFromPayloadMissingValue(t *testing.T) {
	_, err := ReadingFromPayload("dev-1", "co2", []byte(`{"unit":"ppm"}`), time.Now())
	assert.ErrorContains(t, err, "value")
}

func TestReadingFromPayloadMalformedJSON(t *testing.T) {
	_, err := ReadingFromPayload("dev-1", "co2", []byte(`{not json`), time.Now())
	assert.Error(t, err)
}

func TestStatusFromPayload(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	st, err := StatusFromPayload("dev-3", []byte(`{
		"status": "online",
		"battery_level": 82,
		"signal_strength": -61,
		"firmware_version": "1.4.2",
		"ip_address": "10.0.0.12"
	}`), now)
	require.NoError(t, err)

	assert.Equal(t, "dev-3", st.DeviceID)
	assert.Equal(t, "online", st.Status)
	assert.Equal(t, 82.0, st.BatteryLevel)
	assert.Equal(t, -61.0, st.SignalStrength)
	assert.Equal(t, now, st.LastSeen, "last_seen is ingestion time, not device-reported")
}

func TestStatusFromPayloadDefaultsStatus(t *testing.T) {
	st, err := StatusFromPayload("dev-3", []byte(`{}`), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "unknown", st.Status)
}

func TestConfigFromPayload(t *testing.T) {
	now := time.Now().UTC()

	cfg, err := ConfigFromPayload("dev-4", []byte(`{"sample_rate":30,"mode":"eco"}`), now)
	require.NoError(t, err)

	assert.Equal(t, "dev-4", cfg.DeviceID)
	assert.Equal(t, now, cfg.UpdatedAt)
	assert.Equal(t, 30.0, cfg.Config["sample_rate"])
	assert.Equal(t, "eco", cfg.Config["mode"])
}
