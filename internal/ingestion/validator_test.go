package ingestion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/carbonmarket/iot-ingestion/internal/model"
)

func reading(sensorType string, value, quality float64) model.SensorReading {
	return model.SensorReading{
		DeviceID:   "dev-1",
		SensorType: sensorType,
		Timestamp:  time.Now(),
		Value:      value,
		Quality:    quality,
	}
}

func TestValidateReading(t *testing.T) {
	tests := []struct {
		name    string
		reading model.SensorReading
		ok      bool
		reasons []string
	}{
		{"co2 in range", reading("co2", 450, 1.0), true, nil},
		{"co2 at lower bound", reading("co2", 300, 1.0), true, nil},
		{"co2 at upper bound", reading("co2", 5000, 1.0), true, nil},
		{"co2 below range", reading("co2", -5, 1.0), false, []string{ReasonOutOfRange}},
		{"co2 above range", reading("co2", 5001, 1.0), false, []string{ReasonOutOfRange}},
		{"temperature in range", reading("temperature", -10, 0.8), true, nil},
		{"quality below zero", reading("co2", 450, -0.1), false, []string{ReasonInvalidQuality}},
		{"quality above one", reading("co2", 450, 1.5), false, []string{ReasonInvalidQuality}},
		{"unknown sensor type", reading("radiation", 1, 1.0), false, []string{ReasonUnknownSensorType}},
		{"multiple reasons ordered", reading("co2", -5, 2.0), false, []string{ReasonOutOfRange, ReasonInvalidQuality}},
		{"unknown type and bad quality", reading("radiation", 1, -1), false, []string{ReasonUnknownSensorType, ReasonInvalidQuality}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reasons := ValidateReading(tt.reading)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.reasons, reasons)
		})
	}
}

func TestValidateReadingIsPure(t *testing.T) {
	r := reading("co2", 450, 1.0)
	before := r

	ValidateReading(r)
	assert.Equal(t, before, r, "validation must not mutate the reading")
}

func TestBoundsFor(t *testing.T) {
	b, ok := BoundsFor("co2")
	assert.True(t, ok)
	assert.Equal(t, 300.0, b.Min)
	assert.Equal(t, 5000.0, b.Max)
	assert.Equal(t, "ppm", b.Unit)

	_, ok = BoundsFor("radiation")
	assert.False(t, ok)
}
