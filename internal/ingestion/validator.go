package ingestion

import (
	"time"

	"github.com/carbonmarket/iot-ingestion/internal/model"
)

// Validation failure reasons, stable strings surfaced in logs and tests.
const (
	ReasonUnknownSensorType = "unknown_sensor_type"
	ReasonOutOfRange        = "out_of_range"
	ReasonInvalidQuality    = "invalid_quality"
)

// SensorBounds is the physical envelope for one sensor type.
type SensorBounds struct {
	Min            float64
	Max            float64
	Accuracy       float64
	SampleInterval time.Duration
	Unit           string
}

// sensorBounds is the static physical-bounds table. A reading whose type
// is missing here fails validation rather than silently passing.
var sensorBounds = map[string]SensorBounds{
	"co2":         {Min: 300, Max: 5000, Accuracy: 50, SampleInterval: 30 * time.Second, Unit: "ppm"},
	"temperature": {Min: -40, Max: 85, Accuracy: 0.5, SampleInterval: 10 * time.Second, Unit: "°C"},
	"humidity":    {Min: 0, Max: 100, Accuracy: 2, SampleInterval: 10 * time.Second, Unit: "%"},
	"power":       {Min: 0, Max: 1e6, Accuracy: 10, SampleInterval: 5 * time.Second, Unit: "W"},
	"energy":      {Min: 0, Max: 1e9, Accuracy: 100, SampleInterval: time.Minute, Unit: "kWh"},
	"flow":        {Min: 0, Max: 1e4, Accuracy: 1, SampleInterval: 15 * time.Second, Unit: "m3/h"},
	"pressure":    {Min: 300, Max: 1200, Accuracy: 1, SampleInterval: 30 * time.Second, Unit: "hPa"},
}

// BoundsFor returns the physical envelope for a sensor type, if known.
func BoundsFor(sensorType string) (SensorBounds, bool) {
	b, ok := sensorBounds[sensorType]
	return b, ok
}

// ValidateReading checks a decoded reading against the bounds table. Pure
// function: no side effects, the same reading always yields the same
// verdict. On failure the ordered reason list is returned.
func ValidateReading(r model.SensorReading) (bool, []string) {
	var reasons []string

	bounds, ok := sensorBounds[r.SensorType]
	if !ok {
		reasons = append(reasons, ReasonUnknownSensorType)
	} else if r.Value < bounds.Min || r.Value > bounds.Max {
		reasons = append(reasons, ReasonOutOfRange)
	}

	if r.Quality < 0 || r.Quality > 1 {
		reasons = append(reasons, ReasonInvalidQuality)
	}

	return len(reasons) == 0, reasons
}
