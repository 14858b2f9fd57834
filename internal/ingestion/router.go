package ingestion

import (
	"fmt"
	"strings"
)

// IntentKind classifies what an inbound message asks the pipeline to do.
type IntentKind int

const (
	IntentSensorData IntentKind = iota
	IntentDeviceStatus
	IntentDeviceConfig
)

func (k IntentKind) String() string {
	switch k {
	case IntentSensorData:
		return "sensor_data"
	case IntentDeviceStatus:
		return "device_status"
	case IntentDeviceConfig:
		return "device_config"
	default:
		return "unknown"
	}
}

// Intent is a routed inbound message: what it is, who it is from, and the
// still-undecoded payload.
type Intent struct {
	Kind       IntentKind
	DeviceID   string
	SensorType string
	Payload    []byte
}

// ParseTopic routes a transport topic to a typed intent. Recognized shapes
// under the given prefix:
//
//	{prefix}/sensors/{deviceId}/{sensorType}/data
//	{prefix}/devices/{deviceId}/status
//	{prefix}/devices/{deviceId}/config
//
// Anything else is unroutable and reported as an error; the caller drops
// and counts it, it never reaches the pipeline.
func ParseTopic(prefix, topic string, payload []byte) (Intent, error) {
	parts := strings.Split(topic, "/")

	switch {
	case len(parts) == 5 && parts[0] == prefix && parts[1] == "sensors" && parts[4] == "data":
		if parts[2] == "" || parts[3] == "" {
			return Intent{}, fmt.Errorf("unroutable topic %q: empty device or sensor segment", topic)
		}
		return Intent{
			Kind:       IntentSensorData,
			DeviceID:   parts[2],
			SensorType: parts[3],
			Payload:    payload,
		}, nil

	case len(parts) == 4 && parts[0] == prefix && parts[1] == "devices" && parts[3] == "status":
		if parts[2] == "" {
			return Intent{}, fmt.Errorf("unroutable topic %q: empty device segment", topic)
		}
		return Intent{Kind: IntentDeviceStatus, DeviceID: parts[2], Payload: payload}, nil

	case len(parts) == 4 && parts[0] == prefix && parts[1] == "devices" && parts[3] == "config":
		if parts[2] == "" {
			return Intent{}, fmt.Errorf("unroutable topic %q: empty device segment", topic)
		}
		return Intent{Kind: IntentDeviceConfig, DeviceID: parts[2], Payload: payload}, nil
	}

	return Intent{}, fmt.Errorf("unroutable topic %q", topic)
}
