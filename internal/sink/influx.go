package sink

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/carbonmarket/iot-ingestion/internal/model"
)

type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxSink writes one point per validated reading to the time-series
// store. Safe for concurrent use; the blocking write API serializes
// internally.
type InfluxSink struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
}

func NewInfluxSink(cfg InfluxConfig) (*InfluxSink, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSink{
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}, nil
}

func (s *InfluxSink) Connect(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influx ping: %w", err)
	}
	if !ok {
		return fmt.Errorf("influx ping: server not ready")
	}
	return nil
}

func (s *InfluxSink) WriteReading(ctx context.Context, r model.SensorReading) error {
	return s.write.WritePoint(ctx, ReadingToPoint(r))
}

func (s *InfluxSink) Close() {
	s.client.Close()
}

// ReadingToPoint normalizes a reading into a sensor_reading point. String
// metadata becomes meta_* tags (indexed), numeric metadata becomes meta_*
// fields.
func ReadingToPoint(r model.SensorReading) *write.Point {
	tags := map[string]string{
		"device_id":   r.DeviceID,
		"sensor_type": r.SensorType,
	}
	fields := map[string]interface{}{
		"value":     r.Value,
		"quality":   r.Quality,
		"data_hash": r.DataHash,
	}
	for k, v := range r.Metadata {
		if v.Kind == model.MetadataNumber {
			fields["meta_"+k] = v.Number
		} else {
			tags["meta_"+k] = v.Text
		}
	}
	return influxdb2.NewPoint("sensor_reading", tags, fields, r.Timestamp)
}
