package ingestion

import (
	"context"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/carbonmarket/iot-ingestion/internal/model"
	"github.com/carbonmarket/iot-ingestion/pkg/mqttclient"
)

// fakeStore satisfies all four sink surfaces; tests use one instance per
// role and flip writeErr to simulate a failing destination.
type fakeStore struct {
	mu sync.Mutex

	connectErr error
	writeErr   error

	connected bool
	closed    bool

	readings    []model.SensorReading
	published   []model.SensorReading
	cached      []model.SensorReading
	audited     []model.SensorReading
	statuses    []model.DeviceStatusUpdate
	busStatuses []model.DeviceStatusUpdate
	configs     []model.DeviceConfig
	stats       []model.IngestionStats
}

func (f *fakeStore) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeStore) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeStore) WriteReading(_ context.Context, r model.SensorReading) error {
	return f.record(&f.readings, r)
}

func (f *fakeStore) PublishReading(_ context.Context, r model.SensorReading) error {
	return f.record(&f.published, r)
}

func (f *fakeStore) CacheLatestReading(_ context.Context, r model.SensorReading) error {
	return f.record(&f.cached, r)
}

func (f *fakeStore) InsertAudit(_ context.Context, r model.SensorReading) error {
	return f.record(&f.audited, r)
}

func (f *fakeStore) record(dst *[]model.SensorReading, r model.SensorReading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	*dst = append(*dst, r)
	return nil
}

func (f *fakeStore) StoreDeviceStatus(_ context.Context, st model.DeviceStatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.statuses = append(f.statuses, st)
	return nil
}

func (f *fakeStore) PublishStatus(_ context.Context, st model.DeviceStatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.busStatuses = append(f.busStatuses, st)
	return nil
}

func (f *fakeStore) UpsertDeviceConfig(_ context.Context, cfg model.DeviceConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.configs = append(f.configs, cfg)
	return nil
}

func (f *fakeStore) PublishStats(_ context.Context, s model.IngestionStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.stats = append(f.stats, s)
	return nil
}

func (f *fakeStore) readingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.readings)
}

func (f *fakeStore) auditCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.audited)
}

func (f *fakeStore) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeConsumer stands in for the MQTT subscription: deliver pushes a
// message through whatever handler the service installed.
type fakeConsumer struct {
	mu      sync.Mutex
	handler mqttclient.Handler
}

func (c *fakeConsumer) SetHandler(h mqttclient.Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

func (c *fakeConsumer) ConsumeMessage(ctx context.Context) {
	<-ctx.Done()
}

func (c *fakeConsumer) deliver(topic string, payload []byte) error {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h == nil {
		return nil
	}
	return h(topic, fakeMessage{topic: topic, payload: payload})
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

var _ mqtt.Message = fakeMessage{}
