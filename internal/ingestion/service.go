package ingestion

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/carbonmarket/iot-ingestion/internal/model"
	"github.com/carbonmarket/iot-ingestion/pkg/dedup"
	"github.com/carbonmarket/iot-ingestion/pkg/mqttclient"
)

// State is the lifecycle position of the service.
type State int32

const (
	StateInit State = iota
	StateConnecting
	StateRunning
	StateDraining
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateConnecting:
		return "CONNECTING"
	case StateRunning:
		return "RUNNING"
	case StateDraining:
		return "DRAINING"
	case StateStopped:
		return "STOPPED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Full sink surfaces the lifecycle manages: the fanout's write methods
// plus connection bring-up and teardown.
type (
	TimeSeriesStore interface {
		TimeSeriesWriter
		Connect(ctx context.Context) error
		Close()
	}
	StreamBus interface {
		StreamPublisher
		PublishStatus(ctx context.Context, st model.DeviceStatusUpdate) error
		Connect(ctx context.Context) error
		Close()
	}
	Cache interface {
		LatestCache
		StoreDeviceStatus(ctx context.Context, st model.DeviceStatusUpdate) error
		PublishStats(ctx context.Context, stats model.IngestionStats) error
		Connect(ctx context.Context) error
		Close()
	}
	DocumentStore interface {
		AuditWriter
		UpsertDeviceConfig(ctx context.Context, cfg model.DeviceConfig) error
		Connect(ctx context.Context) error
		Close()
	}
)

// BrokerDialer connects the pub/sub transport and returns the consumer to
// subscribe with. Dialed last, once every sink is up.
type BrokerDialer func(ctx context.Context) (mqttclient.IConsumer, error)

type Config struct {
	TopicPrefix   string
	Workers       int
	QueueSize     int
	DrainGrace    time.Duration
	StatsInterval time.Duration
	DedupTTL      time.Duration
}

func (c *Config) applyDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "carbon"
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.DrainGrace <= 0 {
		c.DrainGrace = 10 * time.Second
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = 60 * time.Second
	}
	if c.DedupTTL <= 0 {
		c.DedupTTL = 10 * time.Minute
	}
}

// taskTimeout bounds one message's fanout, detached from the run context
// so draining tasks can still finish their writes.
const taskTimeout = 30 * time.Second

// Service supervises the whole pipeline: connection bring-up in dependency
// order, the bounded worker pool between the subscription callback and the
// Validate -> Fingerprint -> Fanout sequence, the stats reporter, and the
// graceful drain.
type Service struct {
	cfg Config

	timeseries TimeSeriesStore
	streambus  StreamBus
	cache      Cache
	documents  DocumentStore
	dialBroker BrokerDialer

	fanout  *Fanout
	stats   *StatsAggregator
	deduper *dedup.Deduper

	state      atomic.Int32
	queue      chan inboundMessage
	workerStop chan struct{}
	inflight   sync.WaitGroup

	now func() time.Time
}

type inboundMessage struct {
	topic   string
	payload []byte
}

func NewService(cfg Config, ts TimeSeriesStore, bus StreamBus, cache Cache, docs DocumentStore, dial BrokerDialer) *Service {
	cfg.applyDefaults()
	return &Service{
		cfg:        cfg,
		timeseries: ts,
		streambus:  bus,
		cache:      cache,
		documents:  docs,
		dialBroker: dial,
		fanout:     NewFanout(ts, bus, cache, docs),
		stats:      NewStatsAggregator(cache, cfg.StatsInterval),
		deduper:    dedup.New(cfg.DedupTTL, 100000),
		queue:      make(chan inboundMessage, cfg.QueueSize),
		workerStop: make(chan struct{}),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) State() State {
	return State(s.state.Load())
}

// Ready reports whether the service is accepting inbound messages.
func (s *Service) Ready() bool {
	return s.State() == StateRunning
}

func (s *Service) setState(next State) {
	prev := State(s.state.Swap(int32(next)))
	if prev != next {
		log.Printf("ingestion: state %s -> %s", prev, next)
	}
}

// connectAll brings up every external collaborator in dependency order:
// time-series store, cache, document store, stream bus, then the broker.
// Any failure closes what is already up, in reverse, and aborts; the
// service never runs with a partial sink set.
func (s *Service) connectAll(ctx context.Context) (mqttclient.IConsumer, error) {
	type step struct {
		name    string
		connect func(context.Context) error
		close   func()
	}
	steps := []step{
		{"timeseries", s.timeseries.Connect, s.timeseries.Close},
		{"cache", s.cache.Connect, s.cache.Close},
		{"documents", s.documents.Connect, s.documents.Close},
		{"streambus", s.streambus.Connect, s.streambus.Close},
	}

	var up []step
	for _, st := range steps {
		if err := st.connect(ctx); err != nil {
			for i := len(up) - 1; i >= 0; i-- {
				up[i].close()
			}
			return nil, fmt.Errorf("connect %s: %w", st.name, err)
		}
		log.Printf("ingestion: %s connected", st.name)
		up = append(up, st)
	}

	consumer, err := s.dialBroker(ctx)
	if err != nil {
		for i := len(up) - 1; i >= 0; i-- {
			up[i].close()
		}
		return nil, fmt.Errorf("connect broker: %w", err)
	}
	log.Printf("ingestion: broker connected")
	return consumer, nil
}

func (s *Service) closeAll() {
	// Reverse of the bring-up order. The broker connection is owned by the
	// dialer's context and is already down by the time this runs.
	s.streambus.Close()
	s.documents.Close()
	s.cache.Close()
	s.timeseries.Close()
}

// Run drives the lifecycle to completion: it returns a non-nil error only
// when startup fails, and nil after a clean drain triggered by ctx.
func (s *Service) Run(ctx context.Context) error {
	s.setState(StateConnecting)

	consumeCtx, stopConsuming := context.WithCancel(ctx)
	defer stopConsuming()

	consumer, err := s.connectAll(consumeCtx)
	if err != nil {
		s.setState(StateFailed)
		return err
	}

	for i := 0; i < s.cfg.Workers; i++ {
		go s.workerLoop()
	}

	statsCtx, stopStats := context.WithCancel(context.Background())
	defer stopStats()
	go s.stats.Run(statsCtx)

	s.setState(StateRunning)

	consumer.SetHandler(s.handleMessage)
	go consumer.ConsumeMessage(consumeCtx)

	<-ctx.Done()

	// Drain: refuse new work, give in-flight tasks a bounded grace period.
	s.setState(StateDraining)
	stopConsuming()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.cfg.DrainGrace):
		log.Printf("ingestion: drain grace of %s elapsed, abandoning in-flight work", s.cfg.DrainGrace)
	}

	close(s.workerStop)
	stopStats()
	s.closeAll()
	s.setState(StateStopped)
	log.Println("ingestion: shutdown complete")
	return nil
}

// handleMessage is the subscription callback. It only enqueues: a full
// queue drops the message with a count instead of blocking the broker's
// delivery loop.
func (s *Service) handleMessage(topic string, msg mqtt.Message) error {
	if s.State() != StateRunning {
		return nil
	}

	s.inflight.Add(1)
	select {
	case s.queue <- inboundMessage{topic: topic, payload: msg.Payload()}:
		return nil
	default:
		s.inflight.Done()
		s.stats.MarkFailed()
		messagesDropped.Inc()
		log.Printf("ingestion: worker queue full, dropping message on %s", topic)
		return nil
	}
}

func (s *Service) workerLoop() {
	for {
		select {
		case m := <-s.queue:
			s.processMessage(m)
			s.inflight.Done()
		case <-s.workerStop:
			return
		}
	}
}

// processMessage is the task boundary: nothing thrown inside it may reach
// the subscription loop or kill the process.
func (s *Service) processMessage(m inboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			s.stats.MarkFailed()
			messagesFailed.Inc()
			log.Printf("ingestion: panic processing %s: %v", m.topic, r)
		}
	}()

	start := time.Now()
	defer func() { processingDuration.Observe(time.Since(start).Seconds()) }()

	intent, err := ParseTopic(s.cfg.TopicPrefix, m.topic, m.payload)
	if err != nil {
		s.stats.MarkFailed()
		messagesFailed.Inc()
		log.Printf("ingestion: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	switch intent.Kind {
	case IntentSensorData:
		s.processSensorData(ctx, intent)
	case IntentDeviceStatus:
		s.processDeviceStatus(ctx, intent)
	case IntentDeviceConfig:
		s.processDeviceConfig(ctx, intent)
	}
}

func (s *Service) processSensorData(ctx context.Context, intent Intent) {
	reading, err := model.ReadingFromPayload(intent.DeviceID, intent.SensorType, intent.Payload, s.now())
	if err != nil {
		s.stats.MarkFailed()
		messagesFailed.Inc()
		log.Printf("ingestion: bad sensor payload from %s: %v", intent.DeviceID, err)
		return
	}

	ok, reasons := ValidateReading(reading)
	if !ok {
		s.stats.MarkFailed()
		messagesFailed.Inc()
		log.Printf("ingestion: invalid reading from %s/%s: %v", reading.DeviceID, reading.SensorType, reasons)
		return
	}

	hash, err := Fingerprint(reading)
	if err != nil {
		s.stats.MarkFailed()
		messagesFailed.Inc()
		log.Printf("ingestion: %v", err)
		return
	}
	reading.DataHash = hash

	if !s.deduper.FirstSeen(hash) {
		duplicatesSkipped.Inc()
		return
	}

	s.fanout.Write(ctx, reading)

	s.stats.MarkProcessed(reading.DeviceID)
	messagesProcessed.Inc()
}

func (s *Service) processDeviceStatus(ctx context.Context, intent Intent) {
	status, err := model.StatusFromPayload(intent.DeviceID, intent.Payload, s.now())
	if err != nil {
		s.stats.MarkFailed()
		messagesFailed.Inc()
		log.Printf("ingestion: bad status payload from %s: %v", intent.DeviceID, err)
		return
	}

	// Status goes to the cache and is republished on the bus; each write
	// fails independently, same isolation contract as the reading fanout.
	failed := false
	if err := s.cache.StoreDeviceStatus(ctx, status); err != nil {
		failed = true
		sinkErrors.WithLabelValues(SinkCache).Inc()
		log.Printf("ingestion: store status for %s: %v", status.DeviceID, err)
	}
	if err := s.streambus.PublishStatus(ctx, status); err != nil {
		failed = true
		sinkErrors.WithLabelValues(SinkStreamBus).Inc()
		log.Printf("ingestion: publish status for %s: %v", status.DeviceID, err)
	}

	if failed {
		s.stats.MarkFailed()
		messagesFailed.Inc()
		return
	}
	s.stats.MarkProcessed(status.DeviceID)
	messagesProcessed.Inc()
}

func (s *Service) processDeviceConfig(ctx context.Context, intent Intent) {
	cfg, err := model.ConfigFromPayload(intent.DeviceID, intent.Payload, s.now())
	if err != nil {
		s.stats.MarkFailed()
		messagesFailed.Inc()
		log.Printf("ingestion: bad config payload from %s: %v", intent.DeviceID, err)
		return
	}

	if err := s.documents.UpsertDeviceConfig(ctx, cfg); err != nil {
		s.stats.MarkFailed()
		messagesFailed.Inc()
		sinkErrors.WithLabelValues(SinkDocuments).Inc()
		log.Printf("ingestion: upsert config for %s: %v", cfg.DeviceID, err)
		return
	}
	s.stats.MarkProcessed(cfg.DeviceID)
	messagesProcessed.Inc()
}
