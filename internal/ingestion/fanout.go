package ingestion

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/carbonmarket/iot-ingestion/internal/model"
)

// Narrow write surfaces, one per sink. The concrete sink clients satisfy
// these; tests substitute fakes.
type (
	TimeSeriesWriter interface {
		WriteReading(ctx context.Context, r model.SensorReading) error
	}
	StreamPublisher interface {
		PublishReading(ctx context.Context, r model.SensorReading) error
	}
	LatestCache interface {
		CacheLatestReading(ctx context.Context, r model.SensorReading) error
	}
	AuditWriter interface {
		InsertAudit(ctx context.Context, r model.SensorReading) error
	}
)

// Sink identities used in outcomes, logs and metrics.
const (
	SinkTimeSeries = "timeseries"
	SinkStreamBus  = "streambus"
	SinkCache      = "cache"
	SinkDocuments  = "documents"
)

// SinkOutcome records how one destination fared for one reading.
type SinkOutcome struct {
	Sink     string
	Attempts int
	Err      error
}

// Fanout writes each validated reading to the four sinks concurrently.
// A failing sink never blocks or aborts its siblings: every write is
// retried a bounded number of times behind a per-sink circuit breaker and
// the final error, if any, is logged and counted, not propagated. There is
// no cross-sink transaction; after a partial failure a reading may be
// durable in some sinks and missing from others.
type Fanout struct {
	timeseries TimeSeriesWriter
	streambus  StreamPublisher
	cache      LatestCache
	documents  AuditWriter

	maxAttempts uint64
	breakers    map[string]*gobreaker.CircuitBreaker
}

func NewFanout(ts TimeSeriesWriter, bus StreamPublisher, cache LatestCache, docs AuditWriter) *Fanout {
	f := &Fanout{
		timeseries:  ts,
		streambus:   bus,
		cache:       cache,
		documents:   docs,
		maxAttempts: 3,
		breakers:    make(map[string]*gobreaker.CircuitBreaker, 4),
	}
	for _, name := range []string{SinkTimeSeries, SinkStreamBus, SinkCache, SinkDocuments} {
		f.breakers[name] = mkBreaker(name)
	}
	return f
}

func mkBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  10 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})
}

// Write fans the reading out to all four sinks and returns the per-sink
// outcomes. It never returns an error: failures are isolated per sink.
func (f *Fanout) Write(ctx context.Context, r model.SensorReading) []SinkOutcome {
	outcomes := make([]SinkOutcome, 4)

	var wg sync.WaitGroup
	run := func(i int, name string, op func(context.Context) error) {
		defer wg.Done()
		outcomes[i] = f.writeOne(ctx, name, op)
	}

	wg.Add(4)
	go run(0, SinkTimeSeries, func(c context.Context) error { return f.timeseries.WriteReading(c, r) })
	go run(1, SinkStreamBus, func(c context.Context) error { return f.streambus.PublishReading(c, r) })
	go run(2, SinkCache, func(c context.Context) error { return f.cache.CacheLatestReading(c, r) })
	go run(3, SinkDocuments, func(c context.Context) error { return f.documents.InsertAudit(c, r) })
	wg.Wait()

	for _, o := range outcomes {
		if o.Err != nil {
			log.Printf("fanout: %s write failed after %d attempt(s) for device %s: %v",
				o.Sink, o.Attempts, r.DeviceID, o.Err)
			sinkErrors.WithLabelValues(o.Sink).Inc()
		}
	}
	return outcomes
}

// writeOne executes a single sink write behind its breaker, retrying
// transient failures with exponential backoff up to maxAttempts total.
func (f *Fanout) writeOne(ctx context.Context, name string, op func(context.Context) error) SinkOutcome {
	out := SinkOutcome{Sink: name}

	_, err := f.breakers[name].Execute(func() (any, error) {
		bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
		return nil, backoff.Retry(func() error {
			out.Attempts++
			return op(ctx)
		}, backoff.WithMaxRetries(bo, f.maxAttempts-1))
	})
	out.Err = err
	return out
}
