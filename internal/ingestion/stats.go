package ingestion

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carbonmarket/iot-ingestion/internal/model"
)

// StatsPublisher stores a window snapshot under the well-known stats key.
type StatsPublisher interface {
	PublishStats(ctx context.Context, stats model.IngestionStats) error
}

// StatsAggregator keeps rolling counters for the current reporting window
// and publishes-then-resets a snapshot every interval. Counters are
// updated atomically from arbitrarily many concurrent task completions;
// the active-device set has its own lock.
type StatsAggregator struct {
	publisher StatsPublisher
	interval  time.Duration

	processed atomic.Int64
	failed    atomic.Int64

	mu          sync.Mutex
	devices     map[string]struct{}
	windowStart time.Time
}

func NewStatsAggregator(publisher StatsPublisher, interval time.Duration) *StatsAggregator {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &StatsAggregator{
		publisher:   publisher,
		interval:    interval,
		devices:     make(map[string]struct{}),
		windowStart: time.Now().UTC(),
	}
}

// MarkProcessed records one successful message and the device it came from.
func (s *StatsAggregator) MarkProcessed(deviceID string) {
	s.processed.Add(1)
	s.mu.Lock()
	s.devices[deviceID] = struct{}{}
	s.mu.Unlock()
}

// MarkFailed records one failed message.
func (s *StatsAggregator) MarkFailed() {
	s.failed.Add(1)
}

// Snapshot freezes the current window into an IngestionStats and resets
// every counter and the device set: the next window starts from zero.
func (s *StatsAggregator) Snapshot(now time.Time) model.IngestionStats {
	processed := s.processed.Swap(0)
	failed := s.failed.Swap(0)

	s.mu.Lock()
	active := len(s.devices)
	s.devices = make(map[string]struct{})
	windowStart := s.windowStart
	s.windowStart = now
	s.mu.Unlock()

	rate := 0.0
	if processed+failed > 0 {
		rate = float64(processed) / float64(processed+failed)
	}

	return model.IngestionStats{
		WindowStart:   windowStart,
		Processed:     processed,
		Failed:        failed,
		ActiveDevices: active,
		SuccessRate:   rate,
	}
}

// Run publishes a snapshot every interval until ctx is cancelled.
func (s *StatsAggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.Snapshot(time.Now().UTC())
			if err := s.publisher.PublishStats(ctx, stats); err != nil {
				log.Printf("stats: publish failed: %v", err)
			}
			log.Printf("stats: %d processed, %d failed, %d active devices",
				stats.Processed, stats.Failed, stats.ActiveDevices)
		}
	}
}
