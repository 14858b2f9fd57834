package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carbonmarket/iot-ingestion/internal/model"
)

const (
	// latestTTL ages stale devices out of "latest" views.
	latestTTL = time.Hour

	// statsKey holds the most recent ingestion window snapshot.
	statsKey = "ingestion_stats"
	statsTTL = time.Hour
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisSink keeps the latest reading per device/sensor, the per-device
// status hash and the rolling stats snapshot. All writes are upserts.
type RedisSink struct {
	client *redis.Client
}

func NewRedisSink(cfg RedisConfig) *RedisSink {
	return &RedisSink{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (s *RedisSink) Connect(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// CacheLatestReading upserts latest:{deviceId}:{sensorType} and refreshes
// its TTL so the entry expires an hour after the device goes quiet.
func (s *RedisSink) CacheLatestReading(ctx context.Context, r model.SensorReading) error {
	key := fmt.Sprintf("latest:%s:%s", r.DeviceID, r.SensorType)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"value":     r.Value,
		"unit":      r.Unit,
		"quality":   r.Quality,
		"timestamp": r.Timestamp.Format(time.RFC3339Nano),
		"data_hash": r.DataHash,
	})
	pipe.Expire(ctx, key, latestTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// StoreDeviceStatus replaces the device_status:{deviceId} hash,
// last-write-wins, no history.
func (s *RedisSink) StoreDeviceStatus(ctx context.Context, st model.DeviceStatusUpdate) error {
	key := fmt.Sprintf("device_status:%s", st.DeviceID)
	return s.client.HSet(ctx, key, map[string]any{
		"status":           st.Status,
		"battery_level":    st.BatteryLevel,
		"signal_strength":  st.SignalStrength,
		"last_seen":        st.LastSeen.Format(time.RFC3339Nano),
		"firmware_version": st.FirmwareVersion,
		"ip_address":       st.IPAddress,
	}).Err()
}

// PublishStats overwrites the well-known stats key with the latest window
// snapshot.
func (s *RedisSink) PublishStats(ctx context.Context, stats model.IngestionStats) error {
	b, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	return s.client.Set(ctx, statsKey, b, statsTTL).Err()
}

func (s *RedisSink) Close() {
	_ = s.client.Close()
}
