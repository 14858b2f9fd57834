package sink

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/carbonmarket/iot-ingestion/internal/model"
)

type MongoConfig struct {
	URI      string
	Database string
}

// MongoSink holds the audit trail (append-only sensor_metadata) and the
// per-device config documents (device_configs, upsert by device_id).
type MongoSink struct {
	client  *mongo.Client
	audit   *mongo.Collection
	configs *mongo.Collection
}

// auditDocument is the append-only record kept per validated reading.
type auditDocument struct {
	DeviceID   string         `bson:"device_id"`
	SensorType string         `bson:"sensor_type"`
	Timestamp  time.Time      `bson:"timestamp"`
	DataHash   string         `bson:"data_hash"`
	Metadata   map[string]any `bson:"metadata,omitempty"`
	StoredAt   time.Time      `bson:"stored_at"`
}

func NewMongoSink(cfg MongoConfig) (*MongoSink, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to create MongoDB client: %w", err)
	}
	db := client.Database(cfg.Database)
	return &MongoSink{
		client:  client,
		audit:   db.Collection("sensor_metadata"),
		configs: db.Collection("device_configs"),
	}, nil
}

func (s *MongoSink) Connect(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	return nil
}

// InsertAudit appends one audit record; never updates existing documents.
func (s *MongoSink) InsertAudit(ctx context.Context, r model.SensorReading) error {
	_, err := s.audit.InsertOne(ctx, auditDocument{
		DeviceID:   r.DeviceID,
		SensorType: r.SensorType,
		Timestamp:  r.Timestamp,
		DataHash:   r.DataHash,
		Metadata:   r.Metadata.Scalars(),
		StoredAt:   time.Now().UTC(),
	})
	return err
}

// UpsertDeviceConfig replaces the device's config document, last write
// wins.
func (s *MongoSink) UpsertDeviceConfig(ctx context.Context, cfg model.DeviceConfig) error {
	_, err := s.configs.UpdateOne(ctx,
		bson.M{"device_id": cfg.DeviceID},
		bson.M{"$set": cfg},
		options.UpdateOne().SetUpsert(true),
	)
	return err
}

func (s *MongoSink) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.client.Disconnect(ctx)
}
