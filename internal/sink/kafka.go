package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/carbonmarket/iot-ingestion/internal/model"
)

type KafkaConfig struct {
	Brokers       string
	ReadingsTopic string
	StatusTopic   string
}

// KafkaSink publishes readings and status updates to the stream bus.
// Messages are keyed by device ID so one device's readings share a
// partition, and the producer runs idempotent so broker-level retries
// cannot duplicate observable writes.
type KafkaSink struct {
	producer      *kafka.Producer
	readingsTopic string
	statusTopic   string
}

func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Brokers,
		"acks":               "all",
		"enable.idempotence": true,
		"linger.ms":          5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return &KafkaSink{
		producer:      producer,
		readingsTopic: cfg.ReadingsTopic,
		statusTopic:   cfg.StatusTopic,
	}, nil
}

// Connect verifies the brokers are reachable with a metadata round trip.
func (s *KafkaSink) Connect(ctx context.Context) error {
	if _, err := s.producer.GetMetadata(nil, true, 5000); err != nil {
		return fmt.Errorf("kafka metadata: %w", err)
	}
	return nil
}

func (s *KafkaSink) PublishReading(ctx context.Context, r model.SensorReading) error {
	return s.publish(ctx, s.readingsTopic, r.DeviceID, r)
}

func (s *KafkaSink) PublishStatus(ctx context.Context, st model.DeviceStatusUpdate) error {
	return s.publish(ctx, s.statusTopic, st.DeviceID, st)
}

func (s *KafkaSink) publish(ctx context.Context, topic, key string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", topic, err)
	}

	deliveryChan := make(chan kafka.Event, 1)

	err = s.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(key),
		Value: value,
	}, deliveryChan)
	if err != nil {
		return err
	}

	select {
	case e := <-deliveryChan:
		if msg, ok := e.(*kafka.Message); ok {
			if msg.TopicPartition.Error != nil {
				return msg.TopicPartition.Error
			}
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

func (s *KafkaSink) Close() {
	s.producer.Flush(5000)
	s.producer.Close()
}
