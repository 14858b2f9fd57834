package main

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	MQTTHost     string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string
	TopicPrefix  string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MongoURI string
	MongoDB  string

	KafkaBrokers       string
	KafkaReadingsTopic string
	KafkaStatusTopic   string

	Workers       int
	QueueSize     int
	DrainGraceMs  int
	StatsPeriodMs int
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func loadConfig() Config {
	return Config{
		Port: getenv("PORT", "8080"),

		MQTTHost:     getenv("MQTT_HOST", "localhost"),
		MQTTPort:     getenvInt("MQTT_PORT", 1883),
		MQTTUser:     getenv("MQTT_USER", ""),
		MQTTPassword: getenv("MQTT_PASSWORD", ""),
		MQTTClientID: getenv("MQTT_CLIENT_ID", "iot-ingestion"),
		TopicPrefix:  getenv("TOPIC_PREFIX", "carbon"),

		InfluxURL:    getenv("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:  getenv("INFLUX_TOKEN", ""),
		InfluxOrg:    getenv("INFLUX_ORG", "carbon"),
		InfluxBucket: getenv("INFLUX_BUCKET", "sensor-data"),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		MongoURI: getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getenv("MONGO_DB", "carbon_iot"),

		KafkaBrokers:       getenv("KAFKA_BROKERS", "localhost:9092"),
		KafkaReadingsTopic: getenv("KAFKA_READINGS_TOPIC", "sensor-data"),
		KafkaStatusTopic:   getenv("KAFKA_STATUS_TOPIC", "device-status"),

		Workers:       getenvInt("WORKERS", 8),
		QueueSize:     getenvInt("QUEUE_SIZE", 1024),
		DrainGraceMs:  getenvInt("DRAIN_GRACE_MS", 10000),
		StatsPeriodMs: getenvInt("STATS_PERIOD_MS", 60000),
	}
}

func (c Config) drainGrace() time.Duration {
	return time.Duration(c.DrainGraceMs) * time.Millisecond
}

func (c Config) statsPeriod() time.Duration {
	return time.Duration(c.StatsPeriodMs) * time.Millisecond
}
