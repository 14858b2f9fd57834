package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carbonmarket/iot-ingestion/internal/ingestion"
	"github.com/carbonmarket/iot-ingestion/internal/sink"
	"github.com/carbonmarket/iot-ingestion/pkg/mqttclient"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()

	influx, err := sink.NewInfluxSink(sink.InfluxConfig{
		URL:    cfg.InfluxURL,
		Token:  cfg.InfluxToken,
		Org:    cfg.InfluxOrg,
		Bucket: cfg.InfluxBucket,
	})
	if err != nil {
		log.Fatalf("influx init failed: %v", err)
	}

	redis := sink.NewRedisSink(sink.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	mongo, err := sink.NewMongoSink(sink.MongoConfig{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDB,
	})
	if err != nil {
		log.Fatalf("mongo init failed: %v", err)
	}

	kafka, err := sink.NewKafkaSink(sink.KafkaConfig{
		Brokers:       cfg.KafkaBrokers,
		ReadingsTopic: cfg.KafkaReadingsTopic,
		StatusTopic:   cfg.KafkaStatusTopic,
	})
	if err != nil {
		log.Fatalf("kafka init failed: %v", err)
	}

	filters := []string{
		fmt.Sprintf("%s/sensors/+/+/data", cfg.TopicPrefix),
		fmt.Sprintf("%s/devices/+/status", cfg.TopicPrefix),
		fmt.Sprintf("%s/devices/+/config", cfg.TopicPrefix),
	}
	dialBroker := func(ctx context.Context) (mqttclient.IConsumer, error) {
		client, err := mqttclient.NewConn(&mqttclient.Config{
			Host:     cfg.MQTTHost,
			Port:     cfg.MQTTPort,
			User:     cfg.MQTTUser,
			Password: cfg.MQTTPassword,
			ClientID: cfg.MQTTClientID,
		}, ctx)
		if err != nil {
			return nil, err
		}
		return mqttclient.NewMultiConsumer(client, filters, nil), nil
	}

	svc := ingestion.NewService(ingestion.Config{
		TopicPrefix:   cfg.TopicPrefix,
		Workers:       cfg.Workers,
		QueueSize:     cfg.QueueSize,
		DrainGrace:    cfg.drainGrace(),
		StatsInterval: cfg.statsPeriod(),
	}, influx, kafka, redis, mongo, dialBroker)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !svc.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ready": svc.Ready(),
			"state": svc.State().String(),
		})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("ingestion HTTP listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("ingestion service failed: %v", err)
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
}
