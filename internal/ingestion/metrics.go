package ingestion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cumulative process-lifetime metrics. The windowed stats published to the
// cache reset every interval; these never do.

var messagesProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ingestion_messages_processed_total",
	Help: "Messages that completed the pipeline successfully",
})

var messagesFailed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ingestion_messages_failed_total",
	Help: "Messages dropped by routing, decoding or validation errors",
})

var messagesDropped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ingestion_messages_dropped_total",
	Help: "Messages rejected at admission because the worker queue was full",
})

var duplicatesSkipped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ingestion_duplicates_skipped_total",
	Help: "Redelivered readings recognized by fingerprint and skipped",
})

var sinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ingestion_sink_errors_total",
	Help: "Terminal per-sink write failures after retries",
}, []string{"sink"})

var processingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "ingestion_processing_duration_seconds",
	Help:    "End-to-end time from dequeue to fanout completion",
	Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
})
