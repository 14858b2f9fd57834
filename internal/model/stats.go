package model

import "time"

// IngestionStats is the snapshot published at the end of each reporting
// window. Windows do not accumulate: every snapshot starts from zero.
type IngestionStats struct {
	WindowStart   time.Time `json:"window_start"`
	Processed     int64     `json:"messages_processed"`
	Failed        int64     `json:"messages_failed"`
	ActiveDevices int       `json:"active_devices"`
	SuccessRate   float64   `json:"success_rate"`
}
