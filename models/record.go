package models

import "time"

// Classification tags a reading as in or out of band for its sensor.
type Classification string

const (
	ClassNormal  Classification = "NORMAL"
	ClassAnomaly Classification = "ANOMALY"
)

// AnomalyEvent is the classifier verdict for a single reading.
type AnomalyEvent struct {
	SensorID       string         `json:"sensor_id"`
	Timestamp      string         `json:"timestamp"`
	Value          float64        `json:"value"`
	Classification Classification `json:"classification"`
	Score          float64        `json:"score"`
}

// AggregatedRecord is the outbound unit sent to the central server once a
// sensor window has filled.
type AggregatedRecord struct {
	RecordID       string         `json:"record_id"`
	SensorID       string         `json:"sensor_id"`
	WindowMean     float64        `json:"window_mean"`
	WindowStdDev   float64        `json:"window_stddev"`
	Classification Classification `json:"classification"`
	Score          float64        `json:"score"`
	AnomalyCount   int64          `json:"anomaly_count"`
	Timestamp      time.Time      `json:"timestamp"`
}
