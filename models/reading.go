package models

import (
	"errors"
	"time"
)

// Unit identifies what a sensor measures.
type Unit string

const (
	UnitCelsius Unit = "celsius"
	UnitPercent Unit = "percent"
)

// SensorReading is one inbound sample from a sensor node. Immutable once
// parsed off the wire.
type SensorReading struct {
	SensorID  string  `json:"sensor_id"`
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
	Unit      Unit    `json:"unit"`
}

func (r *SensorReading) Validate() error {
	if r.SensorID == "" {
		return errors.New("sensor_id is required")
	}

	if r.Timestamp == "" {
		return errors.New("timestamp is required")
	}

	if _, err := time.Parse(time.RFC3339, r.Timestamp); err != nil {
		return errors.New("invalid timestamp format, expected RFC3339")
	}

	switch r.Unit {
	case UnitCelsius, UnitPercent:
	default:
		return errors.New("unknown unit")
	}

	return nil
}

// ReadingTime parses the reading timestamp, falling back to the current time
// for clocks we cannot interpret.
func (r *SensorReading) ReadingTime() time.Time {
	t, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}
