package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSensorReadingValidate(t *testing.T) {
	valid := SensorReading{
		SensorID:  "sensor1",
		Timestamp: "2026-08-26T12:00:00Z",
		Value:     21.5,
		Unit:      UnitCelsius,
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(r *SensorReading)
	}{
		{"missing sensor id", func(r *SensorReading) { r.SensorID = "" }},
		{"missing timestamp", func(r *SensorReading) { r.Timestamp = "" }},
		{"bad timestamp", func(r *SensorReading) { r.Timestamp = "yesterday" }},
		{"unknown unit", func(r *SensorReading) { r.Unit = "fathoms" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			assert.Error(t, r.Validate())
		})
	}
}

func TestReadingTime(t *testing.T) {
	r := SensorReading{Timestamp: "2026-08-26T12:00:00Z"}
	assert.Equal(t, time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC), r.ReadingTime())

	broken := SensorReading{Timestamp: "garbage"}
	assert.WithinDuration(t, time.Now().UTC(), broken.ReadingTime(), time.Minute)
}
