package analytics

import (
	"math"

	"drone-gateway/models"
)

// ClassifierConfig carries the anomaly thresholds.
type ClassifierConfig struct {
	ZThreshold   float64 // z-score multiplier, anomaly above this
	MinStdDev    float64 // below this the window is too uniform for z-scores
	AbsThreshold float64 // absolute deviation fallback for flat windows
}

// Classify judges a reading against the window statistics as they stood
// before the reading was inserted. It is a pure function of its inputs, so
// the same window state and reading always produce the same event.
//
// A window with no samples has no baseline: the first reading of a sensor is
// always NORMAL with score 0. When the window is too flat for a meaningful
// z-score, the absolute deviation from the mean is compared against
// AbsThreshold instead and becomes the score.
func Classify(reading models.SensorReading, mean, stdDev float64, count int, cfg ClassifierConfig) models.AnomalyEvent {
	event := models.AnomalyEvent{
		SensorID:       reading.SensorID,
		Timestamp:      reading.Timestamp,
		Value:          reading.Value,
		Classification: models.ClassNormal,
	}

	if count == 0 {
		return event
	}

	deviation := math.Abs(reading.Value - mean)

	if stdDev < cfg.MinStdDev {
		event.Score = deviation
		if deviation > cfg.AbsThreshold {
			event.Classification = models.ClassAnomaly
		}
		return event
	}

	zScore := deviation / stdDev
	event.Score = zScore
	if zScore > cfg.ZThreshold {
		event.Classification = models.ClassAnomaly
	}

	return event
}
