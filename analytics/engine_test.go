package analytics

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drone-gateway/models"
)

type recordCollector struct {
	mu      sync.Mutex
	records []models.AggregatedRecord
}

func (rc *recordCollector) collect(record models.AggregatedRecord) {
	rc.mu.Lock()
	rc.records = append(rc.records, record)
	rc.mu.Unlock()
}

func (rc *recordCollector) all() []models.AggregatedRecord {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]models.AggregatedRecord(nil), rc.records...)
}

func newTestEngine(windowSize int, collector *recordCollector) *Engine {
	return NewEngine(EngineConfig{
		WindowSize:     windowSize,
		PipelineBuffer: 16,
		Classifier:     testClassifierConfig,
	}, nil, collector.collect, nil)
}

func engineReading(sensorID string, value float64) models.SensorReading {
	return models.SensorReading{
		SensorID:  sensorID,
		Timestamp: "2026-08-26T12:00:00Z",
		Value:     value,
		Unit:      models.UnitCelsius,
	}
}

func TestEngineEmitsOnceWindowFull(t *testing.T) {
	collector := &recordCollector{}
	engine := newTestEngine(3, collector)

	for _, v := range []float64{1, 2, 3, 4} {
		engine.Process(engineReading("sensor1", v))
	}
	engine.Close()

	records := collector.all()
	require.Len(t, records, 2, "records are emitted per reading once the window holds 3")

	assert.InDelta(t, 2.0, records[0].WindowMean, 1e-9) // [1,2,3]
	assert.InDelta(t, 3.0, records[1].WindowMean, 1e-9) // [2,3,4]
	assert.Equal(t, "sensor1", records[0].SensorID)
	assert.NotEmpty(t, records[0].RecordID)
	assert.NotEqual(t, records[0].RecordID, records[1].RecordID)
}

func TestEnginePreservesPerSensorOrder(t *testing.T) {
	collector := &recordCollector{}
	engine := newTestEngine(2, collector)

	const count = 200
	for i := 0; i < count; i++ {
		engine.Process(engineReading("sensor1", float64(i)))
	}
	engine.Close()

	records := collector.all()
	require.Len(t, records, count-1)
	for i := 1; i < len(records); i++ {
		assert.Greater(t, records[i].WindowMean, records[i-1].WindowMean,
			"record %d out of order", i)
	}
}

func TestEngineIsolatesSensors(t *testing.T) {
	collector := &recordCollector{}
	engine := newTestEngine(2, collector)

	var wg sync.WaitGroup
	for s := 0; s < 4; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			sensorID := fmt.Sprintf("sensor%d", s)
			base := float64(s * 1000)
			for i := 0; i < 50; i++ {
				engine.Process(engineReading(sensorID, base+float64(i)))
			}
		}(s)
	}
	wg.Wait()
	engine.Close()

	perSensor := make(map[string][]float64)
	for _, record := range collector.all() {
		perSensor[record.SensorID] = append(perSensor[record.SensorID], record.WindowMean)
	}

	require.Len(t, perSensor, 4)
	for sensorID, means := range perSensor {
		assert.Len(t, means, 49, "sensor %s", sensorID)
		for i := 1; i < len(means); i++ {
			assert.Greater(t, means[i], means[i-1], "sensor %s record %d", sensorID, i)
		}
	}
}

func TestEngineCountsAnomaliesAndFiresCallback(t *testing.T) {
	collector := &recordCollector{}
	var anomalyMu sync.Mutex
	anomalies := make(map[string]int)

	engine := NewEngine(EngineConfig{
		WindowSize:     5,
		PipelineBuffer: 16,
		Classifier:     testClassifierConfig,
	}, nil, collector.collect, func(sensorID string) {
		anomalyMu.Lock()
		anomalies[sensorID]++
		anomalyMu.Unlock()
	})

	for i := 0; i < 5; i++ {
		engine.Process(engineReading("sensor1", 10))
	}
	engine.Process(engineReading("sensor1", 100))
	engine.Close()

	anomalyMu.Lock()
	assert.Equal(t, 1, anomalies["sensor1"])
	anomalyMu.Unlock()

	records := collector.all()
	require.NotEmpty(t, records)
	last := records[len(records)-1]
	assert.Equal(t, models.ClassAnomaly, last.Classification)
	assert.Equal(t, int64(1), last.AnomalyCount)
}

func TestEngineSnapshot(t *testing.T) {
	collector := &recordCollector{}
	engine := newTestEngine(3, collector)

	engine.Process(engineReading("b-sensor", 4))
	engine.Process(engineReading("a-sensor", 1))
	engine.Process(engineReading("a-sensor", 3))
	engine.Close()

	snapshots := engine.Snapshot()
	require.Len(t, snapshots, 2)

	// sorted by sensor id
	assert.Equal(t, "a-sensor", snapshots[0].SensorID)
	assert.Equal(t, "b-sensor", snapshots[1].SensorID)

	assert.Equal(t, 2, snapshots[0].Count)
	assert.InDelta(t, 2.0, snapshots[0].Mean, 1e-9)
	assert.False(t, snapshots[0].LastSeen.IsZero())
}

func TestEngineProcessAfterCloseIsNoop(t *testing.T) {
	collector := &recordCollector{}
	engine := newTestEngine(2, collector)
	engine.Close()

	engine.Process(engineReading("sensor1", 1))
	engine.Process(engineReading("sensor1", 2))

	assert.Empty(t, collector.all())
}
