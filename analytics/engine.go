package analytics

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"drone-gateway/cache"
	"drone-gateway/models"
)

// RecordCallback receives an AggregatedRecord once a sensor window is full.
type RecordCallback func(models.AggregatedRecord)

// AnomalyCallback fires once per ANOMALY classification.
type AnomalyCallback func(sensorID string)

// EngineConfig sizes the windows and per-sensor channels.
type EngineConfig struct {
	WindowSize     int
	PipelineBuffer int
	Classifier     ClassifierConfig
}

// Engine owns one pipeline per sensor id. Each pipeline is a single
// goroutine reading from its own channel, so one sensor's stream is never
// processed concurrently and its window needs no lock. Producers block when
// a pipeline channel is full; readings are never silently dropped here.
type Engine struct {
	cfg         EngineConfig
	redisClient *cache.RedisClient
	pipelines   map[string]*pipeline
	mu          sync.RWMutex
	closed      bool
	wg          sync.WaitGroup
	onRecord    RecordCallback
	onAnomaly   AnomalyCallback
}

type pipeline struct {
	readings chan models.SensorReading
	window   *RollingWindow

	// copies for Snapshot, maintained by the pipeline goroutine
	statMu    sync.Mutex
	mean      float64
	stdDev    float64
	count     int
	anomalies int64
	lastSeen  time.Time
}

// SensorSnapshot is the observable per-sensor state for the status API.
type SensorSnapshot struct {
	SensorID  string    `json:"sensor_id"`
	Mean      float64   `json:"window_mean"`
	StdDev    float64   `json:"window_stddev"`
	Count     int       `json:"window_count"`
	Anomalies int64     `json:"anomaly_count"`
	LastSeen  time.Time `json:"last_seen"`
}

func NewEngine(cfg EngineConfig, redisClient *cache.RedisClient, onRecord RecordCallback, onAnomaly AnomalyCallback) *Engine {
	return &Engine{
		cfg:         cfg,
		redisClient: redisClient,
		pipelines:   make(map[string]*pipeline),
		onRecord:    onRecord,
		onAnomaly:   onAnomaly,
	}
}

// Process hands a reading to its sensor's pipeline, creating the pipeline on
// first sight of the sensor id. Blocks when the pipeline is saturated, which
// backpressures the caller's connection reader.
func (e *Engine) Process(reading models.SensorReading) {
	e.mu.RLock()
	p, exists := e.pipelines[reading.SensorID]
	closed := e.closed
	e.mu.RUnlock()

	if closed {
		return
	}

	if !exists {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return
		}
		p, exists = e.pipelines[reading.SensorID]
		if !exists {
			p = &pipeline{
				readings: make(chan models.SensorReading, e.cfg.PipelineBuffer),
				window:   NewRollingWindow(e.cfg.WindowSize),
			}
			e.pipelines[reading.SensorID] = p
			e.wg.Add(1)
			go e.run(reading.SensorID, p)
		}
		e.mu.Unlock()
	}

	p.readings <- reading
}

func (e *Engine) run(sensorID string, p *pipeline) {
	defer e.wg.Done()
	for reading := range p.readings {
		e.processReading(sensorID, p, reading)
	}
}

func (e *Engine) processReading(sensorID string, p *pipeline, reading models.SensorReading) {
	// classify against the window before the reading joins it
	priorMean := p.window.Mean()
	priorStdDev := p.window.StdDev()
	priorCount := p.window.Count()

	event := Classify(reading, priorMean, priorStdDev, priorCount, e.cfg.Classifier)

	p.window.Add(reading.Value)
	mean := p.window.Mean()
	stdDev := p.window.StdDev()

	p.statMu.Lock()
	p.mean = mean
	p.stdDev = stdDev
	p.count = p.window.Count()
	if event.Classification == models.ClassAnomaly {
		p.anomalies++
	}
	anomalies := p.anomalies
	p.lastSeen = time.Now().UTC()
	p.statMu.Unlock()

	if event.Classification == models.ClassAnomaly {
		log.Printf("ANOMALY DETECTED: sensor=%s, value=%.2f, score=%.2f, window_mean=%.2f",
			sensorID, reading.Value, event.Score, mean)
		if e.onAnomaly != nil {
			e.onAnomaly(sensorID)
		}
	}

	if !p.window.Full() {
		return
	}

	record := models.AggregatedRecord{
		RecordID:       uuid.NewString(),
		SensorID:       sensorID,
		WindowMean:     mean,
		WindowStdDev:   stdDev,
		Classification: event.Classification,
		Score:          event.Score,
		AnomalyCount:   anomalies,
		Timestamp:      time.Now().UTC(),
	}

	if e.onRecord != nil {
		e.onRecord(record)
	}

	if e.redisClient != nil {
		if err := e.redisClient.SaveAggregate(sensorID, record); err != nil {
			log.Printf("WARNING: failed to save aggregate for sensor %s: %v", sensorID, err)
		}
	}
}

// Snapshot reports every known sensor, ordered by id.
func (e *Engine) Snapshot() []SensorSnapshot {
	e.mu.RLock()
	snapshots := make([]SensorSnapshot, 0, len(e.pipelines))
	for sensorID, p := range e.pipelines {
		p.statMu.Lock()
		snapshots = append(snapshots, SensorSnapshot{
			SensorID:  sensorID,
			Mean:      p.mean,
			StdDev:    p.stdDev,
			Count:     p.count,
			Anomalies: p.anomalies,
			LastSeen:  p.lastSeen,
		})
		p.statMu.Unlock()
	}
	e.mu.RUnlock()

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].SensorID < snapshots[j].SensorID
	})
	return snapshots
}

// Close stops accepting readings, lets each pipeline drain its channel, and
// waits for the goroutines to exit.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for _, p := range e.pipelines {
		close(p.readings)
	}
	e.mu.Unlock()

	e.wg.Wait()
}
