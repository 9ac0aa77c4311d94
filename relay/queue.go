package relay

import (
	"log"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"drone-gateway/models"
)

var (
	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_queue_depth",
			Help: "Current number of records waiting in the outbound queue",
		},
	)

	recordsEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_records_enqueued_total",
			Help: "Total number of records accepted into the outbound queue",
		},
	)

	recordsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_records_dropped_total",
			Help: "Total number of records dropped by the overflow policy",
		},
	)
)

// Queue is the bounded FIFO of outbound records. Overflow policy is
// drop-oldest: when a record arrives at capacity, the head of the queue is
// discarded, logged and counted, and the new record is appended. After a
// long uplink outage the freshest aggregates are the ones worth keeping.
type Queue struct {
	mu       sync.Mutex
	records  []models.AggregatedRecord
	capacity int
	dropped  int64
}

func NewQueue(capacity int) *Queue {
	return &Queue{
		records:  make([]models.AggregatedRecord, 0, capacity),
		capacity: capacity,
	}
}

// Enqueue appends a record, evicting the oldest one first if the queue is at
// capacity. Length never exceeds capacity.
func (q *Queue) Enqueue(record models.AggregatedRecord) {
	q.mu.Lock()
	if len(q.records) >= q.capacity {
		oldest := q.records[0]
		q.records = q.records[1:]
		q.dropped++
		recordsDroppedTotal.Inc()
		log.Printf("WARNING: outbound queue full (capacity %d), dropped oldest record %s from sensor %s",
			q.capacity, oldest.RecordID, oldest.SensorID)
	}
	q.records = append(q.records, record)
	recordsEnqueuedTotal.Inc()
	queueDepth.Set(float64(len(q.records)))
	q.mu.Unlock()
}

// Peek returns the head of the queue without removing it.
func (q *Queue) Peek() (models.AggregatedRecord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.records) == 0 {
		return models.AggregatedRecord{}, false
	}
	return q.records[0], true
}

// Pop removes the head of the queue after a successful send.
func (q *Queue) Pop() {
	q.mu.Lock()
	if len(q.records) > 0 {
		q.records = q.records[1:]
		queueDepth.Set(float64(len(q.records)))
	}
	q.mu.Unlock()
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

// Dropped reports how many records the overflow policy has discarded.
func (q *Queue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
