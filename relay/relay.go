package relay

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"drone-gateway/models"
)

var (
	recordsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_records_sent_total",
			Help: "Total number of records delivered to the central server",
		},
	)

	uplinkErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_uplink_errors_total",
			Help: "Total number of failed sends to the central server",
		},
	)

	recordsLostTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_records_lost_total",
			Help: "Total number of records abandoned at shutdown",
		},
	)
)

// UplinkGate reports whether the flight mode currently permits sending.
type UplinkGate interface {
	UplinkAllowed() bool
}

// Relay owns the outbound queue and drains it toward the central server
// whenever the gate permits. Records leave in enqueue order; a failed send
// leaves the record at the head of the queue, so ordering survives uplink
// outages.
type Relay struct {
	queue  *Queue
	sender Sender
	gate   UplinkGate

	sent         atomic.Int64
	uplinkErrors atomic.Int64
	lost         atomic.Int64
}

func NewRelay(queue *Queue, sender Sender, gate UplinkGate) *Relay {
	return &Relay{
		queue:  queue,
		sender: sender,
		gate:   gate,
	}
}

// Enqueue buffers a record for delivery. Always succeeds; overflow is
// handled by the queue's drop-oldest policy.
func (r *Relay) Enqueue(record models.AggregatedRecord) {
	r.queue.Enqueue(record)
}

// Drain attempts to deliver queued records oldest-first. It stops at the
// first failed send so order is preserved, leaving the record queued for the
// next eligible tick. A drain cycle is a no-op while the uplink is gated off.
func (r *Relay) Drain(ctx context.Context) {
	if !r.gate.UplinkAllowed() {
		return
	}
	r.drain(ctx)
}

func (r *Relay) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		record, ok := r.queue.Peek()
		if !ok {
			return
		}

		if err := r.sender.Send(record); err != nil {
			r.uplinkErrors.Add(1)
			uplinkErrorsTotal.Inc()
			log.Printf("WARNING: uplink send failed for record %s (sensor %s), pausing drain: %v",
				record.RecordID, record.SensorID, err)
			return
		}

		r.queue.Pop()
		r.sent.Add(1)
		recordsSentTotal.Inc()
	}
}

// Flush is the shutdown path: best-effort delivery of whatever is queued,
// bypassing the flight-mode gate, bounded by the context deadline. Records
// still queued afterwards are counted as lost.
func (r *Relay) Flush(ctx context.Context) {
	deadline, ok := ctx.Deadline()
	for r.queue.Len() > 0 {
		if ctx.Err() != nil || (ok && time.Now().After(deadline)) {
			break
		}

		record, _ := r.queue.Peek()
		if err := r.sender.Send(record); err != nil {
			r.uplinkErrors.Add(1)
			uplinkErrorsTotal.Inc()
			break
		}
		r.queue.Pop()
		r.sent.Add(1)
		recordsSentTotal.Inc()
	}

	if remaining := r.queue.Len(); remaining > 0 {
		r.lost.Add(int64(remaining))
		recordsLostTotal.Add(float64(remaining))
		log.Printf("WARNING: shutdown flush incomplete, %d queued records lost", remaining)
	}
}

// Stats for the status API.
func (r *Relay) Sent() int64         { return r.sent.Load() }
func (r *Relay) UplinkErrors() int64 { return r.uplinkErrors.Load() }
func (r *Relay) Lost() int64         { return r.lost.Load() }
