package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"drone-gateway/analytics"
	"drone-gateway/drone"
	"drone-gateway/gateway"
	"drone-gateway/relay"
)

// StatusHandler serves the gateway's observability surface: drone state,
// queue depth and loss counters, and per-sensor statistics. This is what the
// visualization side polls.
type StatusHandler struct {
	state    *drone.StateMachine
	engine   *analytics.Engine
	queue    *relay.Queue
	relay    *relay.Relay
	listener *gateway.Listener
}

func NewStatusHandler(c *gateway.Coordinator) *StatusHandler {
	return &StatusHandler{
		state:    c.State(),
		engine:   c.Engine(),
		queue:    c.Queue(),
		relay:    c.Relay(),
		listener: c.Listener(),
	}
}

type statusResponse struct {
	Drone          drone.Snapshot `json:"drone"`
	UplinkAllowed  bool           `json:"uplink_allowed"`
	QueueLength    int            `json:"queue_length"`
	RecordsSent    int64          `json:"records_sent"`
	RecordsDropped int64          `json:"records_dropped"`
	RecordsLost    int64          `json:"records_lost"`
	UplinkErrors   int64          `json:"uplink_errors"`
	ParseErrors    int64          `json:"parse_errors"`
}

func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Drone:          h.state.Snapshot(),
		UplinkAllowed:  h.state.UplinkAllowed(),
		QueueLength:    h.queue.Len(),
		RecordsSent:    h.relay.Sent(),
		RecordsDropped: h.queue.Dropped(),
		RecordsLost:    h.relay.Lost(),
		UplinkErrors:   h.relay.UplinkErrors(),
		ParseErrors:    h.listener.ParseErrors(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *StatusHandler) HandleSensors(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.engine.Snapshot())
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
