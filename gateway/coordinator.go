package gateway

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"drone-gateway/analytics"
	"drone-gateway/cache"
	"drone-gateway/config"
	"drone-gateway/drone"
	"drone-gateway/relay"
)

var anomaliesDetectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "anomalies_detected_total",
		Help: "Total number of anomalies detected",
	},
	[]string{"sensor_id"},
)

// Coordinator wires the listener, analytics engine, state machine and relay
// into one control loop and owns their lifecycle. Per-sensor and per-send
// failures stay inside their own components; the only error that stops the
// coordinator is a state machine invariant violation.
type Coordinator struct {
	cfg         *config.Config
	engine      *analytics.Engine
	state       *drone.StateMachine
	queue       *relay.Queue
	relay       *relay.Relay
	listener    *Listener
	redisClient *cache.RedisClient
}

func NewCoordinator(cfg *config.Config, sender relay.Sender, redisClient *cache.RedisClient) *Coordinator {
	c := &Coordinator{
		cfg:         cfg,
		redisClient: redisClient,
	}

	c.queue = relay.NewQueue(cfg.Relay.QueueCapacity)

	c.state = drone.NewStateMachine(drone.Config{
		LowThreshold:  cfg.Battery.LowThreshold,
		HighThreshold: cfg.Battery.HighThreshold,
		DrainActive:   cfg.Battery.DrainActive,
		DrainReturn:   cfg.Battery.DrainReturn,
		ChargeRate:    cfg.Battery.ChargeRate,
		ReturnTicks:   cfg.Battery.ReturnTicks,
	}, c.onTransition)

	c.relay = relay.NewRelay(c.queue, sender, c.state)

	onAnomaly := func(sensorID string) {
		anomaliesDetectedTotal.WithLabelValues(sensorID).Inc()
	}

	c.engine = analytics.NewEngine(analytics.EngineConfig{
		WindowSize:     cfg.Analytics.WindowSize,
		PipelineBuffer: cfg.Listen.PipelineBuffer,
		Classifier: analytics.ClassifierConfig{
			ZThreshold:   cfg.Analytics.ZThreshold,
			MinStdDev:    cfg.Analytics.MinStdDev,
			AbsThreshold: cfg.Analytics.AbsThreshold,
		},
	}, redisClient, c.relay.Enqueue, onAnomaly)

	c.listener = NewListener(cfg.Listen.Addr, c.engine)

	return c
}

// Engine, State, Queue, Relay and Listener expose the wired components to
// the status API and to main.
func (c *Coordinator) Engine() *analytics.Engine  { return c.engine }
func (c *Coordinator) State() *drone.StateMachine { return c.state }
func (c *Coordinator) Queue() *relay.Queue        { return c.queue }
func (c *Coordinator) Relay() *relay.Relay        { return c.relay }
func (c *Coordinator) Listener() *Listener        { return c.listener }

// onTransition reacts to flight mode changes. The drone only hears its
// sensors while on station, so leaving ACTIVE pauses the listener and
// arriving back resumes it.
func (c *Coordinator) onTransition(from, to drone.Mode) {
	log.Printf("Drone mode %s -> %s", from, to)

	if from == drone.ModeActive {
		c.listener.Pause()
	}
	if to == drone.ModeActive {
		if err := c.listener.Resume(); err != nil {
			log.Printf("WARNING: failed to resume listener: %v", err)
		}
	}
}

// Run starts the listener and drives the tick loop until the context is
// canceled, then shuts everything down with a bounded flush. The returned
// error is nil on a clean shutdown and the invariant violation otherwise.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.listener.Start(); err != nil {
		return err
	}

	ticker := time.NewTicker(c.cfg.Battery.TickInterval)
	defer ticker.Stop()

	var fatal error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			if err := c.state.Tick(); err != nil {
				// StateInvariantViolation: surface loudly and stop
				log.Printf("FATAL: %v", err)
				fatal = err
				break loop
			}

			c.relay.Drain(ctx)

			if c.redisClient != nil {
				if err := c.redisClient.SaveDroneState(c.state.Snapshot()); err != nil {
					log.Printf("WARNING: failed to save drone state: %v", err)
				}
			}
		}
	}

	c.shutdown()
	return fatal
}

// shutdown stops accepting sensor traffic, drains the pipelines, and gives
// the relay a bounded grace period to flush. Whatever remains queued after
// the grace period is lost and counted.
func (c *Coordinator) shutdown() {
	log.Printf("Gateway shutting down")

	c.listener.Stop()
	c.engine.Close()

	flushCtx, cancel := context.WithTimeout(context.Background(), c.cfg.Relay.ShutdownGrace)
	defer cancel()
	c.relay.Flush(flushCtx)

	log.Printf("Gateway stopped (sent=%d, lost=%d, dropped_readings=%d)",
		c.relay.Sent(), c.relay.Lost(), c.listener.ParseErrors())
}
