package gateway

import (
	"bufio"
	"encoding/json"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"drone-gateway/analytics"
	"drone-gateway/models"
)

var (
	readingsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_readings_received_total",
			Help: "Total number of valid sensor readings received",
		},
		[]string{"sensor_id"},
	)

	parseErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_parse_errors_total",
			Help: "Total number of malformed sensor frames dropped",
		},
	)

	sensorDisconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_sensor_disconnects_total",
			Help: "Total number of sensor connections closed",
		},
	)

	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_active_connections",
			Help: "Current number of open sensor connections",
		},
	)
)

// Listener accepts sensor node connections and feeds parsed readings into
// the analytics engine. One goroutine per connection; a malformed frame is
// logged and dropped while the connection stays open, and one sensor's
// failure never touches another's stream.
//
// The listener can be paused: while the drone is away from the field
// (RETURNING/DOCKED/CHARGING) the socket is closed and live connections are
// dropped, and Resume reopens it when the drone is back on station.
type Listener struct {
	addr   string
	engine *analytics.Engine

	mu        sync.Mutex
	ln        net.Listener
	conns     map[string]net.Conn
	accepting bool
	stopped   bool
	wg        sync.WaitGroup
	acceptWG  sync.WaitGroup

	parseErrors atomic.Int64
}

func NewListener(addr string, engine *analytics.Engine) *Listener {
	return &Listener{
		addr:   addr,
		engine: engine,
		conns:  make(map[string]net.Conn),
	}
}

// Start binds the listening socket and begins accepting connections.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return net.ErrClosed
	}
	return l.openLocked()
}

func (l *Listener) openLocked() error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}
	// pin the resolved address so Resume rebinds the same port
	l.addr = ln.Addr().String()
	l.ln = ln
	l.accepting = true
	log.Printf("Listener on %s", ln.Addr())

	l.acceptWG.Add(1)
	go l.acceptLoop(ln)
	return nil
}

// Addr returns the bound listen address, or the configured one before Start.
func (l *Listener) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		return l.ln.Addr().String()
	}
	return l.addr
}

func (l *Listener) acceptLoop(ln net.Listener) {
	defer l.acceptWG.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			// socket closed by Pause or Stop
			return
		}

		l.mu.Lock()
		if !l.accepting || l.stopped {
			l.mu.Unlock()
			conn.Close()
			continue
		}
		connID := uuid.NewString()
		l.conns[connID] = conn
		l.wg.Add(1)
		l.mu.Unlock()

		activeConnections.Inc()
		go l.handle(connID, conn)
	}
}

func (l *Listener) handle(connID string, conn net.Conn) {
	defer l.wg.Done()
	defer func() {
		conn.Close()
		l.mu.Lock()
		delete(l.conns, connID)
		l.mu.Unlock()
		activeConnections.Dec()
		sensorDisconnectsTotal.Inc()
	}()

	sensorID := ""
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var reading models.SensorReading
		if err := json.Unmarshal(line, &reading); err != nil {
			l.parseErrors.Add(1)
			parseErrorsTotal.Inc()
			log.Printf("WARNING: dropping malformed frame on conn %s: %v", connID, err)
			continue
		}
		if err := reading.Validate(); err != nil {
			l.parseErrors.Add(1)
			parseErrorsTotal.Inc()
			log.Printf("WARNING: dropping invalid reading on conn %s: %v", connID, err)
			continue
		}

		sensorID = reading.SensorID
		readingsReceivedTotal.WithLabelValues(reading.SensorID).Inc()

		// blocks when the sensor's pipeline is saturated; the sensor's
		// own TCP stream absorbs the backpressure
		l.engine.Process(reading)
	}

	if sensorID != "" {
		log.Printf("Sensor %s disconnected (conn %s)", sensorID, connID)
	}
}

// Pause closes the listening socket and all live sensor connections. New
// connection attempts are refused until Resume.
func (l *Listener) Pause() {
	l.mu.Lock()
	if !l.accepting || l.stopped {
		l.mu.Unlock()
		return
	}
	l.accepting = false
	ln := l.ln
	l.ln = nil
	for _, conn := range l.conns {
		conn.Close()
	}
	l.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	log.Printf("Listener paused")
}

// Resume reopens the listening socket after a Pause.
func (l *Listener) Resume() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.accepting || l.stopped {
		return nil
	}
	return l.openLocked()
}

// ParseErrors reports how many inbound frames were dropped as malformed.
func (l *Listener) ParseErrors() int64 {
	return l.parseErrors.Load()
}

// Stop shuts the listener down for good and waits for every connection
// handler to finish, so no reading is in flight afterwards.
func (l *Listener) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	l.accepting = false
	ln := l.ln
	l.ln = nil
	for _, conn := range l.conns {
		conn.Close()
	}
	l.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	l.acceptWG.Wait()
	l.wg.Wait()
}
