package drone

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batteryLevel = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "drone_battery_level",
			Help: "Current battery level in percent",
		},
	)

	modeTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drone_mode_transitions_total",
			Help: "Total number of flight mode transitions",
		},
		[]string{"from", "to"},
	)
)

// Mode is the drone flight mode. The uplink to the central server is only
// permitted in ACTIVE and CHARGING.
type Mode string

const (
	ModeActive    Mode = "ACTIVE"
	ModeReturning Mode = "RETURNING"
	ModeDocked    Mode = "DOCKED"
	ModeCharging  Mode = "CHARGING"
)

// ErrInvariant marks a state the machine must never reach. It is the one
// error class that is allowed to take the whole gateway down.
var ErrInvariant = errors.New("drone state invariant violated")

// TransitionCallback fires once per mode change, outside the state lock.
type TransitionCallback func(from, to Mode)

// Config carries the battery simulation parameters. Rates are percent per
// tick; ReturnTicks is the simulated travel time back to base.
type Config struct {
	LowThreshold  float64
	HighThreshold float64
	DrainActive   float64
	DrainReturn   float64
	ChargeRate    float64
	ReturnTicks   int
}

// Snapshot is one coherent battery/mode pair, taken under the same lock that
// Tick mutates under. A reader can never observe level and mode from two
// different ticks.
type Snapshot struct {
	BatteryLevel   float64   `json:"battery_level"`
	Mode           Mode      `json:"mode"`
	LastTransition time.Time `json:"last_transition"`
}

// StateMachine simulates battery discharge and the resulting flight cycle
// ACTIVE -> RETURNING -> DOCKED -> CHARGING -> ACTIVE. All mutation happens
// in Tick under one mutex.
type StateMachine struct {
	mu             sync.Mutex
	cfg            Config
	level          float64
	mode           Mode
	lastTransition time.Time
	ticksReturning int
	onTransition   TransitionCallback
}

func NewStateMachine(cfg Config, onTransition TransitionCallback) *StateMachine {
	batteryLevel.Set(100)
	return &StateMachine{
		cfg:            cfg,
		level:          100,
		mode:           ModeActive,
		lastTransition: time.Now().UTC(),
		onTransition:   onTransition,
	}
}

// Tick advances the simulation by one step: battery level and mode are
// recomputed together as one transaction. Returns ErrInvariant if the
// machine reached an undefined mode or an impossible battery level.
func (sm *StateMachine) Tick() error {
	sm.mu.Lock()

	var transitions [][2]Mode
	transition := func(to Mode) {
		transitions = append(transitions, [2]Mode{sm.mode, to})
		sm.mode = to
		sm.lastTransition = time.Now().UTC()
	}

	switch sm.mode {
	case ModeActive:
		sm.level = clamp(sm.level - sm.cfg.DrainActive)
		if sm.level <= sm.cfg.LowThreshold {
			sm.ticksReturning = 0
			transition(ModeReturning)
		}
	case ModeReturning:
		sm.level = clamp(sm.level - sm.cfg.DrainReturn)
		sm.ticksReturning++
		if sm.level <= 0 || sm.ticksReturning >= sm.cfg.ReturnTicks {
			// DOCKED never blocks: charging starts within the same tick
			transition(ModeDocked)
			transition(ModeCharging)
		}
	case ModeDocked:
		transition(ModeCharging)
	case ModeCharging:
		sm.level = clamp(sm.level + sm.cfg.ChargeRate)
		if sm.level >= sm.cfg.HighThreshold {
			transition(ModeActive)
		}
	default:
		sm.mu.Unlock()
		return fmt.Errorf("%w: undefined mode %q", ErrInvariant, sm.mode)
	}

	// clamp handles ordinary float drift; anything still out of range here
	// (including NaN) is a programming defect, not rounding
	if !(sm.level >= 0 && sm.level <= 100) {
		level := sm.level
		sm.mu.Unlock()
		return fmt.Errorf("%w: battery level %.4f outside [0,100]", ErrInvariant, level)
	}

	batteryLevel.Set(sm.level)
	sm.mu.Unlock()

	for _, t := range transitions {
		modeTransitionsTotal.WithLabelValues(string(t[0]), string(t[1])).Inc()
		if sm.onTransition != nil {
			sm.onTransition(t[0], t[1])
		}
	}

	return nil
}

// Snapshot returns the current battery/mode pair atomically.
func (sm *StateMachine) Snapshot() Snapshot {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return Snapshot{
		BatteryLevel:   sm.level,
		Mode:           sm.mode,
		LastTransition: sm.lastTransition,
	}
}

// UplinkAllowed reports whether records may currently be sent upstream.
func (sm *StateMachine) UplinkAllowed() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.mode == ModeActive || sm.mode == ModeCharging
}

func clamp(level float64) float64 {
	if level < 0 {
		return 0
	}
	if level > 100 {
		return 100
	}
	return level
}
