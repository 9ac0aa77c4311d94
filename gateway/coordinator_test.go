package gateway

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drone-gateway/config"
	"drone-gateway/drone"
	"drone-gateway/models"
)

type captureSender struct {
	mu   sync.Mutex
	sent []models.AggregatedRecord
}

func (s *captureSender) Send(record models.AggregatedRecord) error {
	s.mu.Lock()
	s.sent = append(s.sent, record)
	s.mu.Unlock()
	return nil
}

func (s *captureSender) Close() error { return nil }

func (s *captureSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func fastConfig() *config.Config {
	return &config.Config{
		Listen: config.ListenConfig{
			Addr:           "127.0.0.1:0",
			PipelineBuffer: 16,
		},
		Analytics: config.AnalyticsConfig{
			WindowSize:   2,
			ZThreshold:   3.0,
			MinStdDev:    0.001,
			AbsThreshold: 10.0,
		},
		Battery: config.BatteryConfig{
			LowThreshold:  20,
			HighThreshold: 90,
			DrainActive:   5.0,
			DrainReturn:   2.0,
			ChargeRate:    10.0,
			ReturnTicks:   3,
			TickInterval:  10 * time.Millisecond,
		},
		Relay: config.RelayConfig{
			QueueCapacity: 32,
			ShutdownGrace: 500 * time.Millisecond,
		},
	}
}

func TestCoordinatorEndToEnd(t *testing.T) {
	sender := &captureSender{}
	c := NewCoordinator(fastConfig(), sender, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// listener comes up inside Run
	var conn net.Conn
	require.Eventually(t, func() bool {
		var err error
		conn, err = net.DialTimeout("tcp", c.Listener().Addr(), 100*time.Millisecond)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	defer conn.Close()

	// two readings fill the window, the aggregate is drained while ACTIVE
	for i := 0; i < 2; i++ {
		line := fmt.Sprintf(`{"sensor_id":"s1","timestamp":"2026-08-26T12:00:0%dZ","value":21.0,"unit":"celsius"}`, i)
		_, err := conn.Write([]byte(line + "\n"))
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return sender.count() >= 1
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestCoordinatorPausesListenerWhileReturning(t *testing.T) {
	sender := &captureSender{}
	c := NewCoordinator(fastConfig(), sender, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", c.Listener().Addr(), 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return true
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	addr := c.Listener().Addr()

	// 5%/tick from 100 hits the low threshold after 16 ticks
	require.Eventually(t, func() bool {
		return c.State().Snapshot().Mode != drone.ModeActive
	}, 3*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
		}
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)

	// the drone charges back up and reopens for sensor traffic
	require.Eventually(t, func() bool {
		return c.State().Snapshot().Mode == drone.ModeActive
	}, 3*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return true
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestCoordinatorShutdownFlushesQueue(t *testing.T) {
	sender := &captureSender{}
	cfg := fastConfig()
	// no ticks during the test: records can only leave via the shutdown flush
	cfg.Battery.TickInterval = time.Hour
	c := NewCoordinator(cfg, sender, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	var conn net.Conn
	require.Eventually(t, func() bool {
		var err error
		conn, err = net.DialTimeout("tcp", c.Listener().Addr(), 100*time.Millisecond)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	for i := 0; i < 3; i++ {
		line := fmt.Sprintf(`{"sensor_id":"s1","timestamp":"2026-08-26T12:00:0%dZ","value":21.0,"unit":"celsius"}`, i)
		_, err := conn.Write([]byte(line + "\n"))
		require.NoError(t, err)
	}
	conn.Close()

	// window of 2: readings 2 and 3 each produce a queued record
	require.Eventually(t, func() bool {
		return c.Queue().Len() == 2
	}, 3*time.Second, 10*time.Millisecond)
	require.Zero(t, sender.count())

	cancel()
	require.NoError(t, <-done)

	// shutdown flush bypasses the gate and delivers everything queued
	assert.Equal(t, 2, sender.count())
	assert.Equal(t, 0, c.Queue().Len())
	assert.Equal(t, int64(0), c.Relay().Lost())
}
