package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all gateway configuration
type Config struct {
	Listen    ListenConfig
	Uplink    UplinkConfig
	Analytics AnalyticsConfig
	Battery   BatteryConfig
	Relay     RelayConfig
	HTTP      HTTPConfig
	Redis     RedisConfig
}

// ListenConfig holds the sensor-facing listener configuration
type ListenConfig struct {
	Addr           string
	PipelineBuffer int
}

// UplinkConfig holds the central-server connection configuration
type UplinkConfig struct {
	ServerAddr  string
	DialTimeout time.Duration
}

// AnalyticsConfig holds rolling-statistics and classifier configuration
type AnalyticsConfig struct {
	WindowSize   int
	ZThreshold   float64
	MinStdDev    float64
	AbsThreshold float64
}

// BatteryConfig holds the flight simulation configuration
type BatteryConfig struct {
	LowThreshold  float64
	HighThreshold float64
	DrainActive   float64
	DrainReturn   float64
	ChargeRate    float64
	ReturnTicks   int
	TickInterval  time.Duration
}

// RelayConfig holds the outbound queue configuration
type RelayConfig struct {
	QueueCapacity int
	ShutdownGrace time.Duration
}

// HTTPConfig holds the observability server configuration
type HTTPConfig struct {
	Addr string
}

// RedisConfig holds the optional snapshot-store configuration; an empty Addr
// disables Redis publishing entirely.
type RedisConfig struct {
	Addr string
	TTL  time.Duration
}

// Load loads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		Listen: ListenConfig{
			Addr:           getEnv("LISTEN_ADDR", ":9000"),
			PipelineBuffer: getEnvInt("PIPELINE_BUFFER", 64),
		},
		Uplink: UplinkConfig{
			ServerAddr:  getEnv("SERVER_ADDR", "127.0.0.1:9100"),
			DialTimeout: getEnvDuration("UPLINK_TIMEOUT", 2*time.Second),
		},
		Analytics: AnalyticsConfig{
			WindowSize:   getEnvInt("WINDOW_SIZE", 20),
			ZThreshold:   getEnvFloat("Z_THRESHOLD", 3.0),
			MinStdDev:    getEnvFloat("MIN_STDDEV", 0.001),
			AbsThreshold: getEnvFloat("ABS_THRESHOLD", 10.0),
		},
		Battery: BatteryConfig{
			LowThreshold:  getEnvFloat("BATTERY_LOW", 20),
			HighThreshold: getEnvFloat("BATTERY_HIGH", 90),
			DrainActive:   getEnvFloat("DRAIN_ACTIVE", 1.0),
			DrainReturn:   getEnvFloat("DRAIN_RETURN", 2.0),
			ChargeRate:    getEnvFloat("CHARGE_RATE", 5.0),
			ReturnTicks:   getEnvInt("RETURN_TICKS", 10),
			TickInterval:  getEnvDuration("TICK_INTERVAL", 1*time.Second),
		},
		Relay: RelayConfig{
			QueueCapacity: getEnvInt("QUEUE_CAPACITY", 100),
			ShutdownGrace: getEnvDuration("SHUTDOWN_GRACE", 5*time.Second),
		},
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", ""),
			TTL:  getEnvDuration("REDIS_TTL", 5*time.Minute),
		},
	}
}

// Helper functions to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
