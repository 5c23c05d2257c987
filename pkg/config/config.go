package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the self-monitoring settings of the bridge.
// It's populated from environment variables.
type Config struct {
	Enabled                   bool
	DebugEndpoint             string
	ProfilingEnabled          bool
	ProfilingLatencyThreshold time.Duration
	ProfilingDuration         time.Duration `json:"profiling_duration_s"`
	ProfilingCooldown         time.Duration `json:"profiling_cooldown_s"`
	ProfilingDir              string        `json:"profiling_dir"`
	ErrorBufferSize           int           `json:"error_buffer_size"`
	NPlusOneEnabled           bool
	NPlusOneThreshold         int
}

// Load reads configuration from environment variables and returns a Config struct.
func Load() *Config {
	return &Config{
		Enabled:                   getEnvAsBool("BRIDGE_STATS_ENABLED", true),
		DebugEndpoint:             getEnv("BRIDGE_DEBUG_ENDPOINT", "/debug/bridge"),
		ProfilingEnabled:          getEnvAsBool("BRIDGE_PROFILING_ENABLED", false),
		ProfilingLatencyThreshold: getEnvAsDurationMs("BRIDGE_PROFILING_LATENCY_THRESHOLD_MS", 2*time.Second),
		ProfilingDuration:         getEnvAsDuration("BRIDGE_PROFILING_DURATION_S", 10*time.Second),
		ProfilingCooldown:         getEnvAsDuration("BRIDGE_PROFILING_COOLDOWN_S", 300*time.Second), // 5 minutes
		ProfilingDir:              getEnv("BRIDGE_PROFILING_DIR", ""),
		ErrorBufferSize:           getEnvAsInt("BRIDGE_ERROR_BUFFER_SIZE", 100),
		NPlusOneEnabled:           getEnvAsBool("BRIDGE_NPLUSONE_ENABLED", true),
		NPlusOneThreshold:         getEnvAsInt("BRIDGE_NPLUSONE_THRESHOLD", 1000),
	}
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsBool reads a boolean environment variable or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsInt reads an integer environment variable or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration reads a duration environment variable (in seconds) or returns a default value.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return time.Duration(intValue) * time.Second
		}
	}
	return defaultValue
}

// getEnvAsDurationMs reads a duration environment variable (in milliseconds) or returns a default value.
func getEnvAsDurationMs(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return time.Duration(intValue) * time.Millisecond
		}
	}
	return defaultValue
}
