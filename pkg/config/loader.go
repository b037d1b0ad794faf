// Layer 1: Configuration loading (depends only on types.go)
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/orion-compute/orion-engine/pkg/engine/common"
)

// LoadConfig loads configuration from environment variables and defaults
func LoadConfig() *common.Config {
	cfg := &common.Config{
		// Storage backends
		StoreBackend:    getString("ORION_STORE_BACKEND", "etcd"),
		EtcdEndpoints:   getStringSlice("ORION_ETCD_ENDPOINTS", []string{"localhost:2379"}),
		EtcdDialTimeout: getDuration("ORION_ETCD_TIMEOUT", 10*time.Second),
		RedisAddr:       getString("ORION_REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getString("ORION_REDIS_PASSWORD", ""),
		RedisDB:         getInt("ORION_REDIS_DB", 0),

		// Scheduling
		SchedulerPolicy: getString("ORION_SCHEDULER_POLICY", "fifo"),
		PassInterval:    getDuration("ORION_PASS_INTERVAL", 30*time.Second),

		// HTTP gateway
		GatewayPort: getInt("ORION_GATEWAY_PORT", 8080),

		// Logging
		LogLevel: getString("ORION_LOG_LEVEL", "info"),

		// Features
		EnableMetrics: getBool("ORION_ENABLE_METRICS", true),
	}

	return cfg
}

// Helper functions to read environment variables with type conversion

func getString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getStringSlice: Read comma-separated strings from environment variable
// Example: "localhost:2379,etcd-2:2379" → []string{"localhost:2379", "etcd-2:2379"}
func getStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ============================================================================
// VALIDATION
// ============================================================================

// ValidateConfig: Validate configuration values
// Returns error if any required config is invalid
func ValidateConfig(cfg *common.Config) error {
	if cfg.StoreBackend != "memory" && cfg.StoreBackend != "etcd" {
		return &configError{field: "StoreBackend", reason: "must be 'memory' or 'etcd'"}
	}

	if cfg.StoreBackend == "etcd" && len(cfg.EtcdEndpoints) == 0 {
		return &configError{field: "EtcdEndpoints", reason: "cannot be empty"}
	}

	if cfg.SchedulerPolicy != "fifo" && cfg.SchedulerPolicy != "score" {
		return &configError{field: "SchedulerPolicy", reason: "must be 'fifo' or 'score'"}
	}

	if cfg.PassInterval <= 0 {
		return &configError{field: "PassInterval", reason: "must be positive"}
	}

	if cfg.GatewayPort < 1 || cfg.GatewayPort > 65535 {
		return &configError{field: "GatewayPort", reason: "must be between 1 and 65535"}
	}

	return nil
}

// configError: Custom error type for config validation
type configError struct {
	field  string
	reason string
}

func (e *configError) Error() string {
	return "Config validation error: " + e.field + " " + e.reason
}
