package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "etcd", cfg.StoreBackend)
	assert.Equal(t, []string{"localhost:2379"}, cfg.EtcdEndpoints)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "fifo", cfg.SchedulerPolicy)
	assert.Equal(t, 30*time.Second, cfg.PassInterval)
	assert.Equal(t, 8080, cfg.GatewayPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.EnableMetrics)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("ORION_STORE_BACKEND", "memory")
	t.Setenv("ORION_ETCD_ENDPOINTS", "etcd-1:2379, etcd-2:2379")
	t.Setenv("ORION_SCHEDULER_POLICY", "score")
	t.Setenv("ORION_PASS_INTERVAL", "5s")
	t.Setenv("ORION_GATEWAY_PORT", "9090")
	t.Setenv("ORION_ENABLE_METRICS", "false")

	cfg := LoadConfig()

	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, []string{"etcd-1:2379", "etcd-2:2379"}, cfg.EtcdEndpoints)
	assert.Equal(t, "score", cfg.SchedulerPolicy)
	assert.Equal(t, 5*time.Second, cfg.PassInterval)
	assert.Equal(t, 9090, cfg.GatewayPort)
	assert.False(t, cfg.EnableMetrics)
}

func TestLoadConfigIgnoresMalformedValues(t *testing.T) {
	t.Setenv("ORION_GATEWAY_PORT", "not-a-number")
	t.Setenv("ORION_PASS_INTERVAL", "soon")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.GatewayPort)
	assert.Equal(t, 30*time.Second, cfg.PassInterval)
}

func TestValidateConfig(t *testing.T) {
	valid := LoadConfig()
	require.NoError(t, ValidateConfig(valid))

	tests := []struct {
		name   string
		mutate func()
	}{
		{"bad backend", func() { valid.StoreBackend = "postgres" }},
		{"bad policy", func() { valid.SchedulerPolicy = "priority" }},
		{"zero interval", func() { valid.PassInterval = 0 }},
		{"bad port", func() { valid.GatewayPort = 70000 }},
		{"no etcd endpoints", func() {
			valid.StoreBackend = "etcd"
			valid.EtcdEndpoints = nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid = LoadConfig()
			tt.mutate()
			assert.Error(t, ValidateConfig(valid))
		})
	}
}
