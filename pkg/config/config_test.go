package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port    int           `env:"TEST_CFG_PORT" envDefault:"8000"`
	Keys    []string      `env:"TEST_CFG_KEYS" envDefault:"123,test_key" envSeparator:","`
	Expiry  time.Duration `env:"TEST_CFG_EXPIRY" envDefault:"20m"`
	Enabled bool          `env:"TEST_CFG_ENABLED" envDefault:"false"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, []string{"123", "test_key"}, cfg.Keys)
	assert.Equal(t, 20*time.Minute, cfg.Expiry)
	assert.False(t, cfg.Enabled)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_KEYS", "alpha,beta,gamma")
	t.Setenv("TEST_CFG_ENABLED", "true")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, cfg.Keys)
	assert.True(t, cfg.Enabled)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "not-a-number")

	var cfg testConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoadFrom_IgnoresProcessEnv(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")

	var cfg testConfig
	require.NoError(t, LoadFrom(&cfg, map[string]string{"TEST_CFG_EXPIRY": "1h"}))

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, time.Hour, cfg.Expiry)
}
