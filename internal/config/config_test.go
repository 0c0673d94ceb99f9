package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartridge/dinosweep/internal/game"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30, cfg.Grid().Total())
	assert.Equal(t, time.Second, cfg.ActorOptions().StartDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.ActorOptions().RetryDelay)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty axis", func(c *Config) { c.DuckThresholds = nil }},
		{"no tests", func(c *Config) { c.Tests = 0 }},
		{"missing address", func(c *Config) { c.EnvAddr = "" }},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }},
		{"missing dsn", func(c *Config) { c.DBDSN = "" }},
		{"negative delay", func(c *Config) { c.RetryDelay = -time.Second }},
		{"unknown policy", func(c *Config) { c.Policy = "greedy" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"nats without subject", func(c *Config) { c.NATSURL = "nats://localhost:4222"; c.NATSSubject = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), game.ErrConfiguration)
		})
	}
}

func TestSimulateNeedsNoAddress(t *testing.T) {
	cfg := Default()
	cfg.EnvAddr = ""
	cfg.Simulate = true
	assert.NoError(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DINO_JUMP_THRESHOLDS", "60,70")
	t.Setenv("DINO_TESTS", "5")
	t.Setenv("DINO_START_DELAY", "250ms")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, []float64{60, 70}, cfg.JumpThresholds)
	assert.Equal(t, 5, cfg.Tests)
	assert.Equal(t, 250*time.Millisecond, cfg.StartDelay)
	assert.Equal(t, []float64{75}, cfg.DuckThresholds)
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("DINO_JUMP_DELTAS", "0.5")
	t.Setenv("DINO_TESTS", "4")

	v := viper.New()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, RegisterFlags(flags, v))
	require.NoError(t, flags.Parse([]string{"--jump-deltas=0.02,0.03", "--simulate", "--log-level=debug"}))

	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.02, 0.03}, cfg.JumpDeltas)
	assert.Equal(t, 4, cfg.Tests)
	assert.True(t, cfg.Simulate)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, Default().JumpThresholds, cfg.JumpThresholds)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.yaml")
	content := "jump_thresholds: [80, 90]\nretry_delay: 2s\ndb_driver: postgres\ndb_dsn: postgres://localhost/dino\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("DINO_DB_DSN", "postgres://override/dino")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, []float64{80, 90}, cfg.JumpThresholds)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "postgres://override/dino", cfg.DBDSN)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("DINO_TESTS", "0")
	_, err := Load(viper.New(), "")
	assert.ErrorIs(t, err, game.ErrConfiguration)

	_, err = Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, game.ErrConfiguration)
}
