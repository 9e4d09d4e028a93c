package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benschem/safelyspend-sub000/config"
	"github.com/benschem/safelyspend-sub000/engine"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))

	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)
	assert.Equal(t, engine.DefaultDivergenceFloor, cfg.DivergenceFloor())
}

func TestLoad_OverridesOnlyWhatIsSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 9090

[engine]
divergence_floor_cents = 2500

[engine.period]
type = "pay_cycle"
start_day = 15
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "safelyspend.db", cfg.Server.DBPath)
	assert.Equal(t, engine.Cents(2500), cfg.DivergenceFloor())
	assert.Equal(t, engine.PeriodConfig{Type: engine.PeriodPayCycle, StartDay: 15}, cfg.Engine.Period)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nport="), 0o600))

	_, err := config.Load(path)

	assert.ErrorContains(t, err, "parsing config")
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := config.DefaultConfig()
	cfg.Log.Level = "debug"

	require.NoError(t, config.Save(path, cfg))
	loaded, err := config.Load(path)

	require.NoError(t, err)
	assert.Equal(t, "debug", loaded.Log.Level)
}

func TestPath_FromEnv(t *testing.T) {
	t.Setenv(config.EnvPath, "/tmp/custom.toml")

	assert.Equal(t, "/tmp/custom.toml", config.Path())
}

func TestMonitorInterval(t *testing.T) {
	cfg := config.DefaultConfig()

	d, err := cfg.MonitorInterval()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d)

	cfg.Server.MonitorInterval = "0"
	d, err = cfg.MonitorInterval()
	require.NoError(t, err)
	assert.Zero(t, d)

	cfg.Server.MonitorInterval = "hourly"
	_, err = cfg.MonitorInterval()
	assert.ErrorContains(t, err, "monitor_interval")
}
