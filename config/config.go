// Package config loads the TOML configuration shared by the server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/benschem/safelyspend-sub000/engine"
)

// EnvPath names the environment variable pointing at the config file.
const EnvPath = "SAFELYSPEND_CONFIG"

// Config holds all safelyspend configuration.
type Config struct {
	Server ServerConfig `toml:"server"`
	Engine EngineConfig `toml:"engine"`
	Log    LogConfig    `toml:"log"`
}

// ServerConfig holds HTTP server and storage settings.
type ServerConfig struct {
	Port           int      `toml:"port"`
	DBPath         string   `toml:"db_path"`
	AllowedOrigins []string `toml:"allowed_origins"`

	// MonitorInterval is a Go duration ("1h", "15m"). "0" disables the
	// divergence monitor.
	MonitorInterval string `toml:"monitor_interval"`
}

// EngineConfig holds projection tuning.
type EngineConfig struct {
	DivergenceFloorCents int64               `toml:"divergence_floor_cents"`
	Period               engine.PeriodConfig `toml:"period"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			DBPath:          "safelyspend.db",
			AllowedOrigins:  []string{"http://localhost:*", "http://127.0.0.1:*"},
			MonitorInterval: "1h",
		},
		Engine: EngineConfig{
			DivergenceFloorCents: int64(engine.DefaultDivergenceFloor),
			Period:               engine.PeriodConfig{Type: engine.PeriodCalendarMonth},
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// DivergenceFloor is the configured floor as engine cents.
func (c Config) DivergenceFloor() engine.Cents {
	return engine.Cents(c.Engine.DivergenceFloorCents)
}

// MonitorInterval parses the monitor interval. Empty means disabled.
func (c Config) MonitorInterval() (time.Duration, error) {
	if c.Server.MonitorInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Server.MonitorInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid monitor_interval: %w", err)
	}
	return d, nil
}

// Dir returns the XDG-compliant config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "safelyspend")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "safelyspend")
}

// Path returns the config file path: $SAFELYSPEND_CONFIG, else the XDG one.
func Path() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the config file at path, returning defaults if it doesn't exist.
// An empty path means Path().
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = Path()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to path, creating its directory.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
