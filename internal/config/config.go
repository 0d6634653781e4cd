// Package config loads process configuration from the environment and the
// token settings file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jason-s-yu/shootingstars/internal/auth"
	"github.com/jason-s-yu/shootingstars/internal/database"
	"github.com/jason-s-yu/shootingstars/internal/display"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the server configuration.
type Config struct {
	Port           int      `env:"PORT" envDefault:"8080"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	SettingsPath   string   `env:"SETTINGS_PATH" envDefault:"settings.yaml"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"memory"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"shootingstars.db"`
	Postgres      database.PostgresConfig

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	ChangeChannel string `env:"CHANGE_CHANNEL" envDefault:"shootingstars_changes"`

	RateLimitMax    int           `env:"RATE_LIMIT_MAX" envDefault:"10"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1s"`

	LightCount        int           `env:"LIGHT_COUNT" envDefault:"10"`
	InputMaxAge       time.Duration `env:"INPUT_MAX_AGE" envDefault:"5s"`
	InputMaxCount     int           `env:"INPUT_MAX_COUNT" envDefault:"100"`
	PaintMaxMovements int           `env:"PAINT_MAX_MOVEMENTS" envDefault:"10"`
	PaintMaxPainters  int           `env:"PAINT_MAX_PAINTERS" envDefault:"10"`
	MaxVelocities     int           `env:"PAINT_MAX_VELOCITIES" envDefault:"100"`
	PresenceMaxEvents int           `env:"PRESENCE_MAX_EVENTS" envDefault:"10"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses Config from the environment and checks it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case DriverMemory, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("config: rate limit must be positive")
	}
	if c.LightCount < 0 {
		return fmt.Errorf("config: LIGHT_COUNT must not be negative")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Addr is the listen address.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// Limits returns the event log bounds.
func (c Config) Limits() display.Limits {
	return display.Limits{
		LightCount:        c.LightCount,
		InputMaxAge:       c.InputMaxAge,
		InputMaxCount:     c.InputMaxCount,
		PaintMaxMovements: c.PaintMaxMovements,
		PaintMaxPainters:  c.PaintMaxPainters,
		MaxVelocities:     c.MaxVelocities,
		PresenceMaxEvents: c.PresenceMaxEvents,
	}
}

// NewLogger builds the process logger at the configured level.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}

// Settings is the token file. Each map goes from a token to the settings
// returned to its holder; every entry must carry an integer id.
//
//	controller_tokens:
//	  s3cret: {id: 1}
//	presence_tokens:
//	  north-window: {id: 1, rows: 24, cols: 32}
type Settings struct {
	ControllerTokens map[string]map[string]any `yaml:"controller_tokens"`
	PresenceTokens   map[string]map[string]any `yaml:"presence_tokens"`
}

// LoadSettings reads the token file at path. A missing file yields empty
// registries, so every gated method rejects its callers.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Settings{}, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings decodes a token file.
func ParseSettings(data []byte) (Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	return s, nil
}

// Controllers builds the registry of blocks controller tokens.
func (s Settings) Controllers() (*auth.Registry, error) {
	return registry("controller_tokens", s.ControllerTokens)
}

// Presence builds the registry of presence installation tokens.
func (s Settings) Presence() (*auth.Registry, error) {
	return registry("presence_tokens", s.PresenceTokens)
}

func registry(section string, entries map[string]map[string]any) (*auth.Registry, error) {
	tenants := make(map[string]auth.Tenant, len(entries))
	for token, cfg := range entries {
		if token == "" {
			return nil, fmt.Errorf("%s: empty token", section)
		}
		id, ok := cfg["id"].(int)
		if !ok {
			return nil, fmt.Errorf("%s: token entry needs an integer id", section)
		}
		rest := make(map[string]any, len(cfg))
		for k, v := range cfg {
			if k != "id" {
				rest[k] = v
			}
		}
		tenants[token] = auth.Tenant{ID: id, Config: rest}
	}
	return auth.NewRegistry(tenants), nil
}
