package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Source types
const (
	SourceSlave   = "slave"
	SourceFixture = "fixture"
)

// Config holds server configuration
type Config struct {
	// Server settings
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	// Loading service settings
	Source        string        `yaml:"source"` // "slave" or "fixture"
	SlaveURL      string        `yaml:"slave_url"`
	FixtureFile   string        `yaml:"fixture_file"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	HealthTimeout time.Duration `yaml:"health_timeout"`
	DataTimeout   time.Duration `yaml:"data_timeout"`

	// Local store settings
	DBPath string `yaml:"db_path"`

	// Ranked view settings
	QueryLocation string `yaml:"query_location"`
	QuerySession  string `yaml:"query_session"`

	// Operational settings
	LogLevel                string        `yaml:"log_level"`
	GracefulShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.DBPath == "" {
		return fmt.Errorf("database path is required")
	}

	switch c.Source {
	case SourceSlave:
		if c.SlaveURL == "" {
			return fmt.Errorf("slave URL required when source is 'slave'")
		}
		u, err := url.Parse(c.SlaveURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid slave URL: %q", c.SlaveURL)
		}
	case SourceFixture:
		if c.FixtureFile == "" {
			return fmt.Errorf("fixture file required when source is 'fixture'")
		}
	default:
		return fmt.Errorf("source must be 'slave' or 'fixture'")
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	if c.HealthTimeout <= 0 || c.DataTimeout <= 0 {
		return fmt.Errorf("request timeouts must be positive")
	}

	if c.QueryLocation == "" || c.QuerySession == "" {
		return fmt.Errorf("query location and session are required")
	}

	return nil
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Port:                    5001,
		Host:                    "0.0.0.0",
		Source:                  SourceSlave,
		SlaveURL:                "http://localhost:5000",
		PollInterval:            5 * time.Second,
		HealthTimeout:           5 * time.Second,
		DataTimeout:             10 * time.Second,
		DBPath:                  "/home/transformdata.db",
		QueryLocation:           "Melbourne",
		QuerySession:            "Race",
		LogLevel:                "info",
		GracefulShutdownTimeout: 30 * time.Second,
	}
}

// LoadEnvFiles loads .env style files into the process environment.
// Variables already set are not overridden and missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file named by
// RELAY_CONFIG (if any) and environment variables, in that order
func Load(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()

	if path, ok := lookup("RELAY_CONFIG"); ok && path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return cfg, err
		}
	}

	if err := cfg.ApplyEnv(lookup); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// LoadFile overlays values from a YAML file
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return nil
}

// ApplyEnv overlays values from environment variables
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	stringVars := map[string]*string{
		"HOST":           &c.Host,
		"SOURCE":         &c.Source,
		"SLAVE_URL":      &c.SlaveURL,
		"FIXTURE_FILE":   &c.FixtureFile,
		"DB_PATH":        &c.DBPath,
		"QUERY_LOCATION": &c.QueryLocation,
		"QUERY_SESSION":  &c.QuerySession,
		"LOG_LEVEL":      &c.LogLevel,
	}
	for key, dst := range stringVars {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"POLL_INTERVAL":    &c.PollInterval,
		"HEALTH_TIMEOUT":   &c.HealthTimeout,
		"DATA_TIMEOUT":     &c.DataTimeout,
		"SHUTDOWN_TIMEOUT": &c.GracefulShutdownTimeout,
	}
	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		c.Port = port
	}

	return nil
}
