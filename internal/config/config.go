package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// BrowserEngine describes one browser engine candidate for synthetic checks.
// Exactly one of ExecPath or RemoteURL should be set: a local executable
// launched per check, or a remote CDP websocket endpoint.
type BrowserEngine struct {
	Name      string `yaml:"name"`
	ExecPath  string `yaml:"exec_path,omitempty"`
	RemoteURL string `yaml:"remote_url,omitempty"`
}

type BrowserConfig struct {
	Engines   []BrowserEngine `yaml:"engines"`
	UserAgent string          `yaml:"user_agent,omitempty"`
	Locale    string          `yaml:"locale,omitempty"`
}

type HeartbeatConfig struct {
	// SweepInterval is how often the lateness sweep runs, in seconds.
	SweepInterval int `yaml:"sweep_interval"`
	// GracePeriod is the multiplier over heartbeat_every before a token
	// counts as late.
	GracePeriod float64 `yaml:"grace_period"`
	// CreateIncidents makes the sweep synthesize down results for late
	// tokens instead of only publishing advisory events.
	CreateIncidents bool `yaml:"create_incidents"`
}

type Config struct {
	Port        string `yaml:"port"`
	DatabaseDSN string `yaml:"database_dsn"`
	LogLevel    string `yaml:"log_level"`
	LogJSON     bool   `yaml:"log_json"`

	// MaxConcurrentChecks bounds in-flight checks across all monitors.
	MaxConcurrentChecks int `yaml:"max_concurrent_checks"`

	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Browser   BrowserConfig   `yaml:"browser"`
}

func defaults() Config {
	return Config{
		Port:                "3000",
		LogLevel:            "info",
		MaxConcurrentChecks: 32,
		Heartbeat: HeartbeatConfig{
			SweepInterval: 10,
			GracePeriod:   1.2,
		},
		Browser: BrowserConfig{
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			Locale:    "en-US",
		},
	}
}

// Load reads the yaml config file if present, then applies environment
// overrides. A missing file is not an error; env-only setups are supported.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnv(&cfg)

	if cfg.Heartbeat.GracePeriod <= 0 {
		cfg.Heartbeat.GracePeriod = 1.2
	}
	if cfg.Heartbeat.SweepInterval <= 0 {
		cfg.Heartbeat.SweepInterval = 10
	}
	if cfg.MaxConcurrentChecks <= 0 {
		cfg.MaxConcurrentChecks = 32
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MAX_CONCURRENT_CHECKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConcurrentChecks = n
		}
	}
	if v := os.Getenv("HEARTBEAT_CREATE_INCIDENTS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Heartbeat.CreateIncidents = b
		}
	}
}
