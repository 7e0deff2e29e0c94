package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration, loaded from yaml with
// environment-variable overrides for deployment-specific values.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Replay struct {
		TapePath string   `yaml:"tape_path"`
		Markets  []string `yaml:"markets"` // "VENUE:SYMBOL"
	} `yaml:"replay"`

	Feed struct {
		Enabled bool   `yaml:"enabled"`
		WSURL   string `yaml:"ws_url"`
	} `yaml:"feed"`

	Analytics struct {
		BarIntervalSec int `yaml:"bar_interval_sec"`
		DepthLevels    int `yaml:"depth_levels"`
	} `yaml:"analytics"`

	Storage struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Replay.TapePath == "" && !c.Feed.Enabled {
		return fmt.Errorf("either replay.tape_path or feed must be configured")
	}
	if len(c.Replay.Markets) == 0 {
		return fmt.Errorf("at least one market is required")
	}
	if c.Feed.Enabled {
		if !hasPrefix(c.Feed.WSURL, "ws://") && !hasPrefix(c.Feed.WSURL, "wss://") {
			return fmt.Errorf("invalid feed WS URL: %s", c.Feed.WSURL)
		}
	}
	if c.Analytics.BarIntervalSec < 0 {
		return fmt.Errorf("bar interval must not be negative")
	}
	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv overrides configuration values from the environment
// when present.
func overrideWithEnv(cfg *Config) {
	if path := os.Getenv("TAPEBOOK_TAPE"); path != "" {
		cfg.Replay.TapePath = path
	}
	if url := os.Getenv("TAPEBOOK_FEED_URL"); url != "" {
		cfg.Feed.WSURL = url
	}
	if path := os.Getenv("TAPEBOOK_DB"); path != "" {
		cfg.Storage.Path = path
	}
	if level := os.Getenv("TAPEBOOK_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
