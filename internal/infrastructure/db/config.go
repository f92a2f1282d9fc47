package db

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the persistence section of the service's YAML config: the
// Postgres connection plus the optional shared Redis cache tier.
type AppConfig struct {
	Database Config       `yaml:"database"`
	Cache    CacheSection `yaml:"cache"`
}

// CacheSection mirrors data/cache's Redis selection knobs so a deployment
// can pin them in YAML instead of env vars.
type CacheSection struct {
	Redis struct {
		Addr              string `yaml:"addr"`
		DB                int    `yaml:"db"`
		TLS               bool   `yaml:"tls"`
		DefaultTTLSeconds int    `yaml:"default_ttl_seconds"`
	} `yaml:"redis"`
}

// LoadAppConfig reads the YAML file when present, then applies environment
// overrides and defaults. DATABASE_URL (spec'd env surface) or PG_DSN both
// select and enable the Postgres connection.
func LoadAppConfig(configPath string) (*AppConfig, error) {
	var config AppConfig

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file %s: %w", configPath, err)
			}
			if err := yaml.Unmarshal(data, &config); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
			}
		}
	}

	applyEnvOverrides(&config.Database)
	applyDefaults(&config.Database)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyEnvOverrides(config *Config) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" && strings.HasPrefix(dsn, "postgres") {
		config.DSN = dsn
		config.Enabled = true
	}
	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		config.DSN = dsn
		config.Enabled = true
	}
	if enabled := os.Getenv("PG_ENABLED"); enabled != "" {
		if val, err := strconv.ParseBool(enabled); err == nil {
			config.Enabled = val
		}
	}
	if maxOpen := os.Getenv("PG_MAX_OPEN_CONNS"); maxOpen != "" {
		if val, err := strconv.Atoi(maxOpen); err == nil {
			config.MaxOpenConns = val
		}
	}
	if timeout := os.Getenv("PG_QUERY_TIMEOUT"); timeout != "" {
		if val, err := time.ParseDuration(timeout); err == nil {
			config.QueryTimeout = val
		}
	}
}

func applyDefaults(config *Config) {
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 10
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 5
	}
	if config.ConnMaxLifetime == 0 {
		config.ConnMaxLifetime = 30 * time.Minute
	}
	if config.ConnMaxIdleTime == 0 {
		config.ConnMaxIdleTime = 5 * time.Minute
	}
	if config.QueryTimeout == 0 {
		config.QueryTimeout = 30 * time.Second
	}
}

// Validate rejects configurations NewManager would fail on anyway, with a
// clearer message.
func (c *AppConfig) Validate() error {
	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required when database is enabled")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("max_idle_conns cannot exceed max_open_conns")
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("query_timeout must be positive")
	}
	return nil
}
