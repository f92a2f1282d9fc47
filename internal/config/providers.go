package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ProvidersConfig is the provider-operations file (configs/providers.yaml):
// one entry per upstream API plus the budget and global sections shared by
// all of them.
type ProvidersConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
	Budget    BudgetConfig              `yaml:"budget"`
	Global    GlobalConfig              `yaml:"global"`
}

// ProviderConfig tunes one upstream provider's transport middleware.
type ProviderConfig struct {
	Host        string        `yaml:"host"`
	RPS         int           `yaml:"rps"`
	Burst       int           `yaml:"burst"`
	DailyBudget int           `yaml:"daily_budget"` // max requests per UTC day
	TTLSecs     int           `yaml:"ttl_secs"`     // GET response cache lifetime, 0 disables
	BackoffMS   BackoffConfig `yaml:"backoff_ms"`
	Circuit     CircuitConfig `yaml:"circuit"`
	Enabled     bool          `yaml:"enabled"`
	BaseURL     string        `yaml:"base_url"`
}

// BackoffConfig shapes retry backoff in milliseconds.
type BackoffConfig struct {
	Base   int  `yaml:"base"`
	Max    int  `yaml:"max"`
	Jitter bool `yaml:"jitter"`
}

// CircuitConfig tunes the provider's breaker and per-request timeout.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold"` // consecutive failures that open the circuit
	SuccessThreshold int `yaml:"success_threshold"` // probe successes that close it
	TimeoutMS        int `yaml:"timeout_ms"`        // per-request deadline
}

// BudgetConfig is shared budget policy: when to warn and when the daily
// counters roll over.
type BudgetConfig struct {
	WarnThreshold float64 `yaml:"warn_threshold"`
	ResetHour     int     `yaml:"reset_hour"`
}

// GlobalConfig applies to every provider transport.
type GlobalConfig struct {
	MaxConcurrentPerHost int    `yaml:"max_concurrent_per_host"`
	UserAgent            string `yaml:"user_agent"`
}

// LoadProvidersConfig reads and validates the provider operations file.
func LoadProvidersConfig(configPath string) (*ProvidersConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read providers config: %w", err)
	}

	var config ProvidersConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse providers config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid providers config: %w", err)
	}
	return &config, nil
}

// DefaultProvidersConfig returns a working configuration for the adapters in
// internal/providers, used when no providers.yaml is present (local dev,
// quickstart demo, CI) so the service is runnable out of the box.
func DefaultProvidersConfig() *ProvidersConfig {
	std := func(host, baseURL string, rps, burst, dailyBudget, ttlSecs int) ProviderConfig {
		return ProviderConfig{
			Host:        host,
			BaseURL:     baseURL,
			RPS:         rps,
			Burst:       burst,
			DailyBudget: dailyBudget,
			TTLSecs:     ttlSecs,
			Enabled:     true,
			BackoffMS:   BackoffConfig{Base: 500, Max: 8000, Jitter: true},
			Circuit:     CircuitConfig{FailureThreshold: 5, SuccessThreshold: 2, TimeoutMS: 8000},
		}
	}
	return &ProvidersConfig{
		Budget: BudgetConfig{WarnThreshold: 0.8, ResetHour: 0},
		Global: GlobalConfig{MaxConcurrentPerHost: 4, UserAgent: "MarketIntelAnalytics/1.0"},
		Providers: map[string]ProviderConfig{
			"yahoo":      std("query1.finance.yahoo.com", "https://query1.finance.yahoo.com", 5, 10, 20000, 30),
			"yahoo_rss":  std("feeds.finance.yahoo.com", "https://feeds.finance.yahoo.com", 2, 4, 5000, 300),
			"coingecko":  std("api.coingecko.com", "https://api.coingecko.com", 2, 4, 8000, 60),
			"finnhub":    std("finnhub.io", "https://finnhub.io", 1, 2, 1000, 30),
			"twelvedata": std("api.twelvedata.com", "https://api.twelvedata.com", 1, 2, 800, 30),
			"gdelt":      std("api.gdeltproject.org", "https://api.gdeltproject.org", 1, 2, 2000, 120),
		},
	}
}

// Validate checks the whole file for internally-consistent values.
func (c *ProvidersConfig) Validate() error {
	if c.Budget.WarnThreshold <= 0 || c.Budget.WarnThreshold > 1 {
		return fmt.Errorf("budget warn_threshold must be in (0, 1], got %f", c.Budget.WarnThreshold)
	}
	if c.Budget.ResetHour < 0 || c.Budget.ResetHour > 23 {
		return fmt.Errorf("budget reset_hour must be 0-23, got %d", c.Budget.ResetHour)
	}
	if c.Global.MaxConcurrentPerHost <= 0 {
		return fmt.Errorf("global max_concurrent_per_host must be positive, got %d", c.Global.MaxConcurrentPerHost)
	}
	if c.Global.UserAgent == "" {
		return fmt.Errorf("global user_agent cannot be empty")
	}
	for name, provider := range c.Providers {
		if err := provider.Validate(); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
	}
	return nil
}

// Validate checks one provider entry.
func (p *ProviderConfig) Validate() error {
	if p.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if p.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}
	if p.RPS <= 0 {
		return fmt.Errorf("rps must be positive, got %d", p.RPS)
	}
	if p.Burst < p.RPS {
		return fmt.Errorf("burst (%d) must be >= rps (%d)", p.Burst, p.RPS)
	}
	if p.DailyBudget <= 0 {
		return fmt.Errorf("daily_budget must be positive, got %d", p.DailyBudget)
	}
	if p.TTLSecs < 0 {
		return fmt.Errorf("ttl_secs cannot be negative, got %d", p.TTLSecs)
	}
	if p.BackoffMS.Base <= 0 {
		return fmt.Errorf("backoff_ms.base must be positive, got %d", p.BackoffMS.Base)
	}
	if p.BackoffMS.Max <= p.BackoffMS.Base {
		return fmt.Errorf("backoff_ms.max (%d) must be > base (%d)", p.BackoffMS.Max, p.BackoffMS.Base)
	}
	if p.Circuit.FailureThreshold <= 0 || p.Circuit.SuccessThreshold <= 0 {
		return fmt.Errorf("circuit thresholds must be positive")
	}
	if p.Circuit.TimeoutMS <= 0 {
		return fmt.Errorf("circuit timeout_ms must be positive, got %d", p.Circuit.TimeoutMS)
	}
	return nil
}

// GetCacheTTL returns the response-cache lifetime.
func (p *ProviderConfig) GetCacheTTL() time.Duration {
	return time.Duration(p.TTLSecs) * time.Second
}

// GetRequestTimeout returns the per-request deadline.
func (p *ProviderConfig) GetRequestTimeout() time.Duration {
	return time.Duration(p.Circuit.TimeoutMS) * time.Millisecond
}

// GetProvider looks up one provider entry by name.
func (c *ProvidersConfig) GetProvider(name string) (*ProviderConfig, bool) {
	config, exists := c.Providers[name]
	return &config, exists
}

// IsProviderEnabled reports whether a provider exists and is enabled.
func (c *ProvidersConfig) IsProviderEnabled(name string) bool {
	if config, exists := c.Providers[name]; exists {
		return config.Enabled
	}
	return false
}
