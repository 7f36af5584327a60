package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"promptcanvas/internal/logging"
)

// Config holds all canvasd configuration.
type Config struct {
	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Image search and validation
	Images ImagesConfig `yaml:"images"`

	// Turn dispatch policy
	Dispatch DispatchConfig `yaml:"dispatch"`

	// HTTP surface
	Server ServerConfig `yaml:"server"`

	// Conversational sessions
	Sessions SessionsConfig `yaml:"sessions"`

	// Logging
	Logging logging.Config `yaml:"logging"`

	// Prometheus exposition
	Metrics MetricsConfig `yaml:"metrics"`
}

// DispatchConfig configures the per-turn dispatch policy.
type DispatchConfig struct {
	MaxCallsPerTurn    int  `yaml:"max_calls_per_turn"`
	StrictUnknownTools bool `yaml:"strict_unknown_tools"` // abort the turn on an unknown tool name
}

// SessionsConfig configures the model session store.
type SessionsConfig struct {
	TTL         string `yaml:"ttl"` // idle expiry
	MaxSessions int    `yaml:"max_sessions"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "gemini",
			Model:       "gemini-2.5-flash-lite",
			Timeout:     "60s",
			Temperature: 0,
		},

		Images: ImagesConfig{
			Unsplash: UnsplashConfig{
				BaseURL: "https://api.unsplash.com",
			},
			SearchTimeout:   "5s",
			ValidateTimeout: "2s",
			CacheTTL:        "10m",
			CacheSize:       1000,
		},

		Dispatch: DispatchConfig{
			MaxCallsPerTurn:    10,
			StrictUnknownTools: false,
		},

		Server: ServerConfig{
			Addr:           ":8000",
			AllowedOrigins: []string{"http://localhost:5173", "http://127.0.0.1:5173"},
			MaxConnections: 256,
			ReadTimeout:    "30s",
		},

		Sessions: SessionsConfig{
			TTL:         "30m",
			MaxSessions: 1000,
		},

		Logging: logging.Config{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},

		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults. Environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
	if model := os.Getenv("CANVAS_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if path := os.Getenv("CANVAS_SYSTEM_PROMPT"); path != "" {
		c.LLM.SystemPromptPath = path
	}

	if key := os.Getenv("UNSPLASH_ACCESS_KEY"); key != "" {
		c.Images.Unsplash.AccessKey = key
	}

	if addr := os.Getenv("CANVAS_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"gemini"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model must be set")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2], got %v", c.LLM.Temperature)
	}
	if c.Dispatch.MaxCallsPerTurn < 1 {
		return fmt.Errorf("dispatch.max_calls_per_turn must be >= 1")
	}
	if c.Sessions.MaxSessions < 1 {
		return fmt.Errorf("sessions.max_sessions must be >= 1")
	}
	if c.Images.CacheSize < 0 {
		return fmt.Errorf("images.cache_size must be >= 0")
	}
	if err := c.Server.validate(); err != nil {
		return err
	}
	if err := c.validateWriteTimeout(); err != nil {
		return err
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", c.Metrics.Path)
	}
	return nil
}

// ValidateForModel additionally requires the credentials needed to talk to
// the model. Offline commands skip it.
func (c *Config) ValidateForModel() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set GEMINI_API_KEY or llm.api_key)")
	}
	return nil
}

// GetSessionTTL returns the session idle TTL as a duration.
func (c *Config) GetSessionTTL() time.Duration {
	return parseDuration(c.Sessions.TTL, 30*time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
