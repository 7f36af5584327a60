package config

import (
	"fmt"
	"net/url"
	"time"
)

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxConnections int      `yaml:"max_connections"` // 0 means unlimited
	ReadTimeout    string   `yaml:"read_timeout"`
	WriteTimeout   string   `yaml:"write_timeout"`   // empty derives it from the turn budget
}

func (c *Config) validateWriteTimeout() error {
	if c.Server.WriteTimeout == "" {
		return nil
	}
	if w, budget := c.GetWriteTimeout(), c.GetTurnBudget(); w < budget {
		return fmt.Errorf("server.write_timeout %s is shorter than the worst-case turn %s", w, budget)
	}
	return nil
}

func (s ServerConfig) validate() error {
	if s.Addr == "" {
		return fmt.Errorf("server.addr must be set")
	}
	if s.MaxConnections < 0 {
		return fmt.Errorf("server.max_connections must be >= 0")
	}
	for _, origin := range s.AllowedOrigins {
		if origin == "*" {
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("server.allowed_origins: invalid origin %q", origin)
		}
	}
	return nil
}

// GetReadTimeout returns the server read timeout as a duration.
func (c *Config) GetReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 30*time.Second)
}

// writeSlack is added to the turn budget for decoding and encoding.
const writeSlack = 10 * time.Second

// GetTurnBudget returns the longest one turn can take: the model call plus a
// search and a HEAD check for every call the dispatcher may run.
func (c *Config) GetTurnBudget() time.Duration {
	calls := c.Dispatch.MaxCallsPerTurn
	if calls < 1 {
		calls = 1
	}
	perCall := c.GetSearchTimeout() + c.GetValidateTimeout()
	return c.GetLLMTimeout() + time.Duration(calls)*perCall
}

// GetWriteTimeout returns the server write timeout as a duration. Unless set
// explicitly it covers the turn budget.
func (c *Config) GetWriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, c.GetTurnBudget()+writeSlack)
}
