package auth

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kbukum/oidcrp/auth/oidc"
)

// State store backends.
const (
	StateStoreMemory = "memory"
	StateStoreRedis  = "redis"
)

// Config holds the relying parties of one application, keyed by provider
// name. The name appears in callback paths and log fields.
type Config struct {
	Providers map[string]oidc.ClientConfig `yaml:"providers" mapstructure:"providers"`
	// Default names the provider used when a request does not pick one.
	// Defaults to the only provider, or the first in name order.
	Default string `yaml:"default" mapstructure:"default"`
	// StateStore selects where authorization request states live: memory
	// or redis. Redis is needed once more than one replica serves callbacks.
	StateStore    string        `yaml:"state_store" mapstructure:"state_store"`
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

// ApplyDefaults fills unset fields, including every provider's.
func (c *Config) ApplyDefaults() {
	for name, p := range c.Providers {
		p.ApplyDefaults()
		c.Providers[name] = p
	}
	if c.Default == "" {
		if names := c.Names(); len(names) > 0 {
			c.Default = names[0]
		}
	}
	if c.StateStore == "" {
		c.StateStore = StateStoreMemory
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
}

// Validate checks every provider.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("auth.providers: at least one provider is required")
	}
	if _, ok := c.Providers[c.Default]; !ok {
		return fmt.Errorf("auth.default: unknown provider %q", c.Default)
	}
	if c.StateStore != StateStoreMemory && c.StateStore != StateStoreRedis {
		return fmt.Errorf("auth.state_store must be %q or %q (got: %s)", StateStoreMemory, StateStoreRedis, c.StateStore)
	}
	for _, name := range c.Names() {
		p := c.Providers[name]
		if err := p.Validate(); err != nil {
			return fmt.Errorf("auth.providers.%s: %w", name, err)
		}
	}
	return nil
}

// Names returns the provider names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Describe returns a one-liner for the startup log.
// Example: "corp(https://idp.example.com) google(https://accounts.google.com) state=redis"
func (c *Config) Describe() string {
	if len(c.Providers) == 0 {
		return "no providers configured"
	}
	parts := make([]string, 0, len(c.Providers)+1)
	for _, name := range c.Names() {
		parts = append(parts, fmt.Sprintf("%s(%s)", name, c.Providers[name].Issuer))
	}
	parts = append(parts, "state="+c.StateStore)
	return strings.Join(parts, " ")
}
