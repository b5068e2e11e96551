package httpclient

import (
	"fmt"
	"time"

	"github.com/kbukum/oidcrp/security"
)

const defaultTimeout = 10 * time.Second

// Config configures the client.
type Config struct {
	Timeout   time.Duration       `yaml:"timeout" mapstructure:"timeout"`
	TLS       *security.TLSConfig `yaml:"tls" mapstructure:"tls"`
	Headers   map[string]string   `yaml:"headers" mapstructure:"headers"`
	UserAgent string              `yaml:"user_agent" mapstructure:"user_agent"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = "oidcrp"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	return c.TLS.Validate()
}
