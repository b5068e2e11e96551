// Package app assembles the oidcrp service from its configuration.
package app

import (
	"fmt"
	"strings"

	"github.com/kbukum/oidcrp/auth"
	"github.com/kbukum/oidcrp/config"
	"github.com/kbukum/oidcrp/internal/host"
	"github.com/kbukum/oidcrp/observability"
	"github.com/kbukum/oidcrp/redis"
	"github.com/kbukum/oidcrp/server"
	"github.com/kbukum/oidcrp/version"
)

// Config is the service configuration, loaded from config.yml and
// OIDCRP_* environment variables.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Auth          auth.Config          `yaml:"auth" mapstructure:"auth"`
	Redis         redis.Config         `yaml:"redis" mapstructure:"redis"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
	Host          host.Options         `yaml:"host" mapstructure:"host"`
}

// ApplyDefaults fills unset fields. Providers without a redirect URI get
// <public_url>/oauth/callback/<name>.
func (c *Config) ApplyDefaults() {
	if c.Version == "" {
		c.Version = version.Get().Version
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	base := strings.TrimSuffix(c.Server.PublicURL, "/")
	for name, p := range c.Auth.Providers {
		if p.RedirectURI == "" {
			p.RedirectURI = base + "/oauth/callback/" + name
			c.Auth.Providers[name] = p
		}
	}
	c.Auth.ApplyDefaults()
	if c.Auth.StateStore == auth.StateStoreRedis {
		c.Redis.Enabled = true
	}
	c.Redis.ApplyDefaults()
	if p, ok := c.Auth.Providers[c.Auth.Default]; ok && p.EnforcePrivacy {
		c.Host.EnforcePrivacy = true
	}
	c.Host.ApplyDefaults()
	c.Observability.ApplyDefaults()
	c.Observability.ServiceName = c.Name
	c.Observability.ServiceVersion = c.Version
	c.Observability.Environment = c.Environment
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return c.Observability.Validate()
}
