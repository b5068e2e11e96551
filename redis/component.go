package redis

import (
	"context"
	"fmt"

	"github.com/kbukum/oidcrp/component"
	"github.com/kbukum/oidcrp/logger"
)

// Component manages a Client's lifecycle.
type Component struct {
	cfg    Config
	log    *logger.Logger
	client *Client
}

var _ component.Component = (*Component)(nil)

// NewComponent creates a redis component. The client is built on Start.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	if log == nil {
		log = logger.Nop()
	}
	return &Component{cfg: cfg, log: log.WithComponent("redis")}
}

// Client returns the started client, or nil.
func (c *Component) Client() *Client { return c.client }

func (c *Component) Name() string { return "redis" }

// Start dials and pings redis.
func (c *Component) Start(ctx context.Context) error {
	client, err := New(c.cfg, c.log)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return err
	}
	c.client = client
	return nil
}

func (c *Component) Stop(context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	switch {
	case c.client == nil:
		h.Status, h.Message = component.StatusUnhealthy, "not started"
	default:
		if err := c.client.Ping(ctx); err != nil {
			h.Status, h.Message = component.StatusUnhealthy, fmt.Sprintf("ping failed: %v", err)
		}
	}
	return h
}
