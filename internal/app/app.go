package app

import (
	"context"
	"fmt"

	"github.com/kbukum/oidcrp/auth"
	"github.com/kbukum/oidcrp/auth/oidc"
	"github.com/kbukum/oidcrp/bootstrap"
	"github.com/kbukum/oidcrp/encryption"
	apperrors "github.com/kbukum/oidcrp/errors"
	"github.com/kbukum/oidcrp/internal/host"
	"github.com/kbukum/oidcrp/logger"
	"github.com/kbukum/oidcrp/observability"
	"github.com/kbukum/oidcrp/redis"
	"github.com/kbukum/oidcrp/server"
)

// Wire registers the service's components on a. Redis, when enabled, is
// started first; everything that needs it is built in the configure phase.
func Wire(a *bootstrap.App[*Config]) error {
	cfg := a.Cfg
	var redisComp *redis.Component
	if cfg.Redis.Enabled {
		redisComp = redis.NewComponent(cfg.Redis, a.Logger)
		if err := a.RegisterComponent(redisComp); err != nil {
			return err
		}
	}

	a.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
		shutdown, err := observability.Init(ctx, cfg.Observability)
		if err != nil {
			return err
		}
		a.OnStop(bootstrap.Hook(shutdown))

		metrics, err := observability.NewAuthMetrics(nil)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		log := a.Logger

		states, err := newStateStore(cfg.Auth.StateStore, redisComp, log)
		if err != nil {
			return err
		}
		if _, ok := states.(*oidc.MemoryStateStore); ok {
			if err := a.RegisterComponent(oidc.NewSweeper(states, cfg.Auth.SweepInterval, log)); err != nil {
				return err
			}
		}

		var storeOpts []host.StoreOption
		if cfg.Host.TokenKey != "" {
			sealer, err := encryption.NewSealer(cfg.Host.TokenKey)
			if err != nil {
				return err
			}
			storeOpts = append(storeOpts, host.WithTokenSealer(sealer))
		}
		store := host.NewStore(log, storeOpts...)
		reg, err := auth.Build(ctx, cfg.Auth,
			oidc.WithHost(store),
			oidc.WithStateStore(states),
			oidc.WithLogger(log),
			oidc.WithMetrics(metrics),
		)
		if err != nil {
			return err
		}

		srv, err := server.New(cfg.Server, log)
		if err != nil {
			return err
		}
		host.NewHandler(reg, store, cfg.Host, log).Register(srv.Engine())
		srv.RegisterHealth(a.Name, a.Components)
		if err := a.RegisterComponent(srv); err != nil {
			return err
		}

		log.Info("relying parties ready", logger.Fields("auth", cfg.Auth.Describe(), "public_url", cfg.Server.PublicURL))
		return nil
	})
	return nil
}

// newStateStore picks the state backend. A redis store without a running
// redis component is a configuration error.
func newStateStore(kind string, redisComp *redis.Component, log *logger.Logger) (oidc.StateStore, error) {
	switch kind {
	case auth.StateStoreRedis:
		if redisComp == nil || redisComp.Client() == nil {
			return nil, apperrors.ConfigError("auth.state_store", "redis state store requires redis to be enabled")
		}
		return oidc.NewRedisStateStore(redisComp.Client(), oidc.WithStoreLogger(log)), nil
	case "", auth.StateStoreMemory:
		return oidc.NewMemoryStateStore(oidc.WithStoreLogger(log)), nil
	default:
		return nil, apperrors.ConfigError("auth.state_store", "unknown state store "+kind)
	}
}
