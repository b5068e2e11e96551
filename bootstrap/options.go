package bootstrap

import (
	"time"

	"github.com/kbukum/oidcrp/logger"
)

// Option configures NewApp.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	gracefulTimeout time.Duration
	signals         bool
}

// WithLogger replaces the logger built from the service config.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) { o.logger = l }
}

// WithGracefulTimeout bounds shutdown. Defaults to 15s.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) { o.gracefulTimeout = d }
}

// WithoutSignals stops Run and RunTask from listening for SIGINT/SIGTERM;
// only context cancellation ends them. Used in tests.
func WithoutSignals() Option {
	return func(o *appOptions) { o.signals = false }
}
