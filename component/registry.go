package component

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/kbukum/oidcrp/logger"
)

type entry struct {
	c       Component
	started bool
}

// Registry starts components in registration order and stops them in reverse.
type Registry struct {
	mu      sync.Mutex
	entries []*entry
	names   map[string]struct{}
	log     *logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{names: make(map[string]struct{}), log: log.WithComponent("components")}
}

// Register adds c. Names must be unique.
func (r *Registry) Register(c Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.names[c.Name()]; ok {
		return fmt.Errorf("component %s already registered", c.Name())
	}
	r.names[c.Name()] = struct{}{}
	r.entries = append(r.entries, &entry{c: c})
	return nil
}

// StartAll starts every component. On failure the components already started
// are stopped again before the error is returned.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.started {
			continue
		}
		if err := e.c.Start(ctx); err != nil {
			r.log.Error("component start failed", logger.Fields("name", e.c.Name(), logger.FieldError, err.Error()))
			_ = r.stopLocked(ctx)
			return fmt.Errorf("start %s: %w", e.c.Name(), err)
		}
		e.started = true
		r.log.Debug("component started", logger.Fields("name", e.c.Name()))
	}
	return nil
}

// StopAll stops started components in reverse order and joins their errors.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked(ctx)
}

func (r *Registry) stopLocked(ctx context.Context) error {
	var errs []error
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if !e.started {
			continue
		}
		if err := e.c.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", e.c.Name(), err))
		}
		e.started = false
	}
	return stderrors.Join(errs...)
}

// HealthAll reports the health of every registered component.
func (r *Registry) HealthAll(ctx context.Context) []Health {
	r.mu.Lock()
	entries := append([]*entry(nil), r.entries...)
	r.mu.Unlock()

	out := make([]Health, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.c.Health(ctx))
	}
	return out
}

// Overall folds component reports into one status.
func Overall(reports []Health) HealthStatus {
	status := StatusHealthy
	for _, h := range reports {
		switch h.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}
