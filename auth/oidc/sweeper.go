package oidc

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/oidcrp/component"
	"github.com/kbukum/oidcrp/logger"
)

// Sweeper periodically calls StateStore.Sweep off the request path.
type Sweeper struct {
	store    StateStore
	interval time.Duration
	log      *logger.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ component.Component = (*Sweeper)(nil)

// NewSweeper creates a sweeper. interval defaults to one minute.
func NewSweeper(store StateStore, interval time.Duration, log *logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Sweeper{store: store, interval: interval, log: log.WithComponent("state-sweeper")}
}

func (s *Sweeper) Name() string { return "state-sweeper" }

// Start launches the sweep loop. Starting twice is a no-op.
func (s *Sweeper) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
	return nil
}

func (s *Sweeper) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n, err := s.store.Sweep(context.Background())
			if err != nil {
				s.log.Warn("sweep failed", logger.ErrorFields("sweep", err))
				continue
			}
			if n > 0 {
				s.log.Debug("swept expired states", logger.Fields("count", n))
			}
		}
	}
}

// Stop ends the loop and waits for it.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) Health(context.Context) component.Health {
	s.mu.Lock()
	running := s.stop != nil
	s.mu.Unlock()
	if !running {
		return component.Health{Name: s.Name(), Status: component.StatusDegraded, Message: "not running"}
	}
	return component.Health{Name: s.Name(), Status: component.StatusHealthy}
}
