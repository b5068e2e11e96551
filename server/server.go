package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/oidcrp/component"
	"github.com/kbukum/oidcrp/logger"
	"github.com/kbukum/oidcrp/server/middleware"
)

// Server is a gin-backed HTTP server.
type Server struct {
	cfg    Config
	engine *gin.Engine
	http   *http.Server
	log    *logger.Logger

	mu       sync.Mutex
	listener net.Listener
}

var _ component.Component = (*Server)(nil)

// New creates a server with the standard middleware stack applied.
func New(cfg Config, log *logger.Logger) (*Server, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("http")

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("server: trusted proxies: %w", err)
	}
	engine.Use(middleware.Recovery(log), middleware.RequestID(), middleware.RequestLogger(log))

	handler := h2c.NewHandler(engine, &http2.Server{IdleTimeout: cfg.IdleTimeout})
	return &Server{
		cfg:    cfg,
		engine: engine,
		log:    log,
		http: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
	}, nil
}

// Engine returns the gin engine for route registration.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Handler returns the root handler, useful with httptest.
func (s *Server) Handler() http.Handler { return s.http.Handler }

func (s *Server) Name() string { return "http" }

// Start binds the listener and serves in the background.
func (s *Server) Start(context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("server: bind %s: %w", s.http.Addr, err)
	}
	s.Serve(ln)
	return nil
}

// Serve serves on an already bound listener in the background.
func (s *Server) Serve(ln net.Listener) {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server stopped", logger.Fields(logger.FieldError, err.Error()))
		}
	}()
	s.log.Info("listening", logger.Fields("addr", ln.Addr().String(), "public_url", s.cfg.PublicURL))
}

// Stop shuts down gracefully within five seconds.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func (s *Server) Health(context.Context) component.Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return component.Health{Name: s.Name(), Status: component.StatusUnhealthy, Message: "not listening"}
	}
	return component.Health{Name: s.Name(), Status: component.StatusHealthy}
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.http.Addr
}

// RegisterHealth mounts GET /health reporting every component in reg.
func (s *Server) RegisterHealth(service string, reg *component.Registry) {
	s.engine.GET("/health", func(c *gin.Context) {
		reports := reg.HealthAll(c.Request.Context())
		status := component.Overall(reports)
		code := http.StatusOK
		if status == component.StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"service": service, "status": status, "components": reports})
	})
}
