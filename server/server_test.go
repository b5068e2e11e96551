package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/oidcrp/component"
	apperrors "github.com/kbukum/oidcrp/errors"
)

func init() { gin.SetMode(gin.TestMode) }

type stubComponent struct{ status component.HealthStatus }

func (s stubComponent) Name() string                { return "stub" }
func (s stubComponent) Start(context.Context) error { return nil }
func (s stubComponent) Stop(context.Context) error  { return nil }
func (s stubComponent) Health(context.Context) component.Health {
	return component.Health{Name: "stub", Status: s.status}
}

type domainErr struct{}

func (domainErr) Error() string                 { return "state expired" }
func (domainErr) AppError() *apperrors.AppError { return apperrors.StateExpired() }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(Config{Port: 0}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestRespondWithError(t *testing.T) {
	s := newTestServer(t)
	s.Engine().GET("/domain", func(c *gin.Context) { RespondWithError(c, fmt.Errorf("wrap: %w", domainErr{})) })
	s.Engine().GET("/unknown", func(c *gin.Context) { RespondWithError(c, fmt.Errorf("db password=hunter2")) })

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/domain", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for STATE_EXPIRED, got %d", w.Code)
	}
	var resp apperrors.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error.Code != apperrors.ErrCodeStateExpired {
		t.Errorf("expected STATE_EXPIRED, got %s", resp.Error.Code)
	}

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/unknown", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if got := w.Body.String(); strings.Contains(got, "hunter2") {
		t.Error("internal error text leaked")
	}
}

func TestRegisterHealth(t *testing.T) {
	s := newTestServer(t)
	reg := component.NewRegistry(nil)
	_ = reg.Register(stubComponent{status: component.StatusUnhealthy})
	s.RegisterHealth("oidcrp", reg)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when a component is unhealthy, got %d", w.Code)
	}
}

func TestStartStop(t *testing.T) {
	s := newTestServer(t)
	s.Engine().GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	ctx := context.Background()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s.Serve(ln)
	defer func() { _ = s.Stop(ctx) }()

	resp, err := http.Get("http://" + s.Addr() + "/ping")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if h := s.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy, got %s", h.Status)
	}
}
