package observability

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Sum[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := map[string]metricdata.Sum[int64]{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				out[m.Name] = sum
			}
		}
	}
	return out
}

func TestAuthMetrics_Callback(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewAuthMetrics(mp)
	if err != nil {
		t.Fatalf("NewAuthMetrics: %v", err)
	}
	ctx := context.Background()
	m.Callback(ctx, "acme", "LOGIN")
	m.Callback(ctx, "acme", "LOGIN")
	m.Callback(ctx, "acme", "STATE_EXPIRED")
	m.StateIssued(ctx, "acme")

	sums := collect(t, reader)
	cb, ok := sums[MetricCallbackOutcome]
	if !ok {
		t.Fatalf("expected %s to be recorded, got %v", MetricCallbackOutcome, sums)
	}
	want := attribute.NewSet(attribute.String("provider", "acme"), attribute.String("outcome", "LOGIN"))
	found := false
	for _, dp := range cb.DataPoints {
		if dp.Attributes.Equals(&want) {
			found = true
			if dp.Value != 2 {
				t.Errorf("expected 2 LOGIN outcomes, got %d", dp.Value)
			}
		}
	}
	if !found {
		t.Error("expected LOGIN data point")
	}
	if _, ok := sums[MetricStateIssued]; !ok {
		t.Error("expected state issued counter")
	}
}

func TestAuthMetrics_NilIsNoop(t *testing.T) {
	var m *AuthMetrics
	m.Callback(context.Background(), "p", "LOGIN")
	m.Refresh(context.Background(), "p", "ok")
	m.JWKSFetch(context.Background(), "p", true)
}

func TestStartSpan_RecordsError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	_, span := StartSpan(context.Background(), SpanExchange)
	EndSpan(span, errors.New("invalid_grant"))

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	if ended[0].Name() != SpanExchange {
		t.Errorf("expected span %s, got %s", SpanExchange, ended[0].Name())
	}
	if ended[0].Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", ended[0].Status().Code)
	}
}

func TestInit_DisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("unexpected shutdown error: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{SampleRate: 2}
	if err := cfg.Validate(); err == nil {
		t.Error("expected sample rate error")
	}
}
