package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names.
const (
	MetricCallbackOutcome = "oidc.callback.outcome"
	MetricRefreshOutcome  = "oidc.refresh.outcome"
	MetricJWKSFetch       = "oidc.jwks.fetch"
	MetricStateIssued     = "oidc.state.issued"
)

// AuthMetrics records login-flow counters. The zero value is not usable;
// a nil *AuthMetrics records nothing.
type AuthMetrics struct {
	callback metric.Int64Counter
	refresh  metric.Int64Counter
	jwks     metric.Int64Counter
	state    metric.Int64Counter
}

// NewAuthMetrics creates counters on mp, or on the global provider when mp is nil.
func NewAuthMetrics(mp metric.MeterProvider) (*AuthMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	m := mp.Meter(InstrumentationName)
	var (
		am  AuthMetrics
		err error
	)
	if am.callback, err = m.Int64Counter(MetricCallbackOutcome,
		metric.WithDescription("Completed callbacks by provider and outcome")); err != nil {
		return nil, err
	}
	if am.refresh, err = m.Int64Counter(MetricRefreshOutcome,
		metric.WithDescription("Token refresh attempts by provider and outcome")); err != nil {
		return nil, err
	}
	if am.jwks, err = m.Int64Counter(MetricJWKSFetch,
		metric.WithDescription("JWKS document fetches by provider and result")); err != nil {
		return nil, err
	}
	if am.state, err = m.Int64Counter(MetricStateIssued,
		metric.WithDescription("Authorization request states issued")); err != nil {
		return nil, err
	}
	return &am, nil
}

// Callback counts a finished callback. outcome is a resolution action
// (LOGIN, CREATE, LINK, REJECT) or an error code.
func (m *AuthMetrics) Callback(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	m.callback.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider), attribute.String("outcome", outcome)))
}

// Refresh counts a refresh attempt.
func (m *AuthMetrics) Refresh(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	m.refresh.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider), attribute.String("outcome", outcome)))
}

// JWKSFetch counts a key set download.
func (m *AuthMetrics) JWKSFetch(ctx context.Context, provider string, ok bool) {
	if m == nil {
		return
	}
	m.jwks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider), attribute.Bool("ok", ok)))
}

// StateIssued counts a new login.
func (m *AuthMetrics) StateIssued(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	m.state.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}
