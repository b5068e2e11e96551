package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies spans and instruments from this module.
const InstrumentationName = "github.com/kbukum/oidcrp"

// Span names used by the login flow.
const (
	SpanBeginLogin     = "oidc.begin_login"
	SpanHandleCallback = "oidc.handle_callback"
	SpanExchange       = "oidc.token_exchange"
	SpanRefresh        = "oidc.token_refresh"
	SpanUserInfo       = "oidc.userinfo"
	SpanJWKSFetch      = "oidc.jwks_fetch"
)

// StartSpan starts a span with the global tracer provider.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(InstrumentationName).Start(ctx, name, opts...)
}

// EndSpan records err, if any, and ends span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
