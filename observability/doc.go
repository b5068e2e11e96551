// Package observability wires OpenTelemetry tracing and metrics.
//
// Init installs OTLP/HTTP exporters when enabled; otherwise the global no-op
// providers stay in place and instrumented code pays almost nothing.
// AuthMetrics holds the counters recorded by the login flow.
package observability
