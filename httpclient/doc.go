// Package httpclient is the outbound HTTP client used to talk to identity
// providers. It applies TLS settings, default headers and auth, and turns
// transport failures into typed errors (timeout, connection, TLS, status)
// that callers can map without inspecting net/http internals.
package httpclient
