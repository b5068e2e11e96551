// Package errors defines the error taxonomy shared by the relying party.
//
// Every failure surfaced to a host maps to an AppError carrying a stable
// machine-readable code, an HTTP status suggestion and a retryable flag.
// Typed domain errors in auth/oidc convert to AppError through their
// AppError() method so hosts can render one response shape.
package errors
