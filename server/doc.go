// Package server hosts the gin engine behind an h2c-capable http.Server and
// exposes it as a component. Handlers report failures with RespondWithError,
// which renders any AppError (or domain error convertible to one) as JSON.
package server
