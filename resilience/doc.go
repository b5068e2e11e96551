// Package resilience provides retry with exponential backoff for calls to
// identity providers.
package resilience
