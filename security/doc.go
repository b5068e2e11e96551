// Package security builds outbound TLS settings for provider connections.
package security
