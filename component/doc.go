// Package component defines lifecycle-managed infrastructure pieces (redis,
// the state sweeper, the HTTP server) and a registry that starts them in
// order and stops them in reverse.
package component
