// Package logger provides structured logging on top of zerolog.
//
// A process-wide logger is configured once with Init and handed out to
// components through WithComponent. Fields are passed as maps built with
// Fields so call sites stay short:
//
//	log := logger.WithComponent("oidc")
//	log.Info("callback completed", logger.Fields("provider", name, "action", "LOGIN"))
//
// Secrets such as tokens, codes and state values must go through Redact.
package logger
