package bootstrap

import "github.com/kbukum/oidcrp/config"

// Config is satisfied by any struct embedding config.ServiceConfig that also
// defaults and validates its own sections.
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
