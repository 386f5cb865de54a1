package bootstrap

import (
	"github.com/kbukum/flowkit/config"
)

// Config is what App needs from a binary's configuration: the embedded
// service section plus whole-config defaults and validation, applied in
// NewApp before the logger is built.
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
