// Package env identifies the runtime environment.
package env

import (
	"os"
	"strings"

	"github.com/ekisa-team/shmbridge/internal/envvar"
)

// Environment is the runtime environment of the process.
type Environment string

const (
	// Development enables human-friendly console logging.
	Development Environment = "development"

	// Production enables structured JSON logging.
	Production Environment = "production"
)

// FromEnv reads the environment from SHMBRIDGE_ENV. Anything other than a
// production value means development.
func FromEnv() Environment {
	switch strings.ToLower(os.Getenv(envvar.ShmbridgeEnv)) {
	case "production", "prod":
		return Production
	default:
		return Development
	}
}
