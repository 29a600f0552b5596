// Package config carries the per-invocation settings shared by all
// commands. It is populated from global flags before any subcommand runs.
package config

import "github.com/systmms/envctl/internal/logging"

// Config holds the global command-line state.
type Config struct {
	// Root is the project root directory containing the env/ tree.
	Root string
	// Env is the target environment name (dev, staging, prod, ...).
	Env string
	// Logger is initialized from --debug and --no-color.
	Logger *logging.Logger
	Debug  bool
}
