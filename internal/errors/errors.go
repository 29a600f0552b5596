package errors

import (
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a contract or values-file error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// CommandError represents a failure running an external tool such as the bws CLI
type CommandError struct {
	Command    string
	ExitCode   int
	Message    string
	Suggestion string
}

func (e CommandError) Error() string {
	msg := fmt.Sprintf("Command '%s' failed", e.Command)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code: %d)", e.ExitCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// BackendError enhances secret-backend errors with context
func BackendError(backend string, secretName string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s backend error resolving secret '%s'", backend, secretName),
		Suggestion: backendSuggestion(backend, err),
		Err:        err,
	}
}

// backendSuggestion returns helpful suggestions based on backend and error
func backendSuggestion(backend string, err error) string {
	errStr := err.Error()

	switch backend {
	case "bws":
		if strings.Contains(errStr, "not found in PATH") {
			return "Install the Bitwarden Secrets Manager CLI: https://bitwarden.com/help/secrets-manager-cli/"
		}
		if strings.Contains(errStr, "BWS_ACCESS_TOKEN") {
			return "Export BWS_ACCESS_TOKEN with a machine access token before running"
		}
		if strings.Contains(errStr, "not unique") {
			return "Use project_id instead of project_name to disambiguate"
		}
		if strings.Contains(errStr, "not found by name") {
			return "List projects with 'bws project list' and check the spelling"
		}

	case "mock":
		if strings.Contains(errStr, "missing") {
			return "Create the secret file under env/.secrets-store/<env>/<name>"
		}

	case "env":
		if strings.Contains(errStr, "missing environment variable") {
			return "Export the referenced variable in your shell before running"
		}

	case "file":
		if strings.Contains(errStr, "missing") {
			return "Create the referenced file or fix the ref path"
		}
	}

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline") {
		return "The operation timed out. Check your network connection and try again"
	}

	return ""
}
