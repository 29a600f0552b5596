// Package contract models the declarative environment-variable contract: one
// typed spec per variable, lifecycle and migration rules, and the type checks
// applied to incoming override values.
package contract

import (
	"fmt"
	"regexp"
)

// Variable types accepted by the contract.
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeBool   = "bool"
	TypeJSON   = "json"
	TypeEnum   = "enum"
	TypeURL    = "url"
)

// Lifecycle states.
const (
	StateActive     = "active"
	StateDeprecated = "deprecated"
	StateRemoved    = "removed"
)

// EnvSelectorName is the distinguished variable that carries the active
// environment name. Compile force-sets it so stale override files can never
// change environment identity.
const EnvSelectorName = "APP_ENV"

var (
	// NameRE matches valid environment variable identifiers.
	NameRE = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

	dateRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

	allowedTypes = map[string]bool{
		TypeString: true, TypeInt: true, TypeFloat: true,
		TypeBool: true, TypeJSON: true, TypeEnum: true, TypeURL: true,
	}

	lifecycleStates = map[string]bool{
		StateActive: true, StateDeprecated: true, StateRemoved: true,
	}
)

// VarSpec is the validated contract entry for one variable.
type VarSpec struct {
	Name        string
	Type        string
	Required    bool
	Secret      bool
	SecretRef   string
	Default     interface{}
	Enum        []string
	Scopes      []string // nil means all environments
	Description string

	State          string // active|deprecated|removed
	DeprecateAfter string // YYYY-MM-DD, only when deprecated
	Replacement    string // successor variable, only when deprecated
	RenameFrom     string // legacy name this variable supersedes
}

// Applicable reports whether the variable is in scope for env.
func (v VarSpec) Applicable(env string) bool {
	if v.Scopes == nil {
		return true
	}
	for _, s := range v.Scopes {
		if s == env {
			return true
		}
	}
	return false
}

// TypeCheck validates a raw override value against the declared type. It
// returns an empty string on success and a short human-readable reason on
// failure. Values arrive as decoded YAML, so the dynamic checks mirror the
// closed set {object, array, string, number, boolean}.
func (v VarSpec) TypeCheck(value interface{}) string {
	switch v.Type {
	case TypeString:
		if _, ok := value.(string); !ok {
			return "expected string"
		}
	case TypeURL:
		if _, ok := value.(string); !ok {
			return "expected url string"
		}
	case TypeInt:
		if !isInt(value) {
			return "expected int"
		}
	case TypeFloat:
		if !isInt(value) && !isFloat(value) {
			return "expected float"
		}
	case TypeBool:
		if _, ok := value.(bool); !ok {
			return "expected bool"
		}
	case TypeJSON:
		if !isJSONLike(value) {
			return "expected json-like"
		}
	case TypeEnum:
		s, ok := value.(string)
		if !ok {
			return "expected enum string"
		}
		if len(v.Enum) > 0 && !contains(v.Enum, s) {
			return fmt.Sprintf("expected one of %v", v.Enum)
		}
	}
	return ""
}

func isInt(value interface{}) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

func isFloat(value interface{}) bool {
	switch value.(type) {
	case float32, float64:
		return true
	}
	return false
}

func isJSONLike(value interface{}) bool {
	if isInt(value) || isFloat(value) {
		return true
	}
	switch value.(type) {
	case map[string]interface{}, []interface{}, string, bool:
		return true
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// RenameMap inverts the contract's migration declarations: legacy name to
// current name. The parser's second pass guarantees injectivity.
func RenameMap(specs map[string]VarSpec) map[string]string {
	out := make(map[string]string)
	for _, v := range specs {
		if v.RenameFrom != "" {
			out[v.RenameFrom] = v.Name
		}
	}
	return out
}
