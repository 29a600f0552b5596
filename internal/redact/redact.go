// Package redact produces report-safe copies of key/value mappings.
package redact

import "github.com/systmms/envctl/internal/contract"

// Marker replaces every secret value in redacted output. It is deliberately
// unambiguous: no real value should ever look like it.
const Marker = "***REDACTED***"

// Apply returns a copy of values where every key whose contract spec is
// flagged secret carries the marker instead of its value. Non-secret and
// unknown keys pass through unchanged; only contract-declared keys can be
// secret.
func Apply(specs map[string]contract.VarSpec, values map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		if spec, ok := specs[k]; ok && spec.Secret {
			out[k] = Marker
		} else {
			out[k] = v
		}
	}
	return out
}
