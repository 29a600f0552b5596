// Package canonical translates raw override-file keys into the contract's
// current-name space before values reach the merge. Each layer is handled
// independently; cross-layer precedence belongs to the merger.
package canonical

import (
	"fmt"
	"os"
	"sort"

	"github.com/systmms/envctl/internal/contract"
	"gopkg.in/yaml.v3"
)

// Layer is one raw override layer read from a single source file.
type Layer struct {
	// Source is the file the layer came from, used in diagnostics.
	Source string
	Values map[string]interface{}
}

// LoadLayer reads one override file. A missing file yields an empty layer
// without error; a malformed one yields one structural error. Keys that do
// not look like environment variable identifiers are dropped with an error.
func LoadLayer(path string) (Layer, []string) {
	layer := Layer{Source: path, Values: map[string]interface{}{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return layer, nil
		}
		return layer, []string{fmt.Sprintf("Failed to read values file %s: %v", path, err)}
	}

	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return layer, []string{fmt.Sprintf("Failed to parse values file %s: %v", path, err)}
	}
	if doc == nil {
		return layer, nil
	}

	mapping, ok := doc.(map[string]interface{})
	if !ok {
		return layer, []string{fmt.Sprintf("Values file %s must be a mapping", path)}
	}

	var errors []string
	for k, v := range mapping {
		if !contract.NameRE.MatchString(k) {
			errors = append(errors, fmt.Sprintf("Invalid key in values file %s: %q", path, k))
			continue
		}
		layer.Values[k] = v
	}
	sort.Strings(errors)
	return layer, errors
}

// Canonicalize maps one raw layer onto contract names for env. Legacy keys
// declared via migration.rename_from resolve to their current names with a
// migration warning; setting both the legacy and current key in the same
// layer is ambiguous and rejected. Secret, removed, and out-of-scope keys are
// rejected; deprecated keys pass with a warning.
func Canonicalize(specs map[string]contract.VarSpec, layer Layer, env string) (map[string]interface{}, []string, []string) {
	var errors, warnings []string
	out := make(map[string]interface{})

	renames := contract.RenameMap(specs)
	legacyOf := make(map[string]string, len(renames))
	for old, current := range renames {
		legacyOf[current] = old
	}

	keys := make([]string, 0, len(layer.Values))
	for k := range layer.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := layer.Values[k]

		if spec, live := specs[k]; live {
			switch {
			case !spec.Applicable(env):
				errors = append(errors, fmt.Sprintf("Out-of-scope key in values file %s: %s (env=%s)", layer.Source, k, env))
			case spec.State == contract.StateRemoved:
				errors = append(errors, fmt.Sprintf("Removed contract key set in values file %s: %s", layer.Source, k))
			case spec.Secret:
				errors = append(errors, fmt.Sprintf("Values file must not include secret variable %s: %s", k, layer.Source))
			default:
				// A layer setting both a key and its legacy alias is
				// ambiguous; the alias branch records the one error and
				// neither value is kept.
				if old, renamed := legacyOf[k]; renamed {
					if _, aliasSet := layer.Values[old]; aliasSet {
						continue
					}
				}
				if spec.State == contract.StateDeprecated {
					warnings = append(warnings, deprecationWarning(spec, layer.Source))
				}
				out[k] = v
			}
			continue
		}

		if current, legacy := renames[k]; legacy {
			if _, alsoSet := layer.Values[current]; alsoSet {
				errors = append(errors, fmt.Sprintf("Conflicting keys in values file %s: both legacy %s and new %s are set. Remove %s.", layer.Source, k, current, k))
				continue
			}
			spec, known := specs[current]
			switch {
			case !known:
				errors = append(errors, fmt.Sprintf("Legacy key %s maps to unknown contract key %s: %s", k, current, layer.Source))
			case !spec.Applicable(env):
				errors = append(errors, fmt.Sprintf("Out-of-scope key in values file %s: %s -> %s (env=%s)", layer.Source, k, current, env))
			case spec.State == contract.StateRemoved:
				errors = append(errors, fmt.Sprintf("Legacy key %s maps to removed contract key %s: %s", k, current, layer.Source))
			case spec.Secret:
				errors = append(errors, fmt.Sprintf("Values file must not include secret variable %s (renamed to %s): %s", k, current, layer.Source))
			default:
				warnings = append(warnings, fmt.Sprintf("Legacy key used in values file %s: %s -> %s (migration.rename_from).", layer.Source, k, current))
				out[current] = v
			}
			continue
		}

		errors = append(errors, fmt.Sprintf("Unknown key in values file %s: %s", layer.Source, k))
	}

	return out, errors, warnings
}

func deprecationWarning(spec contract.VarSpec, source string) string {
	msg := fmt.Sprintf("Deprecated contract key used in values file %s: %s", source, spec.Name)
	if spec.DeprecateAfter != "" {
		msg += fmt.Sprintf(" (deprecate_after=%s)", spec.DeprecateAfter)
	}
	if spec.Replacement != "" {
		msg += fmt.Sprintf(" (replacement=%s)", spec.Replacement)
	}
	return msg
}
