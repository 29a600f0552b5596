package secrets

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RefEntry is one secret-reference recipe: which backend to ask and how.
// Backend-specific fields beyond backend/ref live in Config.
type RefEntry struct {
	Backend string
	Ref     string
	Config  map[string]interface{}
}

// stringField returns a trimmed string field from the backend-specific config.
func (e RefEntry) stringField(key string) string {
	s, _ := e.Config[key].(string)
	return strings.TrimSpace(s)
}

// LoadRefTable reads the per-environment secret-reference table. Both the
// nested `secrets:` wrapper and a flat top-level mapping (with a `version`
// metadata key ignored) are accepted. Entries with field problems are
// recorded as errors but still returned, so later resolution can name them.
func LoadRefTable(path string) (map[string]RefEntry, []string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]RefEntry{}, []string{fmt.Sprintf("Missing secret ref file: %s", path)}
		}
		return map[string]RefEntry{}, []string{fmt.Sprintf("Failed to read secrets ref %s: %v", path, err)}
	}

	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return map[string]RefEntry{}, []string{fmt.Sprintf("Failed to parse secrets ref %s: %v", path, err)}
	}
	if doc == nil {
		return map[string]RefEntry{}, []string{fmt.Sprintf("Secrets ref %s is empty", path)}
	}

	mapping, ok := doc.(map[string]interface{})
	if !ok {
		return map[string]RefEntry{}, []string{fmt.Sprintf("Secrets ref %s must be a mapping", path)}
	}

	var raw map[string]interface{}
	if nested, ok := mapping["secrets"].(map[string]interface{}); ok {
		raw = nested
	} else {
		raw = make(map[string]interface{}, len(mapping))
		for k, v := range mapping {
			if k == "version" {
				continue
			}
			raw[k] = v
		}
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]RefEntry, len(raw))
	var errors []string

	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			errors = append(errors, fmt.Sprintf("Invalid secret name in %s: %q", path, name))
			continue
		}
		cfg, ok := raw[name].(map[string]interface{})
		if !ok {
			errors = append(errors, fmt.Sprintf("Secret %s in %s: definition must be a mapping", name, path))
			continue
		}

		entry := RefEntry{Config: cfg}
		entry.Backend, _ = cfg["backend"].(string)
		entry.Ref, _ = cfg["ref"].(string)

		if strings.TrimSpace(entry.Backend) == "" {
			errors = append(errors, fmt.Sprintf("Secret %s in %s: backend must be a non-empty string", name, path))
		}
		// The bws backend addresses secrets via key + project fields, so a
		// ref is only mandatory for the other backends.
		if strings.TrimSpace(entry.Ref) == "" && strings.TrimSpace(entry.Backend) != BackendBWS {
			errors = append(errors, fmt.Sprintf("Secret %s in %s: ref must be a non-empty string", name, path))
		}

		out[name] = entry
	}

	return out, errors
}
