package contract

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and parses the contract file at path. A missing or structurally
// broken file short-circuits with a single error; everything past that point
// accumulates per-entry errors and keeps going.
func Load(path string) (map[string]VarSpec, []string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]VarSpec{}, []string{fmt.Sprintf("Missing contract: %s", path)}
		}
		return map[string]VarSpec{}, []string{fmt.Sprintf("Failed to read contract %s: %v", path, err)}
	}
	return Parse(data)
}

// Parse parses raw contract YAML into validated specs. It never aborts on a
// single bad entry: invalid entries are skipped with one error each and every
// other entry is still parsed.
func Parse(data []byte) (map[string]VarSpec, []string) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return map[string]VarSpec{}, []string{fmt.Sprintf("Failed to parse contract YAML: %v", err)}
	}

	if err := validateShape(doc); err != nil {
		return map[string]VarSpec{}, []string{err.Error()}
	}

	rawVars := doc.(map[string]interface{})["variables"].(map[string]interface{})

	var errors []string
	specs := make(map[string]VarSpec, len(rawVars))

	// Sorted iteration keeps error ordering stable across runs.
	names := make([]string, 0, len(rawVars))
	for name := range rawVars {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec, entryErrs, ok := parseEntry(name, rawVars[name])
		errors = append(errors, entryErrs...)
		if ok {
			specs[name] = spec
		}
	}

	errors = append(errors, validateRenameGraph(specs)...)

	return specs, errors
}

// parseEntry validates a single variable config. ok is false only when the
// entry is unusable (bad name, non-mapping config, bad type); field-level
// problems record an error and continue with the rest of the fields.
func parseEntry(name string, raw interface{}) (VarSpec, []string, bool) {
	var errors []string

	if !NameRE.MatchString(name) {
		return VarSpec{}, []string{fmt.Sprintf("Invalid env var name in contract: %q", name)}, false
	}

	cfg, ok := raw.(map[string]interface{})
	if !ok {
		return VarSpec{}, []string{fmt.Sprintf("Variable %s: definition must be a mapping", name)}, false
	}

	vtype, ok := cfg["type"].(string)
	if !ok || !allowedTypes[vtype] {
		return VarSpec{}, []string{fmt.Sprintf("Variable %s: invalid type %q (allowed: bool, enum, float, int, json, string, url)", name, fmt.Sprint(cfg["type"]))}, false
	}

	spec := VarSpec{Name: name, Type: vtype}

	// Lifecycle: preferred `state: active|deprecated|removed`, with the
	// legacy `deprecated: true` flag accepted as a synonym.
	stateRaw, _ := cfg["state"].(string)
	legacyDeprecated := cfg["deprecated"] == true
	switch {
	case strings.TrimSpace(stateRaw) != "":
		spec.State = strings.TrimSpace(stateRaw)
	case legacyDeprecated:
		spec.State = StateDeprecated
	default:
		spec.State = StateActive
	}
	if !lifecycleStates[spec.State] {
		errors = append(errors, fmt.Sprintf("Variable %s: invalid state %q (allowed: active, deprecated, removed)", name, spec.State))
		spec.State = StateActive
	}
	if legacyDeprecated && spec.State != StateDeprecated {
		errors = append(errors, fmt.Sprintf("Variable %s: deprecated=true conflicts with state=%q", name, spec.State))
	}

	if da, present := cfg["deprecate_after"]; present && da != nil {
		s, ok := da.(string)
		if !ok || !dateRE.MatchString(strings.TrimSpace(s)) {
			errors = append(errors, fmt.Sprintf("Variable %s: deprecate_after must be YYYY-MM-DD if present", name))
		} else {
			spec.DeprecateAfter = strings.TrimSpace(s)
		}
		if spec.State != StateDeprecated {
			errors = append(errors, fmt.Sprintf("Variable %s: deprecate_after is only valid when state='deprecated'", name))
			spec.DeprecateAfter = ""
		}
	}

	replacement := cfg["replacement"]
	if replacement == nil {
		replacement = cfg["replaced_by"]
	}
	if replacement != nil {
		s, ok := replacement.(string)
		if !ok || !NameRE.MatchString(s) {
			errors = append(errors, fmt.Sprintf("Variable %s: replacement must be a valid env var name", name))
		} else {
			spec.Replacement = s
		}
		if spec.State != StateDeprecated {
			errors = append(errors, fmt.Sprintf("Variable %s: replacement is only valid when state='deprecated'", name))
			spec.Replacement = ""
		}
	}

	if migration, present := cfg["migration"]; present && migration != nil {
		m, ok := migration.(map[string]interface{})
		if !ok {
			errors = append(errors, fmt.Sprintf("Variable %s: migration must be a mapping if present", name))
		} else if rf, present := m["rename_from"]; present && rf != nil {
			s, ok := rf.(string)
			switch {
			case !ok || !NameRE.MatchString(s):
				errors = append(errors, fmt.Sprintf("Variable %s: migration.rename_from must be a valid env var name", name))
			case s == name:
				errors = append(errors, fmt.Sprintf("Variable %s: migration.rename_from must not equal the variable name", name))
			default:
				spec.RenameFrom = s
			}
		}
	}

	spec.Required, _ = cfg["required"].(bool)
	spec.Secret, _ = cfg["secret"].(bool)

	secretRef, _ := cfg["secret_ref"].(string)
	if spec.Secret {
		if strings.TrimSpace(secretRef) == "" {
			errors = append(errors, fmt.Sprintf("Variable %s: secret variables must set non-empty secret_ref", name))
		} else {
			spec.SecretRef = secretRef
		}
		if _, hasDefault := cfg["default"]; hasDefault {
			errors = append(errors, fmt.Sprintf("Variable %s: secret variables must not define a default", name))
		}
	} else {
		if _, present := cfg["secret_ref"]; present && cfg["secret_ref"] != nil {
			errors = append(errors, fmt.Sprintf("Variable %s: non-secret variables must not set secret_ref", name))
		}
		spec.Default = cfg["default"]
	}

	if vtype == TypeEnum {
		enumList, enumErr := stringList(cfg["enum"])
		if enumErr || len(enumList) == 0 {
			errors = append(errors, fmt.Sprintf("Variable %s: enum type requires non-empty string list 'enum'", name))
		} else {
			spec.Enum = enumList
		}
	}

	if scopes, present := cfg["scopes"]; present && scopes != nil {
		scopeList, scopeErr := stringList(scopes)
		if scopeErr {
			errors = append(errors, fmt.Sprintf("Variable %s: scopes must be a list of env names", name))
		} else {
			spec.Scopes = scopeList
		}
	}

	description, _ := cfg["description"].(string)
	if strings.TrimSpace(description) == "" || strings.Contains(description, "\n") {
		errors = append(errors, fmt.Sprintf("Variable %s: description must be a non-empty single line", name))
		description = strings.TrimSpace(strings.ReplaceAll(description, "\n", " "))
	}
	spec.Description = description

	return spec, errors, true
}

// validateRenameGraph enforces the global migration invariants: no two
// current variables may claim the same legacy name, and a legacy name that
// still exists as its own contract entry must be state=removed.
func validateRenameGraph(specs map[string]VarSpec) []string {
	var errors []string

	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	renameFromTo := make(map[string]string)
	for _, newName := range names {
		old := specs[newName].RenameFrom
		if old == "" {
			continue
		}
		if prev, claimed := renameFromTo[old]; claimed && prev != newName {
			errors = append(errors, fmt.Sprintf("Contract rename_from collision: %s -> %s and %s", old, prev, newName))
		} else {
			renameFromTo[old] = newName
		}
	}

	olds := make([]string, 0, len(renameFromTo))
	for old := range renameFromTo {
		olds = append(olds, old)
	}
	sort.Strings(olds)

	for _, old := range olds {
		if oldSpec, exists := specs[old]; exists && oldSpec.State != StateRemoved {
			errors = append(errors, fmt.Sprintf("Contract rename_from conflict: %s declares rename_from=%s but %s exists and is not state='removed'", renameFromTo[old], old, old))
		}
	}

	return errors
}

// stringList coerces a decoded YAML value into []string, reporting failure
// when the value is not a list or holds a non-string element.
func stringList(raw interface{}) ([]string, bool) {
	list, ok := raw.([]interface{})
	if !ok {
		return nil, true
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, true
		}
		out = append(out, s)
	}
	return out, false
}
