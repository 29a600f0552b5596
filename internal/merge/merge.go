// Package merge builds the effective key/value set for one environment from
// contract defaults, canonicalized override layers, and resolved secrets.
//
// Two entry points share the same walk: Availability confirms secret material
// is reachable without keeping any value, Materialize builds the real
// mapping. Precedence, low to high: defaults, project-wide layer,
// developer-local layer, secrets.
package merge

import (
	"context"
	"fmt"
	"sort"

	"github.com/systmms/envctl/internal/contract"
	"github.com/systmms/envctl/internal/secrets"
)

// Layer is one canonicalized override layer, already in current-name space.
type Layer struct {
	Source string
	Values map[string]interface{}
}

// Merger holds the inputs for one environment's merge.
type Merger struct {
	Specs    map[string]contract.VarSpec
	Env      string
	Layers   []Layer // ordered low to high precedence
	RefTable map[string]secrets.RefEntry
	Resolver *secrets.Resolver
}

// Result accumulates the merge outcome. Errors and Missing gate PASS
// equally but are reported in separate sections.
type Result struct {
	Effective map[string]interface{}
	Errors    []string
	Missing   []string
}

// Status is PASS only when nothing went wrong anywhere in the merge.
func (r Result) Status() string {
	if len(r.Errors) == 0 && len(r.Missing) == 0 {
		return "PASS"
	}
	return "FAIL"
}

// inScope reports whether spec participates in this environment's merge.
func (m *Merger) inScope(spec contract.VarSpec) bool {
	return spec.Applicable(m.Env) && spec.State != contract.StateRemoved
}

func (m *Merger) sortedNames() []string {
	names := make([]string, 0, len(m.Specs))
	for name := range m.Specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Merger) refTableDisplay() string {
	return fmt.Sprintf("env/secrets/%s.ref.yaml", m.Env)
}

// Materialize builds the effective mapping for the environment.
func (m *Merger) Materialize(ctx context.Context) Result {
	result := Result{Effective: make(map[string]interface{})}

	// Seed defaults for non-secret variables.
	for _, name := range m.sortedNames() {
		spec := m.Specs[name]
		if !m.inScope(spec) || spec.Secret {
			continue
		}
		if spec.Default != nil {
			result.Effective[name] = spec.Default
		}
	}

	// Overlay layers in precedence order. A type failure discards the
	// incoming value only; whatever an earlier layer supplied stays.
	for _, layer := range m.Layers {
		keys := make([]string, 0, len(layer.Values))
		for k := range layer.Values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			spec, ok := m.Specs[k]
			if !ok {
				continue
			}
			v := layer.Values[k]
			if reason := spec.TypeCheck(v); reason != "" {
				result.Errors = append(result.Errors, fmt.Sprintf("Type check failed for %s in %s: %s", k, layer.Source, reason))
				continue
			}
			result.Effective[k] = v
		}
	}

	// Resolve secrets. Failures become named missing entries; no value is
	// ever stored on failure.
	for _, name := range m.sortedNames() {
		spec := m.Specs[name]
		if !m.inScope(spec) || !spec.Secret {
			continue
		}
		if spec.SecretRef == "" {
			result.Missing = append(result.Missing, fmt.Sprintf("%s (missing secret_ref in contract)", name))
			continue
		}
		entry, ok := m.RefTable[spec.SecretRef]
		if !ok {
			result.Missing = append(result.Missing, fmt.Sprintf("%s (missing secret ref entry: %s in %s)", name, spec.SecretRef, m.refTableDisplay()))
			continue
		}
		value, err := m.Resolver.Resolve(ctx, m.Env, spec.SecretRef, entry)
		if err != nil {
			result.Missing = append(result.Missing, fmt.Sprintf("%s (secret material unavailable: %v)", name, err))
			continue
		}
		result.Effective[name] = value
	}

	// Required-ness: absence and explicit empty string both count as missing.
	for _, name := range m.sortedNames() {
		spec := m.Specs[name]
		if !m.inScope(spec) || !spec.Required {
			continue
		}
		v, present := result.Effective[name]
		if !present || v == nil || v == "" {
			result.Missing = append(result.Missing, fmt.Sprintf("%s (required but missing)", name))
		}
	}

	// Environment identity stays authoritative regardless of stale override
	// files: the selector variable is force-set last.
	if spec, declared := m.Specs[contract.EnvSelectorName]; declared && m.inScope(spec) {
		result.Effective[contract.EnvSelectorName] = m.Env
	}

	return result
}

// Availability checks, without materializing anything, that every in-scope
// secret has a declared ref, a table entry, and resolvable material, and
// that every non-secret variable satisfies required-ness and type rules.
// Resolved secret values are discarded immediately.
func (m *Merger) Availability(ctx context.Context) Result {
	result := Result{Effective: map[string]interface{}{}}

	for _, name := range m.sortedNames() {
		spec := m.Specs[name]
		if !m.inScope(spec) {
			continue
		}

		if spec.Secret {
			if spec.SecretRef == "" {
				result.Missing = append(result.Missing, fmt.Sprintf("%s (secret_ref missing in contract)", name))
				continue
			}
			entry, ok := m.RefTable[spec.SecretRef]
			if !ok {
				result.Missing = append(result.Missing, fmt.Sprintf("%s (missing secret ref entry: %s in %s)", name, spec.SecretRef, m.refTableDisplay()))
				continue
			}
			if _, err := m.Resolver.Resolve(ctx, m.Env, spec.SecretRef, entry); err != nil {
				result.Missing = append(result.Missing, fmt.Sprintf("%s (secret material unavailable: %v)", name, err))
			}
			continue
		}

		value, valueSet := m.layeredValue(name)
		if !valueSet {
			value = spec.Default
		}

		if spec.Required && (value == nil || value == "") {
			result.Missing = append(result.Missing, fmt.Sprintf("%s (required; provide in env/values/%s.yaml or env/values/%s.local.yaml or contract default)", name, m.Env, m.Env))
			continue
		}

		if value != nil {
			if reason := spec.TypeCheck(value); reason != "" {
				result.Errors = append(result.Errors, fmt.Sprintf("Type check failed for %s: %s", name, reason))
			}
		}
	}

	return result
}

// layeredValue returns the highest-precedence layer value for name.
func (m *Merger) layeredValue(name string) (interface{}, bool) {
	for i := len(m.Layers) - 1; i >= 0; i-- {
		if v, ok := m.Layers[i].Values[name]; ok {
			return v, true
		}
	}
	return nil, false
}
