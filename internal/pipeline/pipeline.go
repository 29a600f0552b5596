// Package pipeline wires the resolution stages together for one invocation:
// contract parse, per-layer canonicalization, secret resolution, merge, and
// the redacted outputs. The CLI commands are thin wrappers over this package.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/systmms/envctl/internal/canonical"
	"github.com/systmms/envctl/internal/connectivity"
	"github.com/systmms/envctl/internal/contract"
	"github.com/systmms/envctl/internal/envfile"
	"github.com/systmms/envctl/internal/errors"
	"github.com/systmms/envctl/internal/logging"
	"github.com/systmms/envctl/internal/merge"
	"github.com/systmms/envctl/internal/project"
	"github.com/systmms/envctl/internal/redact"
	"github.com/systmms/envctl/internal/report"
	"github.com/systmms/envctl/internal/secrets"
)

// Pipeline runs the resolution stages for one project root and environment.
type Pipeline struct {
	Layout   project.Layout
	Env      string
	Logger   *logging.Logger
	Resolver *secrets.Resolver

	// now is the single timestamp for the run, injectable for tests.
	now func() time.Time
}

// New builds a pipeline with a fresh resolver (and fresh caches).
func New(layout project.Layout, env string, logger *logging.Logger) *Pipeline {
	return &Pipeline{
		Layout:   layout,
		Env:      env,
		Logger:   logger,
		Resolver: secrets.NewResolver(layout),
		now:      time.Now,
	}
}

func (p *Pipeline) timestamp() string {
	return p.now().UTC().Format("2006-01-02T15:04:05Z")
}

// inputs carries everything loaded from disk for one run.
type inputs struct {
	specs    map[string]contract.VarSpec
	layers   []merge.Layer // project-wide first, developer-local second
	refTable map[string]secrets.RefEntry
	errors   []string
	warnings []string
}

// load reads and canonicalizes all input documents, accumulating every
// problem instead of stopping at the first.
func (p *Pipeline) load() inputs {
	var in inputs

	if !p.Layout.CheckSSOTGate() {
		in.errors = append(in.errors, "SSOT mode gate failed: docs/project/env-ssot.json must set mode=repo-env-contract")
	}

	specs, contractErrs := contract.Load(p.Layout.ContractPath())
	in.specs = specs
	in.errors = append(in.errors, contractErrs...)

	for _, path := range []string{p.Layout.ValuesPath(p.Env), p.Layout.LocalValuesPath(p.Env)} {
		layer, loadErrs := canonical.LoadLayer(path)
		in.errors = append(in.errors, loadErrs...)

		values, canonErrs, canonWarns := canonical.Canonicalize(specs, layer, p.Env)
		in.errors = append(in.errors, canonErrs...)
		in.warnings = append(in.warnings, canonWarns...)

		in.layers = append(in.layers, merge.Layer{Source: path, Values: values})
	}

	refTable, refErrs := secrets.LoadRefTable(p.Layout.SecretsRefPath(p.Env))
	in.refTable = refTable
	in.errors = append(in.errors, refErrs...)

	return in
}

func (p *Pipeline) merger(in inputs) *merge.Merger {
	return &merge.Merger{
		Specs:    in.specs,
		Env:      p.Env,
		Layers:   in.layers,
		RefTable: in.refTable,
		Resolver: p.Resolver,
	}
}

// Doctor validates contract, layers, and secret availability without
// materializing any secret value.
func (p *Pipeline) Doctor(ctx context.Context) report.DoctorSummary {
	ts := p.timestamp()
	in := p.load()

	result := p.merger(in).Availability(ctx)

	errors := append([]string{}, in.errors...)
	errors = append(errors, result.Errors...)
	errors = append(errors, result.Missing...)

	var actions []string
	if anyContains(result.Missing, "env/values") {
		actions = append(actions, fmt.Sprintf("Add missing non-secret values to env/values/%s.local.yaml (developer-specific) or env/values/%s.yaml (project-wide).", p.Env, p.Env))
	}
	if anyContains(result.Missing, "secret") {
		actions = append(actions,
			fmt.Sprintf("Ensure env/secrets/%s.ref.yaml contains the referenced secrets and provide secret material via approved backend (never via chat).", p.Env),
			fmt.Sprintf("For mock backend: create files under env/.secrets-store/%s/<secret_name>.", p.Env))
	}

	status := "PASS"
	if len(errors) > 0 {
		status = "FAIL"
	}

	return report.DoctorSummary{
		TimestampUTC: ts,
		Env:          p.Env,
		Status:       status,
		Errors:       errors,
		Warnings:     in.warnings,
		Actions:      actions,
	}
}

// Compile materializes the effective mapping and, on PASS, writes the local
// env file (unless noWrite) and the redacted effective context. On FAIL
// nothing is overwritten.
func (p *Pipeline) Compile(ctx context.Context, noWrite bool) (report.CompileReport, error) {
	ts := p.timestamp()
	in := p.load()

	result := p.merger(in).Materialize(ctx)

	errors := append([]string{}, in.errors...)
	errors = append(errors, result.Errors...)
	errors = append(errors, result.Missing...)

	status := "PASS"
	if len(errors) > 0 {
		status = "FAIL"
	}

	envFilePath := p.Layout.EnvFilePath(p.Env)
	ctxPath := p.Layout.EffectiveContextPath(p.Env)

	rep := report.CompileReport{
		TimestampUTC:     ts,
		Env:              p.Env,
		Status:           status,
		EnvFile:          envFilePath,
		EffectiveContext: ctxPath,
		Missing:          result.Missing,
		Errors:           errors,
		Warnings:         in.warnings,
		Keys:             keySummary(in.specs, result.Effective),
	}

	if status != "PASS" {
		return rep, nil
	}

	if !noWrite {
		if err := envfile.Write(envFilePath, result.Effective, ts); err != nil {
			return rep, err
		}
	}
	err := envfile.WriteEffectiveContext(ctxPath, envfile.EffectiveContext{
		GeneratedAtUTC: ts,
		Env:            p.Env,
		Values:         redact.Apply(in.specs, result.Effective),
	})
	return rep, err
}

// Connectivity builds an effective mapping in memory (best effort on
// secrets) and probes every url-typed value. Nothing is written to the
// project tree.
func (p *Pipeline) Connectivity(ctx context.Context) (connectivity.Report, []string, []string, string) {
	ts := p.timestamp()
	in := p.load()

	errors := append([]string{}, in.errors...)
	effective := make(map[string]interface{})

	for name, spec := range in.specs {
		if !spec.Applicable(p.Env) || spec.State == contract.StateRemoved || spec.Secret {
			continue
		}
		if spec.Default != nil {
			effective[name] = spec.Default
		}
	}

	for _, layer := range in.layers {
		for _, k := range sortedKeys(layer.Values) {
			v := layer.Values[k]
			spec, ok := in.specs[k]
			if !ok || spec.Secret || !spec.Applicable(p.Env) || spec.State == contract.StateRemoved {
				continue
			}
			if reason := spec.TypeCheck(v); reason != "" {
				errors = append(errors, fmt.Sprintf("Type check failed for %s: %s", k, reason))
				continue
			}
			effective[k] = v
		}
	}

	for _, name := range sortedSpecNames(in.specs) {
		spec := in.specs[name]
		if !spec.Applicable(p.Env) || spec.State == contract.StateRemoved || !spec.Secret || spec.SecretRef == "" {
			continue
		}
		entry, ok := in.refTable[spec.SecretRef]
		if !ok {
			continue
		}
		value, err := p.Resolver.Resolve(ctx, p.Env, spec.SecretRef, entry)
		if err != nil {
			errors = append(errors, fmt.Sprintf("Secret unresolved for connectivity check: %s (%v)", name, err))
			continue
		}
		effective[name] = value
	}

	rep := connectivity.Build(in.specs, effective, p.Env, ts)

	status := "PASS"
	if len(errors) > 0 || !rep.Passed() {
		status = "FAIL"
	}
	return rep, errors, in.warnings, status
}

// Get resolves the effective value of a single variable and returns its
// env-file text form. Secret values are returned raw to the caller; this is
// the one sanctioned direct-output path, meant for scripting.
func (p *Pipeline) Get(ctx context.Context, varName string) (string, error) {
	in := p.load()

	spec, declared := in.specs[varName]
	if !declared {
		available := sortedSpecNames(in.specs)
		suggestion := "Check env/contract.yaml for declared variables"
		if n := len(available); n > 0 && n <= 10 {
			suggestion = fmt.Sprintf("Declared variables: %v", available)
		} else if n > 10 {
			suggestion = fmt.Sprintf("The contract declares %d variables. Run 'envctl doctor --env %s' to review them", n, p.Env)
		}
		return "", errors.ConfigError{
			Field:      "variable",
			Value:      varName,
			Message:    "variable not declared in the contract",
			Suggestion: suggestion,
		}
	}
	if !spec.Applicable(p.Env) || spec.State == contract.StateRemoved {
		return "", errors.UserError{
			Message:    fmt.Sprintf("%s is not in scope for env %s", varName, p.Env),
			Suggestion: "Check the variable's scopes and state in env/contract.yaml",
		}
	}

	if spec.Secret {
		if spec.SecretRef == "" {
			return "", errors.ConfigError{
				Field:   "secret_ref",
				Message: fmt.Sprintf("secret variable %s has no secret_ref", varName),
			}
		}
		entry, ok := in.refTable[spec.SecretRef]
		if !ok {
			return "", errors.UserError{
				Message:    fmt.Sprintf("no secret ref entry for %s", spec.SecretRef),
				Suggestion: fmt.Sprintf("Add %s to env/secrets/%s.ref.yaml", spec.SecretRef, p.Env),
			}
		}
		value, err := p.Resolver.Resolve(ctx, p.Env, spec.SecretRef, entry)
		if err != nil {
			return "", errors.BackendError(entry.Backend, spec.SecretRef, err)
		}
		return value, nil
	}

	if varName == contract.EnvSelectorName {
		return p.Env, nil
	}

	value := spec.Default
	for _, layer := range in.layers {
		if v, ok := layer.Values[varName]; ok {
			value = v
		}
	}
	if value == nil {
		return "", errors.UserError{
			Message:    fmt.Sprintf("%s has no value for env %s", varName, p.Env),
			Suggestion: fmt.Sprintf("Set it in env/values/%s.yaml or env/values/%s.local.yaml", p.Env, p.Env),
		}
	}
	if reason := spec.TypeCheck(value); reason != "" {
		return "", errors.ConfigError{
			Field:   varName,
			Value:   value,
			Message: reason,
		}
	}
	return envfile.Render(value)
}

func keySummary(specs map[string]contract.VarSpec, effective map[string]interface{}) map[string]report.KeyInfo {
	out := make(map[string]report.KeyInfo, len(effective))
	for k := range effective {
		info := report.KeyInfo{Present: true, Type: "unknown"}
		if spec, ok := specs[k]; ok {
			info.Secret = spec.Secret
			info.Type = spec.Type
		}
		out[k] = info
	}
	return out
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedSpecNames(specs map[string]contract.VarSpec) []string {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func anyContains(items []string, substr string) bool {
	for _, item := range items {
		if strings.Contains(item, substr) {
			return true
		}
	}
	return false
}
