// Package project knows the on-disk layout of a repo under the
// environment-contract convention and nothing else.
package project

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SSOTMode is the gate value a repo must declare before envctl will manage
// its environment files.
const SSOTMode = "repo-env-contract"

// Layout resolves contract, values, and secret paths relative to a project root.
type Layout struct {
	Root string
}

// New returns a Layout rooted at dir.
func New(dir string) Layout {
	return Layout{Root: dir}
}

// ContractPath is the declarative variable contract.
func (l Layout) ContractPath() string {
	return filepath.Join(l.Root, "env", "contract.yaml")
}

// ValuesPath is the project-wide override layer for env.
func (l Layout) ValuesPath(env string) string {
	return filepath.Join(l.Root, "env", "values", env+".yaml")
}

// LocalValuesPath is the developer-local override layer for env. It wins over
// the project-wide layer on key collisions.
func (l Layout) LocalValuesPath(env string) string {
	return filepath.Join(l.Root, "env", "values", env+".local.yaml")
}

// SecretsRefPath is the per-environment secret-reference table.
func (l Layout) SecretsRefPath(env string) string {
	return filepath.Join(l.Root, "env", "secrets", env+".ref.yaml")
}

// SecretsStorePath is where the mock backend keeps secret material.
func (l Layout) SecretsStorePath(env, secretName string) string {
	return filepath.Join(l.Root, "env", ".secrets-store", env, secretName)
}

// EnvFilePath is the generated local env file. The dev environment keeps the
// conventional .env.local name; every other environment gets its own file.
func (l Layout) EnvFilePath(env string) string {
	name := ".env.local"
	if env != "dev" {
		name = ".env." + env + ".local"
	}
	return filepath.Join(l.Root, name)
}

// EffectiveContextPath is the redacted effective-context document for env.
func (l Layout) EffectiveContextPath(env string) string {
	return filepath.Join(l.Root, "docs", "context", "env", "effective-"+env+".json")
}

// ssotGatePath is the SSOT mode declaration file.
func (l Layout) ssotGatePath() string {
	return filepath.Join(l.Root, "docs", "project", "env-ssot.json")
}

// SSOTModeDeclared reads the SSOT gate file and returns the declared mode.
// A missing or unparseable gate file yields an empty string.
func (l Layout) SSOTModeDeclared() string {
	data, err := os.ReadFile(l.ssotGatePath())
	if err != nil {
		return ""
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return ""
	}
	for _, key := range []string{"mode", "env_ssot", "ssot_mode"} {
		if v, ok := doc[key].(string); ok {
			return v
		}
	}
	return ""
}

// CheckSSOTGate returns false when the repo has not opted into
// contract-managed environments.
func (l Layout) CheckSSOTGate() bool {
	return l.SSOTModeDeclared() == SSOTMode
}

// DiscoverEnvs lists environment names known to the project: anything with a
// values file or a secret-reference table.
func (l Layout) DiscoverEnvs() []string {
	seen := make(map[string]struct{})

	valuesGlob := filepath.Join(l.Root, "env", "values", "*.yaml")
	if matches, err := filepath.Glob(valuesGlob); err == nil {
		for _, m := range matches {
			name := strings.TrimSuffix(filepath.Base(m), ".yaml")
			name = strings.TrimSuffix(name, ".local")
			seen[name] = struct{}{}
		}
	}

	refGlob := filepath.Join(l.Root, "env", "secrets", "*.ref.yaml")
	if matches, err := filepath.Glob(refGlob); err == nil {
		for _, m := range matches {
			seen[strings.TrimSuffix(filepath.Base(m), ".ref.yaml")] = struct{}{}
		}
	}

	envs := make([]string, 0, len(seen))
	for name := range seen {
		envs = append(envs, name)
	}
	sort.Strings(envs)
	return envs
}
