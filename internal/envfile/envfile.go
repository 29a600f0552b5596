// Package envfile writes the two artifacts a successful compile produces:
// the local env file (which carries secret values and must stay gitignored)
// and the redacted effective-context document (which never does).
package envfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Write renders kv as a key=value file at path: header comments, keys sorted
// lexicographically, booleans as true/false, structured values as compact
// JSON. The file is restricted to owner read/write; a chmod failure is
// non-fatal.
func Write(path string, kv map[string]interface{}, generatedAt string) error {
	lines := []string{
		"# Generated by envctl. Do not hand-edit; regenerate via envctl compile",
		fmt.Sprintf("# Generated at: %s", generatedAt),
		"",
	}

	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		rendered, err := Render(kv[k])
		if err != nil {
			return fmt.Errorf("failed to render value for %s: %w", k, err)
		}
		lines = append(lines, k+"="+rendered)
	}

	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write env file %s: %w", path, err)
	}

	// Best effort in case the file pre-existed with wider permissions.
	_ = os.Chmod(path, 0o600)
	return nil
}

// Render converts one effective value to its env-file text form: booleans
// as true/false, structured values as compact JSON, nil as empty.
func Render(v interface{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case bool:
		if val {
			return "true", nil
		}
		return "false", nil
	case string:
		return val, nil
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return fmt.Sprint(val), nil
	}
}

// EffectiveContext is the redacted snapshot written alongside each compile.
type EffectiveContext struct {
	GeneratedAtUTC string                 `json:"generated_at_utc"`
	Env            string                 `json:"env"`
	Values         map[string]interface{} `json:"values"`
}

// WriteEffectiveContext overwrites the redacted context document wholesale.
// Values must already be redacted by the caller.
func WriteEffectiveContext(path string, ctx EffectiveContext) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create context directory: %w", err)
	}
	data, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode effective context: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write effective context %s: %w", path, err)
	}
	return nil
}
