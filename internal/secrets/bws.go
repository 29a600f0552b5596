package secrets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// accessTokenVar must be exported before any bws invocation is attempted.
const accessTokenVar = "BWS_ACCESS_TOKEN"

// cliRunner runs an external command and reports its streams and exit state.
// It exists so tests can fake the bws CLI without a binary on PATH.
type cliRunner interface {
	Run(ctx context.Context, bin string, args ...string) (stdout, stderr []byte, exitCode int, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, bin string, args ...string) ([]byte, []byte, int, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
			err = nil
		}
	}
	return outBuf.Bytes(), errBuf.Bytes(), exitCode, err
}

// checkBWSAvailable verifies the two preconditions for any bws call. The two
// absences are distinct, named failures.
func (r *Resolver) checkBWSAvailable() (string, error) {
	bin, err := r.lookPath("bws")
	if err != nil {
		return "", fmt.Errorf("bws CLI not found in PATH (install Bitwarden Secrets Manager CLI)")
	}
	if token, ok := r.getenv(accessTokenVar); !ok || token == "" {
		return "", fmt.Errorf("%s is not set (export your Bitwarden Secrets Manager access token)", accessTokenVar)
	}
	return bin, nil
}

// runBWSJSON invokes bws and parses its JSON output. A non-zero exit surfaces
// the tool's last non-empty output line; malformed JSON is a distinct error.
// When allowStdoutInError is false the error detail is taken from stderr only
// (secret listings may echo values on stdout).
func (r *Resolver) runBWSJSON(ctx context.Context, opName string, allowStdoutInError bool, args ...string) (interface{}, error) {
	bin, err := r.checkBWSAvailable()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	stdout, stderr, exitCode, runErr := r.runCLI.Run(ctx, bin, args...)
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%s failed: timed out after %s", opName, r.timeout)
	}
	if runErr != nil {
		return nil, fmt.Errorf("failed to run %s: %v", opName, runErr)
	}

	if exitCode != 0 {
		details := strings.TrimSpace(string(stderr))
		if details == "" && allowStdoutInError {
			details = strings.TrimSpace(string(stdout))
		}
		details = lastNonEmptyLine(details)
		if details == "" {
			details = fmt.Sprintf("exit=%d", exitCode)
		}
		return nil, fmt.Errorf("%s failed: %s", opName, details)
	}

	var parsed interface{}
	if err := json.Unmarshal(stdout, &parsed); err != nil {
		return nil, fmt.Errorf("%s returned invalid JSON: %v", opName, err)
	}
	return parsed, nil
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// bwsProjectIDByName resolves a project name to its id via a case-insensitive
// exact match against the tool's project list. Results are cached for the
// process lifetime keyed by the lower-cased trimmed name.
func (r *Resolver) bwsProjectIDByName(ctx context.Context, projectName string) (string, error) {
	nameNorm := strings.ToLower(strings.TrimSpace(projectName))
	if nameNorm == "" {
		return "", fmt.Errorf("bws project_name must be a non-empty string")
	}
	if id, ok := r.projectIDCache[nameNorm]; ok {
		return id, nil
	}

	parsed, err := r.runBWSJSON(ctx, "bws project list", true,
		"project", "list", "--output", "json", "--color", "no")
	if err != nil {
		return "", err
	}
	list, ok := parsed.([]interface{})
	if !ok {
		return "", fmt.Errorf("bws project list: expected JSON array")
	}

	var matches []string
	for _, item := range list {
		p, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		pname, _ := p["name"].(string)
		pid, _ := p["id"].(string)
		if pname != "" && pid != "" && strings.ToLower(strings.TrimSpace(pname)) == nameNorm {
			matches = append(matches, pid)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("bws project not found by name: %q", projectName)
	case 1:
		r.projectIDCache[nameNorm] = matches[0]
		return matches[0], nil
	default:
		return "", fmt.Errorf("bws project name is not unique: %q", projectName)
	}
}

// bwsSecretsForProject lists all secrets for a project id as a name→value
// map, cached for the process lifetime. Duplicate keys within one project
// make resolution ambiguous and fail the listing outright.
func (r *Resolver) bwsSecretsForProject(ctx context.Context, projectID string) (map[string]string, error) {
	pid := strings.TrimSpace(projectID)
	if pid == "" {
		return nil, fmt.Errorf("bws project_id must be a non-empty string")
	}
	if values, ok, err := r.secretsCache.get(pid); err != nil {
		return nil, err
	} else if ok {
		return values, nil
	}

	parsed, err := r.runBWSJSON(ctx, "bws secret list", false,
		"secret", "list", pid, "--output", "json", "--color", "no")
	if err != nil {
		return nil, err
	}
	list, ok := parsed.([]interface{})
	if !ok {
		return nil, fmt.Errorf("bws secret list: expected JSON array")
	}

	values := make(map[string]string)
	for _, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		k, kok := entry["key"].(string)
		v, vok := entry["value"].(string)
		if !kok || !vok {
			continue
		}
		if _, dup := values[k]; dup {
			return nil, fmt.Errorf("bws project has duplicate secret key: %q", k)
		}
		values[k] = v
	}

	if err := r.secretsCache.put(pid, values); err != nil {
		return nil, err
	}
	return values, nil
}
