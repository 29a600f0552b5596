// Package secrets resolves secret material from the four supported backends:
// mock (local fixture files), env (process environment), file (arbitrary
// paths), and bws (the Bitwarden Secrets Manager CLI).
//
// Resolved values are returned only to the direct caller; nothing here logs,
// stores, or reports them. The resolver owns two process-lifetime caches for
// the bws backend so repeated lookups cost one subprocess invocation each.
package secrets

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/systmms/envctl/internal/project"
)

// Supported backend tags. Any other tag is an unsupported-backend error.
const (
	BackendMock = "mock"
	BackendEnv  = "env"
	BackendFile = "file"
	BackendBWS  = "bws"
)

// DefaultCLITimeout bounds each external CLI invocation. Exceeding it is a
// tool-invocation failure, never an indefinite hang.
const DefaultCLITimeout = 10 * time.Second

// Resolver resolves secret references for one project. The caches live for
// the lifetime of the Resolver instance; construct separate instances when
// cross-contamination matters (tests do).
type Resolver struct {
	layout  project.Layout
	timeout time.Duration

	// seams for tests
	lookPath func(string) (string, error)
	getenv   func(string) (string, bool)
	runCLI   cliRunner

	projectIDCache map[string]string
	secretsCache   *secretsCache
}

// NewResolver creates a Resolver rooted at the given project layout.
func NewResolver(layout project.Layout) *Resolver {
	return &Resolver{
		layout:         layout,
		timeout:        DefaultCLITimeout,
		lookPath:       exec.LookPath,
		getenv:         os.LookupEnv,
		runCLI:         execRunner{},
		projectIDCache: make(map[string]string),
		secretsCache:   newSecretsCache(),
	}
}

// SetTimeout overrides the per-invocation CLI timeout.
func (r *Resolver) SetTimeout(d time.Duration) {
	r.timeout = d
}

// Resolve returns the secret value for one reference entry, or an error
// describing exactly what is missing. The value must never be logged or
// surfaced anywhere except this return.
func (r *Resolver) Resolve(ctx context.Context, env, secretName string, entry RefEntry) (string, error) {
	backend := strings.TrimSpace(entry.Backend)
	ref := strings.TrimSpace(entry.Ref)

	switch backend {
	case BackendMock:
		return r.resolveMock(env, secretName)
	case BackendEnv:
		return r.resolveEnv(ref)
	case BackendFile:
		return r.resolveFile(ref)
	case BackendBWS:
		return r.resolveBWS(ctx, entry, ref)
	default:
		return "", fmt.Errorf("unsupported secret backend: %q (supported: mock, env, file, bws)", backend)
	}
}

func (r *Resolver) resolveMock(env, secretName string) (string, error) {
	path := r.layout.SecretsStorePath(env, secretName)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("mock secret missing: create %s", path)
	}
	// Multiline is allowed; trailing newlines are stripped to keep the
	// generated env file stable.
	return strings.TrimRight(string(data), "\n"), nil
}

func (r *Resolver) resolveEnv(ref string) (string, error) {
	name := ref
	if strings.HasPrefix(ref, "env://") {
		name = strings.TrimPrefix(ref, "env://")
	} else if strings.HasPrefix(ref, "env:") {
		name = strings.TrimPrefix(ref, "env:")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("env backend requires ref like env://VAR_NAME (got %q)", ref)
	}
	value, ok := r.getenv(name)
	if !ok {
		return "", fmt.Errorf("missing environment variable for secret backend env: %s", name)
	}
	return value, nil
}

func (r *Resolver) resolveFile(ref string) (string, error) {
	p := ref
	if strings.HasPrefix(ref, "file://") {
		p = strings.TrimPrefix(ref, "file://")
	} else if strings.HasPrefix(ref, "file:") {
		p = strings.TrimPrefix(ref, "file:")
	}
	p = strings.TrimSpace(p)
	if p == "" {
		return "", fmt.Errorf("file backend requires ref like file:///abs/path (got %q)", ref)
	}

	path := p
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.layout.Root, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("file secret missing: %s", path)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func (r *Resolver) resolveBWS(ctx context.Context, entry RefEntry, ref string) (string, error) {
	projectID := entry.stringField("project_id")
	projectName := entry.stringField("project_name")
	key := entry.stringField("key")

	// Compact ref form: bws://<PROJECT_ID>?key=<SECRET_KEY>
	if projectID == "" && strings.HasPrefix(ref, "bws://") {
		if u, err := url.Parse(ref); err == nil {
			projectID = u.Host
			if k := strings.TrimSpace(u.Query().Get("key")); k != "" {
				key = k
			}
		}
	}

	if key == "" {
		return "", fmt.Errorf("bws backend requires secret_cfg.key (or ref like bws://<PROJECT_ID>?key=<SECRET_KEY>)")
	}

	var pid string
	switch {
	case projectID != "":
		pid = projectID
	case projectName != "":
		var err error
		pid, err = r.bwsProjectIDByName(ctx, projectName)
		if err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("bws backend requires secret_cfg.project_id or secret_cfg.project_name")
	}

	values, err := r.bwsSecretsForProject(ctx, pid)
	if err != nil {
		return "", err
	}
	value, ok := values[key]
	if !ok {
		return "", fmt.Errorf("bws secret key not found in project_id=%s: %q", pid, key)
	}
	return value, nil
}
