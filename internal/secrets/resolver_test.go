package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/envctl/internal/project"
)

// fakeRunner replaces the real bws subprocess in tests.
type fakeRunner struct {
	calls    int
	lastArgs []string
	stdout   []byte
	stderr   []byte
	exit     int
	err      error
}

func (f *fakeRunner) Run(ctx context.Context, bin string, args ...string) ([]byte, []byte, int, error) {
	f.calls++
	f.lastArgs = args
	return f.stdout, f.stderr, f.exit, f.err
}

func newTestResolver(t *testing.T, runner cliRunner, env map[string]string) *Resolver {
	t.Helper()
	r := NewResolver(project.New(t.TempDir()))
	r.lookPath = func(string) (string, error) { return "/usr/local/bin/bws", nil }
	r.getenv = func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
	if runner != nil {
		r.runCLI = runner
	}
	return r
}

func withToken() map[string]string {
	return map[string]string{accessTokenVar: "0.token"}
}

func TestResolveUnsupportedBackend(t *testing.T) {
	t.Parallel()

	r := NewResolver(project.New(t.TempDir()))
	_, err := r.Resolve(context.Background(), "dev", "x", RefEntry{Backend: "vault"})
	require.Error(t, err)
	assert.EqualError(t, err, `unsupported secret backend: "vault" (supported: mock, env, file, bws)`)
}

func TestResolveMock(t *testing.T) {
	t.Parallel()

	layout := project.New(t.TempDir())
	r := NewResolver(layout)

	path := layout.SecretsStorePath("dev", "api_key")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("s3cret\n"), 0o600))

	value, err := r.Resolve(context.Background(), "dev", "api_key", RefEntry{Backend: BackendMock})
	require.NoError(t, err)
	assert.Equal(t, "s3cret", value)
}

func TestResolveMockMissing(t *testing.T) {
	t.Parallel()

	layout := project.New(t.TempDir())
	r := NewResolver(layout)

	_, err := r.Resolve(context.Background(), "dev", "api_key", RefEntry{Backend: BackendMock})
	require.Error(t, err)
	assert.EqualError(t, err, "mock secret missing: create "+layout.SecretsStorePath("dev", "api_key"))
}

func TestResolveEnv(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, nil, map[string]string{"DB_PASSWORD": "pw"})

	tests := []struct {
		name  string
		ref   string
		want  string
		error string
	}{
		{name: "scheme form", ref: "env://DB_PASSWORD", want: "pw"},
		{name: "short form", ref: "env:DB_PASSWORD", want: "pw"},
		{name: "bare name", ref: "DB_PASSWORD", want: "pw"},
		{name: "unset variable", ref: "env://NOPE", error: "missing environment variable for secret backend env: NOPE"},
		{name: "empty ref", ref: "env://", error: `env backend requires ref like env://VAR_NAME (got "env://")`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := r.Resolve(context.Background(), "dev", "x", RefEntry{Backend: BackendEnv, Ref: tt.ref})
			if tt.error != "" {
				assert.EqualError(t, err, tt.error)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, value)
		})
	}
}

func TestResolveFile(t *testing.T) {
	t.Parallel()

	layout := project.New(t.TempDir())
	r := NewResolver(layout)

	abs := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(abs, []byte("abs-secret\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(layout.Root, "rel-token"), []byte("rel-secret"), 0o600))

	t.Run("absolute path", func(t *testing.T) {
		value, err := r.Resolve(context.Background(), "dev", "x", RefEntry{Backend: BackendFile, Ref: "file://" + abs})
		require.NoError(t, err)
		assert.Equal(t, "abs-secret", value)
	})

	t.Run("relative path resolves against root", func(t *testing.T) {
		value, err := r.Resolve(context.Background(), "dev", "x", RefEntry{Backend: BackendFile, Ref: "file:rel-token"})
		require.NoError(t, err)
		assert.Equal(t, "rel-secret", value)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), "dev", "x", RefEntry{Backend: BackendFile, Ref: "file:absent"})
		assert.EqualError(t, err, "file secret missing: "+filepath.Join(layout.Root, "absent"))
	})
}

func bwsEntry(cfg map[string]interface{}) RefEntry {
	entry := RefEntry{Backend: BackendBWS, Config: cfg}
	entry.Ref, _ = cfg["ref"].(string)
	return entry
}

func TestResolveBWSByProjectID(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{stdout: []byte(`[{"key":"API_KEY","value":"abc123"}]`)}
	r := newTestResolver(t, runner, withToken())

	value, err := r.Resolve(context.Background(), "dev", "api_key",
		bwsEntry(map[string]interface{}{"project_id": "pid-1", "key": "API_KEY"}))
	require.NoError(t, err)
	assert.Equal(t, "abc123", value)
	assert.Equal(t, []string{"secret", "list", "pid-1", "--output", "json", "--color", "no"}, runner.lastArgs)
}

func TestResolveBWSCompactRef(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{stdout: []byte(`[{"key":"API_KEY","value":"abc123"}]`)}
	r := newTestResolver(t, runner, withToken())

	value, err := r.Resolve(context.Background(), "dev", "api_key",
		bwsEntry(map[string]interface{}{"ref": "bws://pid-9?key=API_KEY"}))
	require.NoError(t, err)
	assert.Equal(t, "abc123", value)
	assert.Equal(t, "pid-9", runner.lastArgs[2])
}

func TestResolveBWSSecretListCached(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{stdout: []byte(`[{"key":"A","value":"1"},{"key":"B","value":"2"}]`)}
	r := newTestResolver(t, runner, withToken())

	entry := bwsEntry(map[string]interface{}{"project_id": "pid-1", "key": "A"})
	_, err := r.Resolve(context.Background(), "dev", "a", entry)
	require.NoError(t, err)

	entry2 := bwsEntry(map[string]interface{}{"project_id": "pid-1", "key": "B"})
	value, err := r.Resolve(context.Background(), "dev", "b", entry2)
	require.NoError(t, err)
	assert.Equal(t, "2", value)
	assert.Equal(t, 1, runner.calls, "second lookup must be served from cache")
}

func TestResolveBWSKeyNotFound(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{stdout: []byte(`[{"key":"OTHER","value":"x"}]`)}
	r := newTestResolver(t, runner, withToken())

	_, err := r.Resolve(context.Background(), "dev", "api_key",
		bwsEntry(map[string]interface{}{"project_id": "pid-1", "key": "API_KEY"}))
	assert.EqualError(t, err, `bws secret key not found in project_id=pid-1: "API_KEY"`)
}

func TestResolveBWSDuplicateKey(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{stdout: []byte(`[{"key":"A","value":"1"},{"key":"A","value":"2"}]`)}
	r := newTestResolver(t, runner, withToken())

	_, err := r.Resolve(context.Background(), "dev", "a",
		bwsEntry(map[string]interface{}{"project_id": "pid-1", "key": "A"}))
	assert.EqualError(t, err, `bws project has duplicate secret key: "A"`)
}

func TestResolveBWSMissingConfig(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, &fakeRunner{}, withToken())

	t.Run("no key", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), "dev", "x",
			bwsEntry(map[string]interface{}{"project_id": "pid-1"}))
		assert.EqualError(t, err, "bws backend requires secret_cfg.key (or ref like bws://<PROJECT_ID>?key=<SECRET_KEY>)")
	})

	t.Run("no project", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), "dev", "x",
			bwsEntry(map[string]interface{}{"key": "API_KEY"}))
		assert.EqualError(t, err, "bws backend requires secret_cfg.project_id or secret_cfg.project_name")
	})
}

func TestResolveBWSPreconditions(t *testing.T) {
	t.Parallel()

	t.Run("cli not on PATH", func(t *testing.T) {
		r := newTestResolver(t, &fakeRunner{}, withToken())
		r.lookPath = func(string) (string, error) { return "", fmt.Errorf("not found") }
		_, err := r.Resolve(context.Background(), "dev", "x",
			bwsEntry(map[string]interface{}{"project_id": "p", "key": "K"}))
		assert.EqualError(t, err, "bws CLI not found in PATH (install Bitwarden Secrets Manager CLI)")
	})

	t.Run("token unset", func(t *testing.T) {
		r := newTestResolver(t, &fakeRunner{}, map[string]string{})
		_, err := r.Resolve(context.Background(), "dev", "x",
			bwsEntry(map[string]interface{}{"project_id": "p", "key": "K"}))
		assert.EqualError(t, err, "BWS_ACCESS_TOKEN is not set (export your Bitwarden Secrets Manager access token)")
	})
}

func TestBWSProjectLookupByName(t *testing.T) {
	t.Parallel()

	t.Run("case-insensitive match and cache", func(t *testing.T) {
		runner := &fakeRunner{stdout: []byte(`[{"id":"pid-1","name":"MyApp"}]`)}
		r := newTestResolver(t, runner, withToken())

		pid, err := r.bwsProjectIDByName(context.Background(), "  myapp ")
		require.NoError(t, err)
		assert.Equal(t, "pid-1", pid)

		pid, err = r.bwsProjectIDByName(context.Background(), "MYAPP")
		require.NoError(t, err)
		assert.Equal(t, "pid-1", pid)
		assert.Equal(t, 1, runner.calls)
	})

	t.Run("not found", func(t *testing.T) {
		runner := &fakeRunner{stdout: []byte(`[]`)}
		r := newTestResolver(t, runner, withToken())
		_, err := r.bwsProjectIDByName(context.Background(), "ghost")
		assert.EqualError(t, err, `bws project not found by name: "ghost"`)
	})

	t.Run("not unique", func(t *testing.T) {
		runner := &fakeRunner{stdout: []byte(`[{"id":"a","name":"app"},{"id":"b","name":"app"}]`)}
		r := newTestResolver(t, runner, withToken())
		_, err := r.bwsProjectIDByName(context.Background(), "app")
		assert.EqualError(t, err, `bws project name is not unique: "app"`)
	})
}

func TestBWSSecretListErrorNeverEchoesStdout(t *testing.T) {
	t.Parallel()

	// A failing secret listing may still have echoed material on stdout;
	// only stderr may reach the error text.
	runner := &fakeRunner{
		stdout: []byte(`[{"key":"API_KEY","value":"super-secret-value"}]`),
		stderr: []byte(""),
		exit:   2,
	}
	r := newTestResolver(t, runner, withToken())

	_, err := r.Resolve(context.Background(), "dev", "x",
		bwsEntry(map[string]interface{}{"project_id": "pid-1", "key": "API_KEY"}))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "super-secret-value")
	assert.EqualError(t, err, "bws secret list failed: exit=2")
}

func TestBWSProjectListErrorUsesLastLine(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{stderr: []byte("warning: noise\nerror: 401 unauthorized\n"), exit: 1}
	r := newTestResolver(t, runner, withToken())

	_, err := r.bwsProjectIDByName(context.Background(), "app")
	assert.EqualError(t, err, "bws project list failed: error: 401 unauthorized")
}

func TestBWSInvalidJSON(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{stdout: []byte("not json")}
	r := newTestResolver(t, runner, withToken())

	_, err := r.Resolve(context.Background(), "dev", "x",
		bwsEntry(map[string]interface{}{"project_id": "pid-1", "key": "K"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bws secret list returned invalid JSON")
}
