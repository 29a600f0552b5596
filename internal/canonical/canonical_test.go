package canonical

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/envctl/internal/contract"
)

func testSpecs() map[string]contract.VarSpec {
	return map[string]contract.VarSpec{
		"DATABASE_URL": {Name: "DATABASE_URL", Type: contract.TypeURL, State: contract.StateActive, RenameFrom: "DB_URL"},
		"LOG_LEVEL":    {Name: "LOG_LEVEL", Type: contract.TypeString, State: contract.StateActive},
		"OLD_TOKEN":    {Name: "OLD_TOKEN", Type: contract.TypeString, State: contract.StateDeprecated, DeprecateAfter: "2026-12-31", Replacement: "API_KEY"},
		"GONE":         {Name: "GONE", Type: contract.TypeString, State: contract.StateRemoved},
		"API_KEY":      {Name: "API_KEY", Type: contract.TypeString, State: contract.StateActive, Secret: true, SecretRef: "api_key"},
		"PROD_ONLY":    {Name: "PROD_ONLY", Type: contract.TypeString, State: contract.StateActive, Scopes: []string{"prod"}},
	}
}

func TestLoadLayerMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	layer, errs := LoadLayer(filepath.Join(t.TempDir(), "dev.yaml"))
	assert.Empty(t, errs)
	assert.Empty(t, layer.Values)
}

func TestLoadLayerRejectsBadKeys(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dev.yaml")
	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL: info\nlower: nope\n"), 0o644))

	layer, errs := LoadLayer(path)
	assert.Equal(t, map[string]interface{}{"LOG_LEVEL": "info"}, layer.Values)
	require.Len(t, errs, 1)
	assert.Equal(t, "Invalid key in values file "+path+": \"lower\"", errs[0])
}

func TestLoadLayerNonMapping(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dev.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- a\n- b\n"), 0o644))

	_, errs := LoadLayer(path)
	require.Len(t, errs, 1)
	assert.Equal(t, "Values file "+path+" must be a mapping", errs[0])
}

func TestCanonicalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		values       map[string]interface{}
		env          string
		wantOut      map[string]interface{}
		wantErrs     []string
		wantWarnings []string
	}{
		{
			name:    "live key passes",
			values:  map[string]interface{}{"LOG_LEVEL": "debug"},
			env:     "dev",
			wantOut: map[string]interface{}{"LOG_LEVEL": "debug"},
		},
		{
			name:     "unknown key rejected",
			values:   map[string]interface{}{"MYSTERY": 1},
			env:      "dev",
			wantOut:  map[string]interface{}{},
			wantErrs: []string{"Unknown key in values file src.yaml: MYSTERY"},
		},
		{
			name:     "out-of-scope key rejected",
			values:   map[string]interface{}{"PROD_ONLY": "x"},
			env:      "dev",
			wantOut:  map[string]interface{}{},
			wantErrs: []string{"Out-of-scope key in values file src.yaml: PROD_ONLY (env=dev)"},
		},
		{
			name:     "removed key rejected",
			values:   map[string]interface{}{"GONE": "x"},
			env:      "dev",
			wantOut:  map[string]interface{}{},
			wantErrs: []string{"Removed contract key set in values file src.yaml: GONE"},
		},
		{
			name:     "secret key rejected",
			values:   map[string]interface{}{"API_KEY": "hunter2"},
			env:      "dev",
			wantOut:  map[string]interface{}{},
			wantErrs: []string{"Values file must not include secret variable API_KEY: src.yaml"},
		},
		{
			name:         "deprecated key warns with hints",
			values:       map[string]interface{}{"OLD_TOKEN": "x"},
			env:          "dev",
			wantOut:      map[string]interface{}{"OLD_TOKEN": "x"},
			wantWarnings: []string{"Deprecated contract key used in values file src.yaml: OLD_TOKEN (deprecate_after=2026-12-31) (replacement=API_KEY)"},
		},
		{
			name:         "legacy key resolves with warning",
			values:       map[string]interface{}{"DB_URL": "postgres://db:5432/app"},
			env:          "dev",
			wantOut:      map[string]interface{}{"DATABASE_URL": "postgres://db:5432/app"},
			wantWarnings: []string{"Legacy key used in values file src.yaml: DB_URL -> DATABASE_URL (migration.rename_from)."},
		},
		{
			name:     "legacy and current both set stores neither",
			values:   map[string]interface{}{"DB_URL": "a", "DATABASE_URL": "b"},
			env:      "dev",
			wantOut:  map[string]interface{}{},
			wantErrs: []string{"Conflicting keys in values file src.yaml: both legacy DB_URL and new DATABASE_URL are set. Remove DB_URL."},
		},
	}

	specs := testSpecs()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			layer := Layer{Source: "src.yaml", Values: tt.values}
			out, errs, warnings := Canonicalize(specs, layer, tt.env)
			assert.Equal(t, tt.wantOut, out)
			assert.Equal(t, tt.wantErrs, errs)
			assert.Equal(t, tt.wantWarnings, warnings)
		})
	}
}
