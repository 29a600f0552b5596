package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/systmms/envctl/internal/contract"
)

func TestApply(t *testing.T) {
	t.Parallel()

	specs := map[string]contract.VarSpec{
		"API_KEY":   {Name: "API_KEY", Secret: true},
		"LOG_LEVEL": {Name: "LOG_LEVEL"},
	}
	values := map[string]interface{}{
		"API_KEY":   "super-secret",
		"LOG_LEVEL": "debug",
		"UNLISTED":  "passes",
	}

	out := Apply(specs, values)
	assert.Equal(t, Marker, out["API_KEY"])
	assert.Equal(t, "debug", out["LOG_LEVEL"])
	assert.Equal(t, "passes", out["UNLISTED"])

	// input untouched
	assert.Equal(t, "super-secret", values["API_KEY"])
}

func TestApplyEmpty(t *testing.T) {
	t.Parallel()

	out := Apply(nil, map[string]interface{}{})
	assert.Empty(t, out)
}
