package contract

import (
	"encoding/json"
	"errors"

	"github.com/xeipuuv/gojsonschema"
)

// documentSchema is the structural shape every contract file must satisfy
// before field-level validation runs: a mapping with a top-level `variables`
// mapping. Field rules are deliberately not encoded here: the parser owns
// them so that one bad entry never hides the rest.
const documentSchema = `{
	"type": "object",
	"required": ["variables"],
	"properties": {
		"variables": {"type": "object"}
	}
}`

var errShape = errors.New("Contract must be a mapping with top-level 'variables' mapping.")

// validateShape checks the decoded contract document against documentSchema.
func validateShape(doc interface{}) error {
	jsonDoc, err := json.Marshal(doc)
	if err != nil {
		return errShape
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(documentSchema),
		gojsonschema.NewBytesLoader(jsonDoc),
	)
	if err != nil || !result.Valid() {
		return errShape
	}
	return nil
}
