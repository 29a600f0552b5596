package secrets

import (
	"encoding/json"
	"fmt"

	"github.com/systmms/envctl/internal/secure"
)

// secretsCache caches per-project secret maps for the process lifetime.
// Entries are kept encrypted at rest via memguard so a full project's
// plaintext secrets never linger in ordinary heap memory between lookups.
type secretsCache struct {
	byProject map[string]*secure.Buffer
}

func newSecretsCache() *secretsCache {
	return &secretsCache{byProject: make(map[string]*secure.Buffer)}
}

func (c *secretsCache) get(projectID string) (map[string]string, bool, error) {
	buf, ok := c.byProject[projectID]
	if !ok {
		return nil, false, nil
	}
	locked, err := buf.Open()
	if err != nil {
		return nil, false, fmt.Errorf("failed to open cached secrets for project %s: %v", projectID, err)
	}
	defer locked.Destroy()

	var values map[string]string
	if err := json.Unmarshal(locked.Bytes(), &values); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached secrets for project %s: %v", projectID, err)
	}
	return values, true, nil
}

func (c *secretsCache) put(projectID string, values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode secrets for project %s: %v", projectID, err)
	}
	c.byProject[projectID] = secure.NewBuffer(data)
	return nil
}
