package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a plan from disk, accepting either JSON (the canonical
// wire format) or YAML (a convenience authoring format), and validates it
// against the same schema and semantic checks either way. This is CLI
// harness tooling, not a plan editor: it never round-trips or mutates a
// stored plan, only turns a file on disk into the one immutable value the
// engine consumes.
func LoadFile(path string) (*Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plan: read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc interface{}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("plan: parse YAML %s: %w", path, err)
		}
		raw, err = json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("plan: re-encode %s as JSON: %w", path, err)
		}
	}

	return Validate(raw)
}
