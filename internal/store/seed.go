package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// LoadSeed reads a JSON document from path and installs it as the store
// root. The file holds the full tree, e.g. {"restaurants": {...},
// "drivers": {...}}. Intended for local runs and demos.
func LoadSeed(ctx context.Context, st Store, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	for key, value := range tree {
		if err := st.Set(ctx, key, value); err != nil {
			return fmt.Errorf("seed %q: %w", key, err)
		}
	}
	return nil
}
