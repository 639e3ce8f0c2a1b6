// Package manifestio is the external-parser boundary spec.md §1 calls out:
// it turns a TOML manifest file into the key/value bag that
// internal/manifest.FromValues consumes. The TOML tokenizer itself
// (github.com/BurntSushi/toml) is the "external parser"; this package's job
// is purely to hand its output to C1 in the shape it expects.
package manifestio

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/3leaps/jobd/internal/manifest"
)

// LoadFile reads a single TOML manifest file and returns a validated record.
func LoadFile(path string) (*manifest.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return LoadBytes(data, path)
}

// LoadBytes parses raw TOML bytes into a validated record. path is used only
// for error messages.
func LoadBytes(data []byte, path string) (*manifest.Record, error) {
	bag := make(map[string]any)
	if _, err := toml.Decode(string(data), &bag); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	record, err := manifest.FromValues(normalizeBag(bag))
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return record, nil
}

// normalizeBag returns bag unchanged. BurntSushi/toml already decodes arrays
// as []interface{} and integers as int64, which are the shapes
// internal/manifest.FromValues expects; the function exists as a single
// seam in case the tokenizer's output shape needs normalizing later.
func normalizeBag(bag map[string]any) map[string]any {
	return bag
}
