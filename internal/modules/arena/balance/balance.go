// Package balance loads the battle rules table from disk, keeps it fresh
// while the server runs and optionally scores battles with a script.
package balance

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"

	"github.com/imfiit/arena/internal/modules/arena/battle"
)

// Load reads a rules file from the OS filesystem.
func Load(path string) (battle.Rules, error) {
	return LoadFS(afero.NewOsFs(), path)
}

// LoadFS reads a JSON rules file over battle.DefaultRules. Fields the file
// omits keep their defaults; an action listed in the file replaces the
// stock entry for that action. Unknown fields are rejected.
func LoadFS(fs afero.Fs, path string) (battle.Rules, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return battle.Rules{}, fmt.Errorf("read balance file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a rules document.
func Parse(data []byte) (battle.Rules, error) {
	rules := battle.DefaultRules()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rules); err != nil {
		return battle.Rules{}, fmt.Errorf("decode balance file: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return battle.Rules{}, fmt.Errorf("invalid balance file: %w", err)
	}
	return rules, nil
}
