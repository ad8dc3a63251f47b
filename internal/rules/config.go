package rules

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/concordia-platform/triage/internal/model"
	"github.com/concordia-platform/triage/internal/store"
)

// File is the operator-owned rules YAML file.
type File struct {
	Rules []model.Rule `yaml:"rules"`
}

// LoadFile reads and validates a rules YAML file. An empty path yields an
// empty rule set: the engine runs fine with zero rules.
func LoadFile(path string) (*File, error) {
	if path == "" {
		return &File{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate rejects malformed rule definitions.
func (f *File) Validate() error {
	seen := make(map[string]bool)
	for i, r := range f.Rules {
		if r.Key == "" {
			return fmt.Errorf("rule %d: missing key", i)
		}
		if seen[r.Key] {
			return fmt.Errorf("rule %q: duplicate key", r.Key)
		}
		seen[r.Key] = true
		if r.Weight < 0 {
			return fmt.Errorf("rule %q: negative weight", r.Key)
		}
	}
	return nil
}

// Sync pushes the file's rules into the store, preserving counters.
func (f *File) Sync(ctx context.Context, rules store.RuleStore) error {
	for _, r := range f.Rules {
		if err := rules.PutRule(ctx, r); err != nil {
			return fmt.Errorf("sync rule %q: %w", r.Key, err)
		}
	}
	return nil
}
