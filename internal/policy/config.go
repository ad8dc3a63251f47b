package policy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/concordia-platform/triage/internal/model"
	"github.com/concordia-platform/triage/internal/store"
)

// File is the operator-owned policies YAML file.
type File struct {
	Policies []model.Policy `yaml:"policies"`
}

// DefaultFile returns the built-in policy set used when no file is given.
func DefaultFile() *File {
	return &File{
		Policies: []model.Policy{
			{Name: "default", Threshold: 0.5, Mode: "standard", Active: true},
		},
	}
}

// LoadFileWithHash reads the policies YAML and returns it with the SHA-256
// hex of the raw file contents, for change detection and attestation of
// which configuration classified a signal.
func LoadFileWithHash(path string) (*File, string, error) {
	if path == "" {
		return DefaultFile(), "", nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read policies file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, "", fmt.Errorf("parse policies file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, "", err
	}

	sum := sha256.Sum256(raw)
	return &f, hex.EncodeToString(sum[:]), nil
}

// Validate rejects malformed policy definitions.
func (f *File) Validate() error {
	seen := make(map[string]bool)
	for i, p := range f.Policies {
		if p.Name == "" {
			return fmt.Errorf("policy %d: missing name", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("policy %q: duplicate name", p.Name)
		}
		seen[p.Name] = true
		if p.Threshold < 0 {
			return fmt.Errorf("policy %q: negative threshold", p.Name)
		}
	}
	return nil
}

// Sync pushes the file's policies into the store. Counters on existing
// policies survive; the file is the source of truth for everything else.
func (f *File) Sync(ctx context.Context, policies store.PolicyStore) error {
	for _, p := range f.Policies {
		if err := policies.PutPolicy(ctx, p); err != nil {
			return fmt.Errorf("sync policy %q: %w", p.Name, err)
		}
	}
	return nil
}
