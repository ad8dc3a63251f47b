package attest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/concordia-platform/triage/internal/model"
)

// GenesisHash is the prev_hash for the first entry in a new registry file.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// Registry is one append-only federation registry.
type Registry interface {
	Name() string
	Append(ctx context.Context, rec model.AttestationRecord) error
	// Find returns the record matching the exact (entityType, entityID,
	// hash) triple, or nil if the registry has never seen it. Absence is
	// not an error.
	Find(ctx context.Context, entityType, entityID, hash string) (*model.AttestationRecord, error)
}

// registryEntry is one line in the hash-chained JSONL registry file.
// All fields are structs (no map[string]any) so json.Marshal field order
// is deterministic and line hashes are reproducible.
type registryEntry struct {
	Timestamp  string `json:"ts"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Hash       string `json:"hash"`
	Signer     string `json:"signer"`
	PrevHash   string `json:"prev_hash"`
}

// FileRegistry is an append-only JSONL registry with SHA-256 hash chaining.
// Each entry's prev_hash is the hash of the previous entry's JSON line, so
// the file is tamper-evident end to end. An in-memory triple index built at
// open time keeps federation checks off the disk.
type FileRegistry struct {
	name     string
	path     string
	file     *os.File
	prevHash string
	index    map[tripleKey]indexedRecord
	mu       sync.Mutex
}

type tripleKey struct {
	entityType string
	entityID   string
	hash       string
}

type indexedRecord struct {
	signer     string
	recordedAt time.Time
}

// OpenFileRegistry opens (or creates) a registry file for appending.
// An existing file is scanned to rebuild the triple index and recover the
// chain tail.
func OpenFileRegistry(name, path string) (*FileRegistry, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("registry %s: create directory: %w", name, err)
	}

	prevHash := GenesisHash
	index := make(map[tripleKey]indexedRecord)

	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("registry %s: read existing file: %w", name, err)
		}
		scanner := bufio.NewScanner(f)
		var lastLine []byte
		for scanner.Scan() {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())

			var e registryEntry
			if err := json.Unmarshal(line, &e); err != nil {
				f.Close()
				return nil, fmt.Errorf("registry %s: corrupt entry: %w", name, err)
			}
			at, _ := time.Parse(time.RFC3339Nano, e.Timestamp)
			index[tripleKey{e.EntityType, e.EntityID, e.Hash}] = indexedRecord{signer: e.Signer, recordedAt: at}
			lastLine = line
		}
		f.Close()
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("registry %s: scan existing file: %w", name, err)
		}
		if len(lastLine) > 0 {
			prevHash = HashBytes(lastLine)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("registry %s: open file: %w", name, err)
	}

	return &FileRegistry{
		name:     name,
		path:     path,
		file:     file,
		prevHash: prevHash,
		index:    index,
	}, nil
}

// Name returns the registry's name ("local" or "continental").
func (r *FileRegistry) Name() string { return r.name }

// Append writes the record as a chained JSONL line and syncs to disk.
func (r *FileRegistry) Append(_ context.Context, rec model.AttestationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := rec.RecordedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	entry := registryEntry{
		Timestamp:  at.UTC().Format(time.RFC3339Nano),
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		Hash:       rec.Hash,
		Signer:     rec.Signer,
		PrevHash:   r.prevHash,
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("registry %s: marshal entry: %w", r.name, err)
	}
	if _, err := r.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("registry %s: write entry: %w", r.name, err)
	}
	if err := r.file.Sync(); err != nil {
		return fmt.Errorf("registry %s: sync: %w", r.name, err)
	}

	r.prevHash = HashBytes(line)
	r.index[tripleKey{rec.EntityType, rec.EntityID, rec.Hash}] = indexedRecord{signer: rec.Signer, recordedAt: at}
	return nil
}

// Find looks up the exact triple in the in-memory index.
func (r *FileRegistry) Find(_ context.Context, entityType, entityID, hash string) (*model.AttestationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.index[tripleKey{entityType, entityID, hash}]
	if !ok {
		return nil, nil
	}
	return &model.AttestationRecord{
		EntityType: entityType,
		EntityID:   entityID,
		Hash:       hash,
		Signer:     rec.signer,
		RecordedAt: rec.recordedAt,
	}, nil
}

// Close flushes and closes the underlying file.
func (r *FileRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}
