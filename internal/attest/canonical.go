// Package attest implements the double-federation attestation ledger:
// content-addressed hashes of committed decisions, written under distinct
// signer identities into two append-only, hash-chained registries.
package attest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CanonicalJSON serializes a payload with a reproducible byte layout.
// encoding/json emits map keys in lexicographic order at every nesting
// level, so two independent commits of the same payload hash identically.
// This ordering rule is part of the ledger contract: a hash recomputed from
// the same payload on another node must match byte for byte.
func CanonicalJSON(payload map[string]any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("attest: canonicalize payload: %w", err)
	}
	return b, nil
}

// HashPayload returns "sha256:<hex>" over the canonical serialization.
func HashPayload(payload map[string]any) (string, error) {
	b, err := CanonicalJSON(payload)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes returns "sha256:<hex>" of the given bytes.
func HashBytes(b []byte) string {
	h := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(h[:])
}
