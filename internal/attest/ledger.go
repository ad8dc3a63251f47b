package attest

import (
	"context"
	"fmt"
	"time"

	"github.com/concordia-platform/triage/internal/model"
)

// Ledger commits decision hashes into two registries under distinct signer
// identities. A decision is fully federated only when both registries hold
// the same (entity_type, entity_id, hash) triple.
type Ledger struct {
	local             Registry
	continental       Registry
	localSigner       Signer
	continentalSigner Signer
}

// NewLedger pairs the two registries with their signers.
func NewLedger(local, continental Registry, localSigner, continentalSigner Signer) *Ledger {
	return &Ledger{
		local:             local,
		continental:       continental,
		localSigner:       localSigner,
		continentalSigner: continentalSigner,
	}
}

// Commit hashes the canonical payload and writes one record per registry.
// The two writes are issued concurrently and both awaited. On any registry
// failure the computed hash is still returned alongside
// model.ErrAttestationIncomplete: the decision is made, the federation is
// not yet double-confirmed, and the caller owns reconciliation.
func (l *Ledger) Commit(ctx context.Context, entityType, entityID string, payload map[string]any) (string, error) {
	hash, err := HashPayload(payload)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	write := func(reg Registry, signer Signer, errc chan<- error) {
		errc <- reg.Append(ctx, model.AttestationRecord{
			EntityType: entityType,
			EntityID:   entityID,
			Hash:       hash,
			Signer:     signer.Identity(),
			RecordedAt: now,
		})
	}

	localErrc := make(chan error, 1)
	continentalErrc := make(chan error, 1)
	go write(l.local, l.localSigner, localErrc)
	go write(l.continental, l.continentalSigner, continentalErrc)

	localErr := <-localErrc
	continentalErr := <-continentalErrc

	switch {
	case localErr != nil && continentalErr != nil:
		return hash, fmt.Errorf("%w: local: %v; continental: %v", model.ErrAttestationIncomplete, localErr, continentalErr)
	case localErr != nil:
		return hash, fmt.Errorf("%w: local: %v", model.ErrAttestationIncomplete, localErr)
	case continentalErr != nil:
		return hash, fmt.Errorf("%w: continental: %v", model.ErrAttestationIncomplete, continentalErr)
	}
	return hash, nil
}

// Verify reports the federation status of the exact triple. A triple absent
// from one or both registries yields Verified=false, never an error; a
// commit still in flight legitimately reads as unverified.
func (l *Ledger) Verify(ctx context.Context, entityType, entityID, hash string) (model.FederationStatus, error) {
	localRec, err := l.local.Find(ctx, entityType, entityID, hash)
	if err != nil {
		return model.FederationStatus{}, err
	}
	continentalRec, err := l.continental.Find(ctx, entityType, entityID, hash)
	if err != nil {
		return model.FederationStatus{}, err
	}

	status := model.FederationStatus{
		Verified: localRec != nil && continentalRec != nil,
	}
	if localRec != nil {
		at := localRec.RecordedAt
		status.LocalAt = &at
	}
	if continentalRec != nil {
		at := continentalRec.RecordedAt
		status.ContinentalAt = &at
	}
	return status, nil
}
