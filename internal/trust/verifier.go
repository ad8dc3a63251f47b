// Package trust upserts biometric/device-bound trust records and computes
// the trust score consumed by the risk scorer and escalation coordinator.
package trust

import (
	"context"
	"fmt"
	"time"

	"github.com/concordia-platform/triage/internal/attest"
	"github.com/concordia-platform/triage/internal/model"
	"github.com/concordia-platform/triage/internal/store"
)

// Scorer computes a trust score for a verification. prev is the subject's
// previous record, nil on first verification.
type Scorer func(prev *model.TrustRecord, biometricHash, deviceFingerprint string) float64

// DefaultScorer is the documented default: a verified subject starts at
// 0.5, a bound device adds 0.3, and a re-verification with an unchanged
// biometric hash adds 0.2 for consistency. Range [0.5, 1.0].
func DefaultScorer(prev *model.TrustRecord, biometricHash, deviceFingerprint string) float64 {
	score := 0.5
	if deviceFingerprint != "" {
		score += 0.3
	}
	if prev != nil && prev.BiometricHash == biometricHash {
		score += 0.2
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// Verifier upserts trust records; one live record per subject, last write
// wins.
type Verifier struct {
	trust  store.TrustStore
	ledger *attest.Ledger
	scorer Scorer
}

// NewVerifier creates a Verifier. A nil scorer falls back to DefaultScorer.
func NewVerifier(trust store.TrustStore, ledger *attest.Ledger, scorer Scorer) *Verifier {
	if scorer == nil {
		scorer = DefaultScorer
	}
	return &Verifier{trust: trust, ledger: ledger, scorer: scorer}
}

// Verify upserts the subject's trust record and attests the verification.
func (v *Verifier) Verify(ctx context.Context, subject, biometricHash, deviceFingerprint string) (model.TrustRecord, string, model.FederationStatus, error) {
	var prev *model.TrustRecord
	if existing, ok, err := v.trust.GetTrust(ctx, subject); err != nil {
		return model.TrustRecord{}, "", model.FederationStatus{}, fmt.Errorf("read trust record: %w", err)
	} else if ok {
		prev = &existing
	}

	now := time.Now().UTC()
	rec := model.TrustRecord{
		Subject:           subject,
		BiometricHash:     biometricHash,
		DeviceFingerprint: deviceFingerprint,
		Verified:          true,
		TrustScore:        v.scorer(prev, biometricHash, deviceFingerprint),
		VerifiedAt:        now,
	}
	if err := v.trust.UpsertTrust(ctx, rec); err != nil {
		return model.TrustRecord{}, "", model.FederationStatus{}, fmt.Errorf("upsert trust record: %w", err)
	}

	payload := map[string]any{
		"subject":        subject,
		"biometric_hash": biometricHash,
		"verified":       true,
		"trust_score":    rec.TrustScore,
		"timestamp":      now.Format(time.RFC3339Nano),
	}
	hash, err := v.ledger.Commit(ctx, "trust", subject, payload)
	if err != nil {
		return rec, hash, model.FederationStatus{}, err
	}
	fed, _ := v.ledger.Verify(ctx, "trust", subject, hash)
	return rec, hash, fed, nil
}

// Score returns the subject's current trust score, or 0 when the subject
// has never verified.
func (v *Verifier) Score(ctx context.Context, subject string) (float64, error) {
	rec, ok, err := v.trust.GetTrust(ctx, subject)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return rec.TrustScore, nil
}
