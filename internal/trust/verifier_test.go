package trust

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/concordia-platform/triage/internal/attest"
	"github.com/concordia-platform/triage/internal/model"
	"github.com/concordia-platform/triage/internal/store"
)

func newTestVerifier(t *testing.T) (*Verifier, *store.Memory) {
	t.Helper()
	dir := t.TempDir()
	local, err := attest.OpenFileRegistry("local", filepath.Join(dir, "local.jsonl"))
	if err != nil {
		t.Fatalf("open local: %v", err)
	}
	t.Cleanup(func() { local.Close() })
	continental, err := attest.OpenFileRegistry("continental", filepath.Join(dir, "continental.jsonl"))
	if err != nil {
		t.Fatalf("open continental: %v", err)
	}
	t.Cleanup(func() { continental.Close() })
	ledger := attest.NewLedger(local, continental,
		attest.StaticSigner(attest.LocalSignerID), attest.StaticSigner(attest.ContinentalSignerID))

	mem := store.NewMemory()
	return NewVerifier(mem, ledger, nil), mem
}

func TestDefaultScorer(t *testing.T) {
	prev := &model.TrustRecord{Subject: "s", BiometricHash: "bio-1"}
	tests := []struct {
		name      string
		prev      *model.TrustRecord
		biometric string
		device    string
		want      float64
	}{
		{"first verification, no device", nil, "bio-1", "", 0.5},
		{"first verification with device", nil, "bio-1", "dev-1", 0.8},
		{"re-verification, same biometric", prev, "bio-1", "", 0.7},
		{"re-verification, same biometric with device", prev, "bio-1", "dev-1", 1.0},
		{"re-verification, changed biometric", prev, "bio-2", "", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultScorer(tt.prev, tt.biometric, tt.device)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("DefaultScorer = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifyFirstTime(t *testing.T) {
	v, _ := newTestVerifier(t)

	rec, hash, fed, err := v.Verify(context.Background(), "subj-1", "bio-1", "dev-1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !rec.Verified {
		t.Error("Verified = false")
	}
	if rec.TrustScore != 0.8 {
		t.Errorf("TrustScore = %v, want 0.8", rec.TrustScore)
	}
	if hash == "" || !fed.Verified {
		t.Errorf("verification not attested: hash=%q fed=%+v", hash, fed)
	}
}

func TestVerifyUpsertLastWriteWins(t *testing.T) {
	v, mem := newTestVerifier(t)
	ctx := context.Background()

	if _, _, _, err := v.Verify(ctx, "subj-1", "bio-1", "dev-1"); err != nil {
		t.Fatalf("first Verify: %v", err)
	}
	rec, _, _, err := v.Verify(ctx, "subj-1", "bio-2", "")
	if err != nil {
		t.Fatalf("second Verify: %v", err)
	}

	// Changed biometric forfeits the consistency bonus and the device bonus.
	if rec.TrustScore != 0.5 {
		t.Errorf("TrustScore = %v, want 0.5", rec.TrustScore)
	}

	stored, ok, err := mem.GetTrust(ctx, "subj-1")
	if err != nil || !ok {
		t.Fatalf("GetTrust: ok=%v err=%v", ok, err)
	}
	if stored.BiometricHash != "bio-2" {
		t.Errorf("BiometricHash = %q, want bio-2 (last write wins)", stored.BiometricHash)
	}
	if stored.DeviceFingerprint != "" {
		t.Errorf("DeviceFingerprint = %q, want cleared", stored.DeviceFingerprint)
	}
}

func TestVerifyConsistencyBonus(t *testing.T) {
	v, _ := newTestVerifier(t)
	ctx := context.Background()

	if _, _, _, err := v.Verify(ctx, "subj-1", "bio-1", ""); err != nil {
		t.Fatalf("first Verify: %v", err)
	}
	rec, _, _, err := v.Verify(ctx, "subj-1", "bio-1", "")
	if err != nil {
		t.Fatalf("second Verify: %v", err)
	}
	if rec.TrustScore != 0.7 {
		t.Errorf("TrustScore = %v, want 0.7 with consistency bonus", rec.TrustScore)
	}
}

func TestScoreUnverifiedSubject(t *testing.T) {
	v, _ := newTestVerifier(t)

	score, err := v.Score(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score != 0 {
		t.Errorf("Score = %v, want 0 for unverified subject", score)
	}
}

func TestCustomScorer(t *testing.T) {
	dir := t.TempDir()
	local, err := attest.OpenFileRegistry("local", filepath.Join(dir, "l.jsonl"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer local.Close()
	continental, err := attest.OpenFileRegistry("continental", filepath.Join(dir, "c.jsonl"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer continental.Close()
	ledger := attest.NewLedger(local, continental,
		attest.StaticSigner(attest.LocalSignerID), attest.StaticSigner(attest.ContinentalSignerID))

	fixed := func(*model.TrustRecord, string, string) float64 { return 0.42 }
	v := NewVerifier(store.NewMemory(), ledger, fixed)

	rec, _, _, err := v.Verify(context.Background(), "subj-1", "bio-1", "dev-1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if rec.TrustScore != 0.42 {
		t.Errorf("TrustScore = %v, want custom scorer's 0.42", rec.TrustScore)
	}
}
