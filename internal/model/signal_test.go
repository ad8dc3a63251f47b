package model

import (
	"testing"
	"time"
)

func TestParseSignalTransaction(t *testing.T) {
	sig := ParseSignal(map[string]any{
		"kind":           "transaction",
		"amount":         500.0,
		"payment_method": "card",
		"status":         "completed",
		"occurred_at":    "2025-06-01T03:00:00Z",
	})
	if sig.Kind != SignalTransaction {
		t.Fatalf("Kind = %v, want transaction", sig.Kind)
	}
	tx := sig.Transaction
	if tx == nil {
		t.Fatal("Transaction nil")
	}
	if tx.Amount != 500 || tx.PaymentMethod != "card" || tx.Status != "completed" {
		t.Errorf("tx = %+v", tx)
	}
	want := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	if !tx.OccurredAt.Equal(want) {
		t.Errorf("OccurredAt = %v, want %v", tx.OccurredAt, want)
	}
}

func TestParseSignalCoercion(t *testing.T) {
	// Integer amounts and garbage timestamps coerce, never error.
	sig := ParseSignal(map[string]any{
		"kind":        "transaction",
		"amount":      42,
		"occurred_at": "not-a-time",
	})
	if sig.Transaction.Amount != 42 {
		t.Errorf("Amount = %v, want 42", sig.Transaction.Amount)
	}
	if !sig.Transaction.OccurredAt.IsZero() {
		t.Errorf("OccurredAt = %v, want zero", sig.Transaction.OccurredAt)
	}
}

func TestParseSignalBehavior(t *testing.T) {
	sig := ParseSignal(map[string]any{
		"kind":   "behavior",
		"deltas": map[string]any{"typing_speed": 0.9, "mouse_entropy": 0.2},
	})
	if sig.Kind != SignalBehavior {
		t.Fatalf("Kind = %v, want behavior", sig.Kind)
	}
	if sig.Behavior.Deltas["typing_speed"] != 0.9 {
		t.Errorf("Deltas = %v", sig.Behavior.Deltas)
	}
}

func TestParseSignalUnknownKindIsOpaque(t *testing.T) {
	raw := map[string]any{"kind": "telemetry", "anything": true}
	sig := ParseSignal(raw)
	if sig.Kind != SignalOpaque {
		t.Errorf("Kind = %v, want opaque", sig.Kind)
	}
	if sig.Raw["anything"] != true {
		t.Error("Raw payload lost")
	}
}

func TestParseSignalNil(t *testing.T) {
	sig := ParseSignal(nil)
	if sig.Kind != SignalOpaque {
		t.Errorf("Kind = %v, want opaque", sig.Kind)
	}
	if sig.Raw == nil {
		t.Error("Raw must be non-nil")
	}
}

func TestActionFor(t *testing.T) {
	tests := []struct {
		severity Severity
		want     Action
	}{
		{SeverityLow, ActionLog},
		{SeverityMedium, ActionWarn},
		{SeverityHigh, ActionQuarantine},
		{SeverityCritical, ActionQuarantineImmediate},
	}
	for _, tt := range tests {
		if got := ActionFor(tt.severity); got != tt.want {
			t.Errorf("ActionFor(%v) = %v, want %v", tt.severity, got, tt.want)
		}
	}
}

func TestAutoResolved(t *testing.T) {
	if !ActionLog.AutoResolved() || !ActionWarn.AutoResolved() {
		t.Error("log and warn must auto-resolve")
	}
	if ActionQuarantine.AutoResolved() || ActionQuarantineImmediate.AutoResolved() {
		t.Error("quarantine actions must not auto-resolve")
	}
}

func TestSeverityValid(t *testing.T) {
	for _, s := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		if !s.Valid() {
			t.Errorf("%v invalid", s)
		}
	}
	if Severity("severe").Valid() {
		t.Error("unknown severity validated")
	}
}
