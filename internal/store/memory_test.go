package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/concordia-platform/triage/internal/model"
)

func TestMemoryActivePolicy(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	if err := mem.PutPolicy(ctx, model.Policy{Name: "default", Threshold: 0.5, Active: true}); err != nil {
		t.Fatalf("PutPolicy: %v", err)
	}
	if err := mem.PutPolicy(ctx, model.Policy{Name: "paused", Threshold: 0.5, Active: false}); err != nil {
		t.Fatalf("PutPolicy: %v", err)
	}

	p, err := mem.ActivePolicy(ctx, "default")
	if err != nil {
		t.Fatalf("ActivePolicy: %v", err)
	}
	if p.Threshold != 0.5 {
		t.Errorf("Threshold = %v, want 0.5", p.Threshold)
	}

	if _, err := mem.ActivePolicy(ctx, "paused"); !errors.Is(err, model.ErrPolicyNotFound) {
		t.Errorf("inactive policy: err = %v, want ErrPolicyNotFound", err)
	}
	if _, err := mem.ActivePolicy(ctx, "missing"); !errors.Is(err, model.ErrPolicyNotFound) {
		t.Errorf("missing policy: err = %v, want ErrPolicyNotFound", err)
	}
}

func TestMemoryActiveRulesSortedAndFiltered(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	for _, r := range []model.Rule{
		{Key: "zebra", Weight: 0.5, Active: true},
		{Key: "alpha", Weight: 0.5, Active: true},
		{Key: "off", Weight: 0.5, Active: false},
	} {
		if err := mem.PutRule(ctx, r); err != nil {
			t.Fatalf("PutRule: %v", err)
		}
	}

	rules, err := mem.ActiveRules(ctx)
	if err != nil {
		t.Fatalf("ActiveRules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("rules = %d, want 2", len(rules))
	}
	if rules[0].Key != "alpha" || rules[1].Key != "zebra" {
		t.Errorf("order = [%s %s], want [alpha zebra]", rules[0].Key, rules[1].Key)
	}
}

func TestMemoryRecordInvocationUnknownKeyIsNoop(t *testing.T) {
	mem := NewMemory()
	if err := mem.RecordInvocation(context.Background(), "ghost"); err != nil {
		t.Errorf("RecordInvocation on unknown key: %v", err)
	}
}

func TestMemoryHistoryWindowing(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		ev := model.TransactionEvent{
			Subject:    "s1",
			Amount:     float64(i),
			OccurredAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := mem.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}

	evs, err := mem.RecentEvents(ctx, "s1", 3)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(evs) != 3 {
		t.Fatalf("events = %d, want 3", len(evs))
	}
	// Oldest-first ordering, trimmed to the newest three.
	if evs[0].Amount != 7 || evs[2].Amount != 9 {
		t.Errorf("window = [%v..%v], want [7..9]", evs[0].Amount, evs[2].Amount)
	}

	all, err := mem.RecentEvents(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(all) != 10 {
		t.Errorf("unlimited = %d, want 10", len(all))
	}
}

func TestMemoryHistoryCap(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	for i := 0; i < historyKeep+50; i++ {
		ev := model.TransactionEvent{Subject: "s1", Amount: float64(i)}
		if err := mem.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}
	evs, err := mem.RecentEvents(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(evs) != historyKeep {
		t.Errorf("retained = %d, want %d", len(evs), historyKeep)
	}
	// The oldest 50 fell off.
	if evs[0].Amount != 50 {
		t.Errorf("oldest retained = %v, want 50", evs[0].Amount)
	}
}

func TestMemoryHistoryIsolatedPerSubject(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	if err := mem.AppendEvent(ctx, model.TransactionEvent{Subject: "a", Amount: 1}); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	evs, err := mem.RecentEvents(ctx, "b", 0)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(evs) != 0 {
		t.Errorf("subject b sees %d events, want 0", len(evs))
	}
}

func TestMemoryTransitionIncident(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	inc := model.Incident{ID: "i-1", Status: model.IncidentOpen, CreatedAt: now, UpdatedAt: now}
	if err := mem.CreateIncident(ctx, inc); err != nil {
		t.Fatalf("CreateIncident: %v", err)
	}

	got, err := mem.TransitionIncident(ctx, "i-1",
		[]model.IncidentStatus{model.IncidentOpen}, model.IncidentMitigating, now.Add(time.Second))
	if err != nil {
		t.Fatalf("TransitionIncident: %v", err)
	}
	if got.Status != model.IncidentMitigating {
		t.Errorf("Status = %v, want mitigating", got.Status)
	}

	// Repeating from a now-disallowed state fails.
	_, err = mem.TransitionIncident(ctx, "i-1",
		[]model.IncidentStatus{model.IncidentOpen}, model.IncidentMitigating, now.Add(2*time.Second))
	if !errors.Is(err, model.ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}

	// Unknown id is a validation error, not a transition conflict.
	_, err = mem.TransitionIncident(ctx, "ghost",
		[]model.IncidentStatus{model.IncidentOpen}, model.IncidentClosed, now)
	if !errors.Is(err, model.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestMemoryConcurrentAppends(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 20; i++ {
				mem.AppendEvent(ctx, model.TransactionEvent{
					Subject: fmt.Sprintf("s%d", g),
					Amount:  float64(i),
				})
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}
	for g := 0; g < 8; g++ {
		evs, err := mem.RecentEvents(ctx, fmt.Sprintf("s%d", g), 0)
		if err != nil {
			t.Fatalf("RecentEvents: %v", err)
		}
		if len(evs) != 20 {
			t.Errorf("subject s%d: events = %d, want 20", g, len(evs))
		}
	}
}

func TestMemoryTrustUpsert(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	first := model.TrustRecord{Subject: "s1", BiometricHash: "bio-1", TrustScore: 0.5, Verified: true}
	if err := mem.UpsertTrust(ctx, first); err != nil {
		t.Fatalf("UpsertTrust: %v", err)
	}
	second := model.TrustRecord{Subject: "s1", BiometricHash: "bio-2", TrustScore: 0.8, Verified: true}
	if err := mem.UpsertTrust(ctx, second); err != nil {
		t.Fatalf("UpsertTrust: %v", err)
	}

	got, ok, err := mem.GetTrust(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("GetTrust: ok=%v err=%v", ok, err)
	}
	if got.BiometricHash != "bio-2" || got.TrustScore != 0.8 {
		t.Errorf("record = %+v, want last write", got)
	}
}
