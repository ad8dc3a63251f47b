// Package escalate chains severity outcomes into their secondary writes:
// alerts, quarantine events, webhook dispatch, and ledger attestation.
// It is the single chokepoint through which automatic quarantine occurs.
package escalate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/concordia-platform/triage/internal/attest"
	"github.com/concordia-platform/triage/internal/model"
	"github.com/concordia-platform/triage/internal/sentinel"
	"github.com/concordia-platform/triage/internal/store"
)

// Input is one classification outcome to escalate.
type Input struct {
	Module   string
	Subject  string
	Severity model.Severity
	Action   model.Action
	Signal   map[string]any
}

// Outcome reports what the escalation chain produced.
type Outcome struct {
	AlertID      string
	QuarantineID string
	Escalated    bool
	Hash         string
	Federation   model.FederationStatus
}

// Coordinator performs the escalation chain. It never feeds back into
// classification.
type Coordinator struct {
	alerts     store.AlertStore
	quarantine store.QuarantineStore
	ledger     *attest.Ledger
	dispatcher *sentinel.Dispatcher
	logger     *slog.Logger
}

// NewCoordinator wires the escalation chain. dispatcher may be nil.
func NewCoordinator(alerts store.AlertStore, quarantine store.QuarantineStore, ledger *attest.Ledger, dispatcher *sentinel.Dispatcher, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		alerts:     alerts,
		quarantine: quarantine,
		ledger:     ledger,
		dispatcher: dispatcher,
		logger:     logger.With("component", "escalate"),
	}
}

// Escalate writes the alert, quarantines on critical, and commits the
// decision hash to both registries.
//
// Failure semantics: an alert write failure fails the whole operation —
// there is no escalation without its alert. Once the alert stands, a
// quarantine or attestation failure surfaces as
// model.ErrAttestationIncomplete: the escalation happened, the decision is
// not yet double-confirmed, and nothing is downgraded or rolled back.
func (c *Coordinator) Escalate(ctx context.Context, in Input) (Outcome, error) {
	now := time.Now().UTC()
	alert := model.Alert{
		ID:             uuid.NewString(),
		Module:         in.Module,
		Subject:        in.Subject,
		Severity:       in.Severity,
		Action:         in.Action,
		Signal:         in.Signal,
		AutoResolved:   in.Action.AutoResolved(),
		RequiresReview: model.SeverityRank[in.Severity] >= model.SeverityRank[model.SeverityMedium],
		CreatedAt:      now,
	}
	if err := c.alerts.PutAlert(ctx, alert); err != nil {
		return Outcome{}, fmt.Errorf("write alert: %w", err)
	}

	out := Outcome{AlertID: alert.ID}

	if in.Severity == model.SeverityCritical {
		q := model.QuarantineEvent{
			ID:          uuid.NewString(),
			Subject:     in.Subject,
			Source:      in.Module,
			Severity:    in.Severity,
			Signal:      in.Signal,
			AlertID:     alert.ID,
			Quarantined: true,
			CreatedAt:   now,
		}
		if err := c.quarantine.PutQuarantine(ctx, q); err != nil {
			return out, fmt.Errorf("%w: quarantine write after alert %s: %v", model.ErrAttestationIncomplete, alert.ID, err)
		}
		out.QuarantineID = q.ID
		out.Escalated = true
	}

	// Subject-independent identifying fields + outcome + timestamp.
	payload := map[string]any{
		"alert_id":  alert.ID,
		"module":    in.Module,
		"severity":  string(in.Severity),
		"action":    string(in.Action),
		"timestamp": now.Format(time.RFC3339Nano),
	}
	hash, err := c.ledger.Commit(ctx, "alert", alert.ID, payload)
	out.Hash = hash
	if err != nil {
		c.logger.Warn("attestation incomplete", "alert_id", alert.ID, "err", err)
		return out, err
	}

	fed, err := c.ledger.Verify(ctx, "alert", alert.ID, hash)
	if err == nil {
		out.Federation = fed
	}

	c.dispatcher.Dispatch(sentinel.Event{
		Timestamp: now.Format(time.RFC3339Nano),
		Module:    in.Module,
		Subject:   in.Subject,
		Severity:  string(in.Severity),
		Action:    string(in.Action),
		AlertID:   alert.ID,
		Hash:      hash,
	})

	c.logger.Info("escalated",
		"module", in.Module,
		"severity", in.Severity,
		"action", in.Action,
		"alert_id", alert.ID,
		"quarantined", out.Escalated,
	)
	return out, nil
}

// ManualQuarantine is the operator-originated path, outside automatic
// escalation. It writes the quarantine event and attests it; there is no
// alert, so a write failure here fails the whole call.
func (c *Coordinator) ManualQuarantine(ctx context.Context, subject, source string, signal map[string]any, severity model.Severity) (model.QuarantineEvent, string, model.FederationStatus, error) {
	now := time.Now().UTC()
	q := model.QuarantineEvent{
		ID:          uuid.NewString(),
		Subject:     subject,
		Source:      source,
		Severity:    severity,
		Signal:      signal,
		Quarantined: true,
		CreatedAt:   now,
	}
	if err := c.quarantine.PutQuarantine(ctx, q); err != nil {
		return model.QuarantineEvent{}, "", model.FederationStatus{}, fmt.Errorf("write quarantine: %w", err)
	}

	payload := map[string]any{
		"quarantine_id": q.ID,
		"source":        source,
		"severity":      string(severity),
		"timestamp":     now.Format(time.RFC3339Nano),
	}
	hash, err := c.ledger.Commit(ctx, "quarantine", q.ID, payload)
	if err != nil {
		return q, hash, model.FederationStatus{}, err
	}

	fed, _ := c.ledger.Verify(ctx, "quarantine", q.ID, hash)
	return q, hash, fed, nil
}
