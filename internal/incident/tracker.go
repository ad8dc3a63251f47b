// Package incident tracks operator-visible findings through their
// lifecycle: open → mitigating → closed. Transitions are strictly forward
// and closed is terminal.
package incident

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/concordia-platform/triage/internal/attest"
	"github.com/concordia-platform/triage/internal/model"
	"github.com/concordia-platform/triage/internal/store"
)

// Tracker owns incident status transitions. It is driven directly by
// operators and automation, independent of automatic escalation.
type Tracker struct {
	incidents store.IncidentStore
	ledger    *attest.Ledger
}

// NewTracker creates a tracker over the given store and ledger.
func NewTracker(incidents store.IncidentStore, ledger *attest.Ledger) *Tracker {
	return &Tracker{incidents: incidents, ledger: ledger}
}

// Create opens a new incident and attests its creation. open is the only
// initial state.
func (t *Tracker) Create(ctx context.Context, subject, contextLabel, description, action, priority string) (model.Incident, string, model.FederationStatus, error) {
	now := time.Now().UTC()
	inc := model.Incident{
		ID:          uuid.NewString(),
		Subject:     subject,
		Context:     contextLabel,
		Description: description,
		Action:      action,
		Priority:    priority,
		Status:      model.IncidentOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.incidents.CreateIncident(ctx, inc); err != nil {
		return model.Incident{}, "", model.FederationStatus{}, fmt.Errorf("create incident: %w", err)
	}

	hash, fed, err := t.attestStatus(ctx, inc.ID, model.IncidentOpen, now)
	if err != nil {
		return inc, hash, fed, err
	}
	return inc, hash, fed, nil
}

// Mitigate moves an open incident to mitigating. Deliberately lightweight:
// "in progress" is not yet a committed fact and is not attested.
func (t *Tracker) Mitigate(ctx context.Context, id string) (model.Incident, error) {
	inc, err := t.incidents.TransitionIncident(ctx, id,
		[]model.IncidentStatus{model.IncidentOpen},
		model.IncidentMitigating, time.Now().UTC())
	if err != nil {
		return model.Incident{}, fmt.Errorf("mitigate incident %s: %w", id, err)
	}
	return inc, nil
}

// Close terminates the incident from any non-closed state and attests the
// closure. A second close on the same incident fails with
// model.ErrInvalidTransition — closing is not idempotent.
func (t *Tracker) Close(ctx context.Context, id string) (model.Incident, string, model.FederationStatus, error) {
	now := time.Now().UTC()
	inc, err := t.incidents.TransitionIncident(ctx, id,
		[]model.IncidentStatus{model.IncidentOpen, model.IncidentMitigating},
		model.IncidentClosed, now)
	if err != nil {
		return model.Incident{}, "", model.FederationStatus{}, fmt.Errorf("close incident %s: %w", id, err)
	}

	hash, fed, err := t.attestStatus(ctx, inc.ID, model.IncidentClosed, now)
	if err != nil {
		// The incident stays closed; the caller learns the federation
		// is not yet double-confirmed.
		return inc, hash, fed, err
	}
	return inc, hash, fed, nil
}

// Get fetches an incident by ID.
func (t *Tracker) Get(ctx context.Context, id string) (model.Incident, error) {
	inc, ok, err := t.incidents.GetIncident(ctx, id)
	if err != nil {
		return model.Incident{}, err
	}
	if !ok {
		return model.Incident{}, model.Validationf("unknown incident %q", id)
	}
	return inc, nil
}

func (t *Tracker) attestStatus(ctx context.Context, id string, status model.IncidentStatus, at time.Time) (string, model.FederationStatus, error) {
	payload := map[string]any{
		"id":        id,
		"status":    string(status),
		"timestamp": at.Format(time.RFC3339Nano),
	}
	hash, err := t.ledger.Commit(ctx, "incident", id, payload)
	if err != nil {
		return hash, model.FederationStatus{}, err
	}
	fed, _ := t.ledger.Verify(ctx, "incident", id, hash)
	return hash, fed, nil
}
