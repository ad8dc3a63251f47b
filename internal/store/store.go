// Package store abstracts the shared external store holding all durable
// triage state. Every call takes a context and is bounded by the backend's
// configured timeout; a timeout or transport failure surfaces as
// model.ErrStoreUnavailable and is never retried here.
package store

import (
	"context"
	"time"

	"github.com/concordia-platform/triage/internal/model"
)

// PolicyStore reads classifier policies and bumps their execution counters.
// Policies themselves are owned by configuration management; the engine
// only reads them and records executions.
type PolicyStore interface {
	// ActivePolicy returns the active policy with the given name, or
	// model.ErrPolicyNotFound if none matches.
	ActivePolicy(ctx context.Context, name string) (model.Policy, error)
	PutPolicy(ctx context.Context, p model.Policy) error
	// RecordExecution atomically increments the policy's execution counter
	// and stamps the last-execution time.
	RecordExecution(ctx context.Context, name string, at time.Time) error
}

// RuleStore reads activation rules and bumps their invocation counters.
type RuleStore interface {
	ActiveRules(ctx context.Context) ([]model.Rule, error)
	PutRule(ctx context.Context, r model.Rule) error
	// RecordInvocation atomically increments the rule's invocation counter.
	RecordInvocation(ctx context.Context, key string) error
}

// AlertStore persists escalation alerts.
type AlertStore interface {
	PutAlert(ctx context.Context, a model.Alert) error
	GetAlert(ctx context.Context, id string) (model.Alert, bool, error)
}

// QuarantineStore persists quarantine events.
type QuarantineStore interface {
	PutQuarantine(ctx context.Context, q model.QuarantineEvent) error
}

// IncidentStore persists incidents and owns their status transitions.
type IncidentStore interface {
	CreateIncident(ctx context.Context, inc model.Incident) error
	GetIncident(ctx context.Context, id string) (model.Incident, bool, error)
	// TransitionIncident moves the incident from one of the allowed
	// statuses to the target status in a single read-modify-write step.
	// A current status outside allowedFrom fails with
	// model.ErrInvalidTransition; concurrent transitions on the same
	// incident resolve to exactly one winner.
	TransitionIncident(ctx context.Context, id string, allowedFrom []model.IncidentStatus, to model.IncidentStatus, at time.Time) (model.Incident, error)
}

// TrustStore holds one live trust record per subject.
type TrustStore interface {
	UpsertTrust(ctx context.Context, rec model.TrustRecord) error
	GetTrust(ctx context.Context, subject string) (model.TrustRecord, bool, error)
}

// HistoryStore holds the per-subject transaction history the risk scorer
// reads. Scored events are appended so velocity and deviation factors see
// them on later calls.
type HistoryStore interface {
	RecentEvents(ctx context.Context, subject string, limit int) ([]model.TransactionEvent, error)
	AppendEvent(ctx context.Context, ev model.TransactionEvent) error
}

// ReactionStore persists rule-activation reactions.
type ReactionStore interface {
	PutReaction(ctx context.Context, r model.Reaction) error
}

// Stores bundles every table interface a handler needs.
type Stores struct {
	Policies   PolicyStore
	Rules      RuleStore
	Alerts     AlertStore
	Quarantine QuarantineStore
	Incidents  IncidentStore
	Trust      TrustStore
	History    HistoryStore
	Reactions  ReactionStore
}

// historyKeep caps how many events a subject's history retains.
const historyKeep = 200
