package model

import "time"

// Severity classifies a risk score relative to a policy threshold.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityRank maps severities to comparable integers for monotonic escalation.
var SeverityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	_, ok := SeverityRank[s]
	return ok
}

// Action is the enforcement outcome recommended for a severity.
type Action string

const (
	ActionLog                 Action = "log"
	ActionWarn                Action = "warn"
	ActionQuarantine          Action = "quarantine"
	ActionQuarantineImmediate Action = "quarantine_immediate"
)

// ActionFor maps a severity to its deterministic action.
func ActionFor(s Severity) Action {
	switch s {
	case SeverityCritical:
		return ActionQuarantineImmediate
	case SeverityHigh:
		return ActionQuarantine
	case SeverityMedium:
		return ActionWarn
	default:
		return ActionLog
	}
}

// AutoResolved reports whether an action closes out without operator review.
func (a Action) AutoResolved() bool {
	return a == ActionLog || a == ActionWarn
}

// Policy is one named classifier configuration. Owned by configuration
// management; the engine reads it and bumps execution counters only.
type Policy struct {
	Name           string     `json:"name"            yaml:"name"`
	Threshold      float64    `json:"threshold"       yaml:"threshold"`
	Mode           string     `json:"mode"            yaml:"mode"`
	Active         bool       `json:"active"          yaml:"active"`
	ExecutionCount int64      `json:"execution_count" yaml:"-"`
	LastExecutedAt *time.Time `json:"last_executed_at,omitempty" yaml:"-"`
}

// Rule is one weighted, independently-toggleable activation rule.
type Rule struct {
	Key             string  `json:"key"              yaml:"key"`
	Weight          float64 `json:"weight"           yaml:"weight"`
	Effect          string  `json:"effect"           yaml:"effect"`
	Active          bool    `json:"active"           yaml:"active"`
	InvocationCount int64   `json:"invocation_count" yaml:"-"`
}

// Alert is the record every escalation produces, auto-resolved or not.
type Alert struct {
	ID             string         `json:"id"`
	Module         string         `json:"module"`
	Subject        string         `json:"subject,omitempty"`
	Severity       Severity       `json:"severity"`
	Action         Action         `json:"action"`
	Signal         map[string]any `json:"signal,omitempty"`
	AutoResolved   bool           `json:"auto_resolved"`
	RequiresReview bool           `json:"requires_review"`
	CreatedAt      time.Time      `json:"created_at"`
}

// QuarantineEvent records an automatic or operator-initiated quarantine.
type QuarantineEvent struct {
	ID          string         `json:"id"`
	Subject     string         `json:"subject,omitempty"`
	Source      string         `json:"source"`
	Severity    Severity       `json:"severity"`
	Signal      map[string]any `json:"signal,omitempty"`
	AlertID     string         `json:"alert_id,omitempty"`
	Quarantined bool           `json:"quarantined"`
	CreatedAt   time.Time      `json:"created_at"`
}

// IncidentStatus is the lifecycle state of an operator-visible finding.
type IncidentStatus string

const (
	IncidentOpen       IncidentStatus = "open"
	IncidentMitigating IncidentStatus = "mitigating"
	IncidentClosed     IncidentStatus = "closed"
)

// Incident is an operator-facing finding with explicit lifecycle tracking,
// distinct from automatic alerts.
type Incident struct {
	ID          string         `json:"id"`
	Subject     string         `json:"subject"`
	Context     string         `json:"context"`
	Description string         `json:"description"`
	Action      string         `json:"action"`
	Priority    string         `json:"priority,omitempty"`
	Status      IncidentStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TrustRecord is the one live biometric/device-bound record per subject.
// Upserted on re-verification; last write wins.
type TrustRecord struct {
	Subject           string    `json:"subject"`
	BiometricHash     string    `json:"biometric_hash"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
	Verified          bool      `json:"verified"`
	TrustScore        float64   `json:"trust_score"`
	VerifiedAt        time.Time `json:"verified_at"`
}

// Reaction records a non-empty rule activation set against a subject.
type Reaction struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Keys       []string  `json:"keys"`
	TotalPower float64   `json:"total_power"`
	CreatedAt  time.Time `json:"created_at"`
}

// TransactionEvent is one entry in a subject's scored history.
type TransactionEvent struct {
	Subject       string    `json:"subject"`
	Amount        float64   `json:"amount"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	Status        string    `json:"status,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// AttestationRecord is one append-only entry in a federation registry.
// Immutable once written; the same (entity_type, entity_id, hash) triple
// exists in both registries for a fully federated decision.
type AttestationRecord struct {
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Hash       string    `json:"hash"`
	Signer     string    `json:"signer"`
	RecordedAt time.Time `json:"recorded_at"`
}

// FederationStatus is the read-side view of a decision's double federation.
type FederationStatus struct {
	Verified      bool       `json:"verified"`
	LocalAt       *time.Time `json:"local_at,omitempty"`
	ContinentalAt *time.Time `json:"continental_at,omitempty"`
}
