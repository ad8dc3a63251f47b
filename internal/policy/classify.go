// Package policy maps risk scores to severities and actions under named,
// operator-owned classifier policies.
package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/concordia-platform/triage/internal/model"
	"github.com/concordia-platform/triage/internal/store"
)

// BandWidth is the fixed distance between severity band boundaries around
// a policy's threshold. Deliberately not configurable per policy.
const BandWidth = 0.2

// Outcome is the result of one classification.
type Outcome struct {
	Severity  model.Severity
	Action    model.Action
	Threshold float64
}

// Engine classifies scores against the active policy for an engine name.
type Engine struct {
	policies store.PolicyStore
}

// NewEngine creates a classifier backed by the given policy store.
func NewEngine(policies store.PolicyStore) *Engine {
	return &Engine{policies: policies}
}

// Classify looks up the named active policy and maps the score into a
// severity band relative to the policy threshold. On success it records
// the execution (atomic counter bump + timestamp) exactly once; a counter
// write failure does not invalidate the classification itself, which is
// pure, but is surfaced so callers see the store trouble.
func (e *Engine) Classify(ctx context.Context, engineName string, score float64) (Outcome, error) {
	p, err := e.policies.ActivePolicy(ctx, engineName)
	if err != nil {
		return Outcome{}, fmt.Errorf("classify %q: %w", engineName, err)
	}

	severity := Band(score, p.Threshold)
	out := Outcome{
		Severity:  severity,
		Action:    model.ActionFor(severity),
		Threshold: p.Threshold,
	}

	if err := e.policies.RecordExecution(ctx, p.Name, time.Now().UTC()); err != nil {
		return out, fmt.Errorf("record execution for %q: %w", p.Name, err)
	}
	return out, nil
}

// Band maps a score to a severity given a threshold T:
//
//	score >= T+0.2      critical
//	T <= score < T+0.2  high
//	T-0.2 <= score < T  medium
//	score < T-0.2       low
//
// Both band edges are inclusive on the higher side, so score == T+0.2 is
// exactly critical and score == T-0.2 is exactly medium.
func Band(score, threshold float64) model.Severity {
	switch {
	case score >= threshold+BandWidth:
		return model.SeverityCritical
	case score >= threshold:
		return model.SeverityHigh
	case score >= threshold-BandWidth:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}
