// Package rules evaluates the weighted, independently-toggleable activation
// rules against a caller-supplied context map.
package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/concordia-platform/triage/internal/attest"
	"github.com/concordia-platform/triage/internal/model"
	"github.com/concordia-platform/triage/internal/store"
)

// activationThreshold is the weighted score a rule must exceed to activate.
const activationThreshold = 0.5

// Result is the outcome of one evaluation pass.
type Result struct {
	Effects       []string `json:"effects"`
	ActivatedKeys []string `json:"activated_keys"`
	// TotalPower is the mean of the activated rules' weighted scores,
	// not their sum.
	TotalPower float64 `json:"total_power"`
	// Hash and Federation are set only when a reaction was recorded and
	// attested.
	Hash       string                  `json:"hash,omitempty"`
	Federation *model.FederationStatus `json:"federation,omitempty"`
}

// Engine evaluates active rules and records their invocations.
type Engine struct {
	rules     store.RuleStore
	reactions store.ReactionStore
	ledger    *attest.Ledger
}

// NewEngine creates a rule engine over the given stores.
func NewEngine(rules store.RuleStore, reactions store.ReactionStore, ledger *attest.Ledger) *Engine {
	return &Engine{rules: rules, reactions: reactions, ledger: ledger}
}

// Evaluate computes weightedScore = context[rule.key] * rule.weight for
// every active rule; rules crossing the activation threshold emit their
// effect and get their invocation counter bumped exactly once. A context
// missing a rule's key reads as zero. Zero activations is an empty result,
// not an error. When at least one rule activates and a subject is given,
// a reaction record is written.
func (e *Engine) Evaluate(ctx context.Context, strengths map[string]float64, subject string) (Result, error) {
	active, err := e.rules.ActiveRules(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load rules: %w", err)
	}

	res := Result{Effects: []string{}, ActivatedKeys: []string{}}
	sum := 0.0
	for _, rule := range active {
		weighted := strengths[rule.Key] * rule.Weight
		if weighted <= activationThreshold {
			continue
		}
		res.Effects = append(res.Effects, rule.Effect)
		res.ActivatedKeys = append(res.ActivatedKeys, rule.Key)
		sum += weighted

		if err := e.rules.RecordInvocation(ctx, rule.Key); err != nil {
			return Result{}, fmt.Errorf("record invocation for %q: %w", rule.Key, err)
		}
	}

	if n := len(res.ActivatedKeys); n > 0 {
		res.TotalPower = sum / float64(n)
	}

	if len(res.ActivatedKeys) > 0 && subject != "" {
		now := time.Now().UTC()
		reaction := model.Reaction{
			ID:         uuid.NewString(),
			Subject:    subject,
			Keys:       res.ActivatedKeys,
			TotalPower: res.TotalPower,
			CreatedAt:  now,
		}
		if err := e.reactions.PutReaction(ctx, reaction); err != nil {
			return Result{}, fmt.Errorf("record reaction: %w", err)
		}

		keys := make([]any, len(res.ActivatedKeys))
		for i, k := range res.ActivatedKeys {
			keys[i] = k
		}
		payload := map[string]any{
			"reaction_id": reaction.ID,
			"keys":        keys,
			"total_power": res.TotalPower,
			"timestamp":   now.Format(time.RFC3339Nano),
		}
		hash, err := e.ledger.Commit(ctx, "reaction", reaction.ID, payload)
		res.Hash = hash
		if err != nil {
			return res, err
		}
		if fed, err := e.ledger.Verify(ctx, "reaction", reaction.ID, hash); err == nil {
			res.Federation = &fed
		}
	}
	return res, nil
}
