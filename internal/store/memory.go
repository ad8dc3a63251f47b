package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/concordia-platform/triage/internal/model"
)

// Memory is an in-process backend for tests and single-node development.
// All methods are safe for concurrent use.
type Memory struct {
	mu         sync.Mutex
	policies   map[string]model.Policy
	rules      map[string]model.Rule
	alerts     map[string]model.Alert
	quarantine map[string]model.QuarantineEvent
	incidents  map[string]model.Incident
	trust      map[string]model.TrustRecord
	history    map[string][]model.TransactionEvent
	reactions  map[string]model.Reaction
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		policies:   make(map[string]model.Policy),
		rules:      make(map[string]model.Rule),
		alerts:     make(map[string]model.Alert),
		quarantine: make(map[string]model.QuarantineEvent),
		incidents:  make(map[string]model.Incident),
		trust:      make(map[string]model.TrustRecord),
		history:    make(map[string][]model.TransactionEvent),
		reactions:  make(map[string]model.Reaction),
	}
}

// Stores returns the table interfaces, all backed by m.
func (m *Memory) Stores() Stores {
	return Stores{
		Policies:   m,
		Rules:      m,
		Alerts:     m,
		Quarantine: m,
		Incidents:  m,
		Trust:      m,
		History:    m,
		Reactions:  m,
	}
}

func (m *Memory) ActivePolicy(_ context.Context, name string) (model.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.policies[name]
	if !ok || !p.Active {
		return model.Policy{}, model.ErrPolicyNotFound
	}
	return p, nil
}

func (m *Memory) PutPolicy(_ context.Context, p model.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.policies[p.Name]; ok {
		// Counters survive config re-syncs.
		p.ExecutionCount = prev.ExecutionCount
		p.LastExecutedAt = prev.LastExecutedAt
	}
	m.policies[p.Name] = p
	return nil
}

func (m *Memory) RecordExecution(_ context.Context, name string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.policies[name]
	if !ok {
		return model.ErrPolicyNotFound
	}
	p.ExecutionCount++
	p.LastExecutedAt = &at
	m.policies[name] = p
	return nil
}

func (m *Memory) ActiveRules(_ context.Context) ([]model.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Rule, 0, len(m.rules))
	for _, r := range m.rules {
		if r.Active {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Memory) PutRule(_ context.Context, r model.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.rules[r.Key]; ok {
		r.InvocationCount = prev.InvocationCount
	}
	m.rules[r.Key] = r
	return nil
}

func (m *Memory) RecordInvocation(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[key]
	if !ok {
		return nil
	}
	r.InvocationCount++
	m.rules[key] = r
	return nil
}

// Rule returns a rule by key with its current counter. Test helper.
func (m *Memory) Rule(key string) (model.Rule, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[key]
	return r, ok
}

// Policy returns a policy by name with its current counter. Test helper.
func (m *Memory) Policy(name string) (model.Policy, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.policies[name]
	return p, ok
}

func (m *Memory) PutAlert(_ context.Context, a model.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[a.ID] = a
	return nil
}

func (m *Memory) GetAlert(_ context.Context, id string) (model.Alert, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	return a, ok, nil
}

// Alerts returns all stored alerts. Test helper.
func (m *Memory) Alerts() []model.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		out = append(out, a)
	}
	return out
}

func (m *Memory) PutQuarantine(_ context.Context, q model.QuarantineEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quarantine[q.ID] = q
	return nil
}

// QuarantineEvents returns all stored quarantine events. Test helper.
func (m *Memory) QuarantineEvents() []model.QuarantineEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.QuarantineEvent, 0, len(m.quarantine))
	for _, q := range m.quarantine {
		out = append(out, q)
	}
	return out
}

func (m *Memory) CreateIncident(_ context.Context, inc model.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incidents[inc.ID] = inc
	return nil
}

func (m *Memory) GetIncident(_ context.Context, id string) (model.Incident, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[id]
	return inc, ok, nil
}

func (m *Memory) TransitionIncident(_ context.Context, id string, allowedFrom []model.IncidentStatus, to model.IncidentStatus, at time.Time) (model.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[id]
	if !ok {
		return model.Incident{}, model.Validationf("unknown incident %q", id)
	}
	for _, from := range allowedFrom {
		if inc.Status == from {
			inc.Status = to
			inc.UpdatedAt = at
			m.incidents[id] = inc
			return inc, nil
		}
	}
	return model.Incident{}, model.ErrInvalidTransition
}

func (m *Memory) UpsertTrust(_ context.Context, rec model.TrustRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trust[rec.Subject] = rec
	return nil
}

func (m *Memory) GetTrust(_ context.Context, subject string) (model.TrustRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.trust[subject]
	return rec, ok, nil
}

func (m *Memory) RecentEvents(_ context.Context, subject string, limit int) ([]model.TransactionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	evs := m.history[subject]
	if limit > 0 && len(evs) > limit {
		evs = evs[len(evs)-limit:]
	}
	out := make([]model.TransactionEvent, len(evs))
	copy(out, evs)
	return out, nil
}

func (m *Memory) AppendEvent(_ context.Context, ev model.TransactionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	evs := append(m.history[ev.Subject], ev)
	if len(evs) > historyKeep {
		evs = evs[len(evs)-historyKeep:]
	}
	m.history[ev.Subject] = evs
	return nil
}

func (m *Memory) PutReaction(_ context.Context, r model.Reaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reactions[r.ID] = r
	return nil
}

// Reactions returns all stored reactions. Test helper.
func (m *Memory) Reactions() []model.Reaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Reaction, 0, len(m.reactions))
	for _, r := range m.reactions {
		out = append(out, r)
	}
	return out
}
