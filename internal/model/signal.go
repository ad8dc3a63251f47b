package model

import "time"

// SignalKind tags the known signal payload variants.
type SignalKind string

const (
	SignalTransaction SignalKind = "transaction"
	SignalBehavior    SignalKind = "behavior"
	SignalContext     SignalKind = "context"
	SignalOpaque      SignalKind = "opaque"
)

// Signal is a tagged view over the raw event map a caller submits.
// The known variants expose the fields each scoring factor reads; anything
// unrecognized degrades to an opaque payload that still hashes and attests.
// Signals are ephemeral: only derived scores and hashes are persisted.
type Signal struct {
	Kind        SignalKind
	Transaction *TransactionSignal
	Behavior    *BehaviorSignal
	Context     *ContextSignal
	Raw         map[string]any
}

// TransactionSignal carries the fields the amount/velocity/diversity
// factors read.
type TransactionSignal struct {
	Amount        float64
	PaymentMethod string
	Status        string
	OccurredAt    time.Time
}

// BehaviorSignal carries a behavioral delta vector.
type BehaviorSignal struct {
	Deltas map[string]float64
}

// ContextSignal carries an emotional/contextual vector.
type ContextSignal struct {
	Vector map[string]float64
}

// ParseSignal builds a Signal from a raw event map with defensive coercion.
// Missing optional fields coerce to zero values, never to an error.
func ParseSignal(raw map[string]any) Signal {
	s := Signal{Kind: SignalOpaque, Raw: raw}
	if raw == nil {
		s.Raw = map[string]any{}
		return s
	}

	kind, _ := raw["kind"].(string)
	switch SignalKind(kind) {
	case SignalTransaction:
		ts := &TransactionSignal{
			Amount:        toFloat(raw["amount"]),
			PaymentMethod: toString(raw["payment_method"]),
			Status:        toString(raw["status"]),
			OccurredAt:    toTime(raw["occurred_at"]),
		}
		s.Kind = SignalTransaction
		s.Transaction = ts
	case SignalBehavior:
		s.Kind = SignalBehavior
		s.Behavior = &BehaviorSignal{Deltas: toFloatMap(raw["deltas"])}
	case SignalContext:
		s.Kind = SignalContext
		s.Context = &ContextSignal{Vector: toFloatMap(raw["vector"])}
	}
	return s
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func toTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func toFloatMap(v any) map[string]float64 {
	raw, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, val := range raw {
		out[k] = toFloat(val)
	}
	return out
}
