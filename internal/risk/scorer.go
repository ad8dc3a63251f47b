// Package risk turns behavioral and contextual signals into a bounded-below
// additive risk score. Scoring is a pure function of the subject's history
// and the current event; no side effects, no errors. Missing fields read as
// zero contribution.
package risk

import (
	"math"
	"time"

	"github.com/concordia-platform/triage/internal/model"
)

// Factor weights. The score is the unweighted sum of triggered
// contributions; no ceiling is enforced, so a score can exceed 1.0.
const (
	WeightAmountDeviation = 0.35
	WeightVelocity        = 0.25
	WeightReliability     = 0.20
	WeightDiversity       = 0.15
	WeightTemporal        = 0.20
)

const (
	// velocityWindow is the sliding window the velocity factor counts in.
	velocityWindow = 5 * time.Minute
	// velocityLimit is the event count above which velocity contributes.
	velocityLimit = 3
	// failureRatioLimit is the historical failure ratio above which
	// reliability contributes.
	failureRatioLimit = 0.3
	// diversityLimit is the distinct-payment-method count above which
	// diversity can contribute.
	diversityLimit = 5
	// highValueBound gates the diversity factor to high-value events.
	highValueBound = 10_000.0
	// unusualHoursEnd closes the designated unusual-hours window
	// [00:00, 06:00).
	unusualHoursEnd = 6
)

// Contribution itemizes one triggered factor, keeping scores explainable.
type Contribution struct {
	Factor string  `json:"factor"`
	Weight float64 `json:"weight"`
}

// Score computes the risk score for a transaction signal against the
// subject's ordered history (oldest first). Non-transaction signals carry
// none of the fields the factors read and score zero.
func Score(history []model.TransactionEvent, sig model.Signal) (float64, []Contribution) {
	tx := sig.Transaction
	if tx == nil {
		return 0, nil
	}

	var contributions []Contribution
	add := func(factor string, weight float64) {
		contributions = append(contributions, Contribution{Factor: factor, Weight: weight})
	}

	if amountDeviates(history, tx.Amount) {
		add("amount_deviation", WeightAmountDeviation)
	}
	if velocityExceeded(history, tx.OccurredAt) {
		add("velocity", WeightVelocity)
	}
	if unreliable(history) {
		add("reliability", WeightReliability)
	}
	if overDiversified(history, tx.Amount) {
		add("diversity", WeightDiversity)
	}
	if unusualHours(tx.OccurredAt) {
		add("temporal_anomaly", WeightTemporal)
	}

	total := 0.0
	for _, c := range contributions {
		total += c.Weight
	}
	return total, contributions
}

// amountDeviates reports whether the amount exceeds the historical mean by
// more than three standard deviations of the subject's own history.
// Zero history, or a flat history with zero deviation, never contributes.
func amountDeviates(history []model.TransactionEvent, amount float64) bool {
	if len(history) == 0 {
		return false
	}
	mean := 0.0
	for _, ev := range history {
		mean += ev.Amount
	}
	mean /= float64(len(history))

	variance := 0.0
	for _, ev := range history {
		d := ev.Amount - mean
		variance += d * d
	}
	variance /= float64(len(history))
	std := math.Sqrt(variance)
	if std == 0 {
		return false
	}
	return amount > mean+3*std
}

func velocityExceeded(history []model.TransactionEvent, at time.Time) bool {
	if at.IsZero() {
		return false
	}
	windowStart := at.Add(-velocityWindow)
	count := 0
	for _, ev := range history {
		if ev.OccurredAt.After(windowStart) && !ev.OccurredAt.After(at) {
			count++
		}
	}
	return count > velocityLimit
}

func unreliable(history []model.TransactionEvent) bool {
	if len(history) == 0 {
		return false
	}
	failed := 0
	for _, ev := range history {
		if ev.Status == "failed" {
			failed++
		}
	}
	return float64(failed)/float64(len(history)) > failureRatioLimit
}

func overDiversified(history []model.TransactionEvent, amount float64) bool {
	if amount <= highValueBound {
		return false
	}
	methods := make(map[string]bool)
	for _, ev := range history {
		if ev.PaymentMethod != "" {
			methods[ev.PaymentMethod] = true
		}
	}
	return len(methods) > diversityLimit
}

func unusualHours(at time.Time) bool {
	if at.IsZero() {
		return false
	}
	return at.Hour() < unusualHoursEnd
}
