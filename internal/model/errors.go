package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for the triage core. Handlers classify errors with
// errors.Is and map each kind to one HTTP status; anything unmatched is a
// generic internal error with the cause logged, not leaked.
var (
	// ErrValidation marks missing or malformed input. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrPolicyNotFound marks a classify call naming no active policy.
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrInvalidTransition marks an illegal incident lifecycle move.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrStoreUnavailable marks a store timeout or transport failure.
	// Safe for the caller to retry with backoff; the core never retries.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrAttestationIncomplete marks a decision that was committed but is
	// not yet recorded in both registries. The decision stands; callers
	// own reconciliation of the missing registry write.
	ErrAttestationIncomplete = errors.New("attestation incomplete")
)

// Validationf wraps ErrValidation with a caller-facing description.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}
