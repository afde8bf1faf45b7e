package reconcile

import (
	"time"

	"github.com/roach88/backstock/internal/sorting"
)

// Phase is the user-visible lifecycle of an entity's current operation.
type Phase string

const (
	// PhaseIdle means no operation exists for the entity.
	PhaseIdle Phase = "idle"

	// PhaseProcessing means an operation is in flight.
	PhaseProcessing Phase = "processing"

	// PhaseReady means the last operation succeeded. Terminal; garbage
	// collected after the cleanup delay.
	PhaseReady Phase = "ready"

	// PhaseRetry means the last attempt failed and a redispatch is due.
	// Handled transparently, no user action required.
	PhaseRetry Phase = "retry"

	// PhaseError means the retry budget is exhausted. Terminal; requires
	// an explicit RetryOperation (or a newer desired state) to clear.
	PhaseError Phase = "error"
)

// Terminal reports whether the phase ends an operation series.
func (p Phase) Terminal() bool {
	return p == PhaseReady || p == PhaseError
}

// Status is the per-entity operation bookkeeping. Attempt counts across
// the Retry progression of one operation series; Stats is set on Ready.
type Status struct {
	Phase     Phase          `json:"phase"`
	Attempt   int            `json:"attempt"`
	LastError string         `json:"lastError,omitempty"`
	IssuedAt  time.Time      `json:"issuedAt"`
	SettledAt time.Time      `json:"settledAt,omitzero"`
	Stats     *sorting.Stats `json:"stats,omitempty"`
}
