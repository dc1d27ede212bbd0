package delinquency

import (
	"context"
	"time"
)

// Trigger identifies what started a collections cycle.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// CycleOutcome is how a cycle ended.
type CycleOutcome string

const (
	OutcomeCompleted CycleOutcome = "completed" // every unit processed, no failures
	OutcomePartial   CycleOutcome = "partial"   // completed with per-unit or delivery failures
	OutcomeFailed    CycleOutcome = "failed"    // aborted before units were processed
)

// CycleRun is the persisted outline of one pipeline execution.
// Corresponds to the 'collection_cycles' table.
type CycleRun struct {
	ID                 string       `json:"id"`
	Trigger            Trigger      `json:"trigger"`
	StartedAt          time.Time    `json:"started_at"`
	CompletedAt        time.Time    `json:"completed_at"`
	Outcome            CycleOutcome `json:"outcome"`
	DelinquentUnits    int          `json:"delinquent_units"`
	UnitsNeedingAction int          `json:"units_needing_action"`
	Escalations        int          `json:"escalations"`
	Failures           int          `json:"failures"`
	Error              string       `json:"error,omitempty"`
}

// CycleRepository keeps the history of cycle runs.
type CycleRepository interface {
	RecordCycle(ctx context.Context, run *CycleRun) error
	// LatestCycle returns ErrCycleNotFound when no cycle has run yet.
	LatestCycle(ctx context.Context) (*CycleRun, error)
}
