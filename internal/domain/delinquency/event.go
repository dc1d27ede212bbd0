// internal/domain/delinquency/event.go
package delinquency

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EscalationEvent records one state transition of one unit in one cycle.
// Events are values: nothing mutates them after NewEscalationEvent returns.
type EscalationEvent struct {
	ID             string          `json:"id"`
	CycleID        string          `json:"cycle_id"`
	UnitID         string          `json:"unit_id"`
	PreviousState  LifecycleState  `json:"previous_state"`
	NewState       LifecycleState  `json:"new_state"`
	DaysDelinquent int             `json:"days_delinquent"`
	AmountOwed     decimal.Decimal `json:"amount_owed"`
	CycleTimestamp time.Time       `json:"cycle_timestamp"`
}

// NewEscalationEvent stamps a fresh event ID.
func NewEscalationEvent(cycleID, unitID string, prev, next LifecycleState, days int, owed decimal.Decimal, at time.Time) EscalationEvent {
	return EscalationEvent{
		ID:             uuid.NewString(),
		CycleID:        cycleID,
		UnitID:         unitID,
		PreviousState:  prev,
		NewState:       next,
		DaysDelinquent: days,
		AmountOwed:     owed,
		CycleTimestamp: at,
	}
}

// IsRecovery is true when the unit moved back toward current.
func (e EscalationEvent) IsRecovery() bool {
	return e.NewState.Rank() < e.PreviousState.Rank()
}
