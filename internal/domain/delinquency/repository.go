// internal/domain/delinquency/repository.go
package delinquency

import (
	"context"
	"errors"
)

var (
	ErrUnitNotFound  = errors.New("unit not found")
	ErrCycleNotFound = errors.New("collection cycle not found")
)

// LedgerStore is the unit ledger owned by the surrounding application. The
// engine only reads balances and writes back lifecycle states.
type LedgerStore interface {
	GetAllUnitSnapshots(ctx context.Context) ([]UnitFinancialSnapshot, error)
	UpdateUnitStatus(ctx context.Context, unitID string, newState LifecycleState) error
	// GetBalanceBreakdown lists the unit's open charges, oldest first.
	GetBalanceBreakdown(ctx context.Context, unitID string) ([]ChargeLine, error)
}

// EventRepository is the append-only escalation audit trail.
type EventRepository interface {
	AppendEvent(ctx context.Context, ev EscalationEvent) error
	ListEventsForUnit(ctx context.Context, unitID string) ([]EscalationEvent, error)
}
