package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"condo_collections/internal/domain/delinquency"
	"condo_collections/internal/infra/metrics"
)

// EventPublisher streams escalation events and cycle outlines downstream.
type EventPublisher interface {
	PublishEscalation(ctx context.Context, ev delinquency.EscalationEvent) error
	PublishCycle(ctx context.Context, run delinquency.CycleRun) error
}

// Applier persists state transitions. A transition exists only once the
// ledger write has succeeded.
type Applier struct {
	ledger    delinquency.LedgerStore
	events    delinquency.EventRepository
	publisher EventPublisher
	metrics   metrics.Recorder
	logger    *logrus.Entry
}

func NewApplier(ledger delinquency.LedgerStore, events delinquency.EventRepository, publisher EventPublisher, rec metrics.Recorder, logger *logrus.Entry) *Applier {
	return &Applier{ledger: ledger, events: events, publisher: publisher, metrics: rec, logger: logger}
}

// Apply moves the unit from its stored state toward computed. It returns nil
// when nothing changed, including every classification of a unit already
// with the attorney.
//
// A ledger write failure returns an error and no event. An audit trail or
// stream failure after the write does not undo the transition: the returned
// auditErr is reported but the event stands.
func (a *Applier) Apply(ctx context.Context, cycleID string, snap delinquency.UnitFinancialSnapshot, days int, computed delinquency.LifecycleState, at time.Time) (ev *delinquency.EscalationEvent, auditErr error, err error) {
	next, changed := delinquency.NextState(snap.CurrentStatus, computed)
	if !changed {
		return nil, nil, nil
	}

	if err := a.ledger.UpdateUnitStatus(ctx, snap.UnitID, next); err != nil {
		return nil, nil, fmt.Errorf("failed to persist %s -> %s: %w", snap.CurrentStatus, next, err)
	}

	owed := snap.TotalOwed
	if owed.IsNegative() {
		owed = decimal.Zero
	}
	event := delinquency.NewEscalationEvent(cycleID, snap.UnitID, snap.CurrentStatus, next, days, owed, at)
	a.metrics.IncEscalation(string(event.PreviousState), string(event.NewState))

	log := a.logger.WithFields(logrus.Fields{"unit_id": snap.UnitID, "from": event.PreviousState, "to": event.NewState})
	log.Info("Lifecycle state changed")

	if err := a.events.AppendEvent(ctx, event); err != nil {
		log.WithError(err).Error("Failed to append escalation event to audit trail")
		auditErr = fmt.Errorf("failed to append escalation event: %w", err)
	}
	if err := a.publisher.PublishEscalation(ctx, event); err != nil {
		log.WithError(err).Warn("Failed to publish escalation event")
	}
	return &event, auditErr, nil
}
