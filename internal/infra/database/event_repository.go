package database

import (
	"context"
	"fmt"

	"condo_collections/internal/domain/delinquency"
)

// EventRepository is the append-only escalation audit trail.
type EventRepository struct {
	store *Store
}

func NewEventRepository(store *Store) *EventRepository {
	return &EventRepository{store: store}
}

func (r *EventRepository) AppendEvent(ctx context.Context, ev delinquency.EscalationEvent) error {
	query := `INSERT INTO escalation_events
               (id, cycle_id, unit_id, previous_state, new_state, days_delinquent, amount_owed, cycle_timestamp)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.store.DB.ExecContext(ctx, r.store.rebind(query),
		ev.ID, ev.CycleID, ev.UnitID, string(ev.PreviousState), string(ev.NewState),
		ev.DaysDelinquent, ev.AmountOwed, ev.CycleTimestamp.UTC())
	if err != nil {
		return fmt.Errorf("error appending escalation event: %w", err)
	}
	return nil
}

func (r *EventRepository) ListEventsForUnit(ctx context.Context, unitID string) ([]delinquency.EscalationEvent, error) {
	query := `SELECT id, cycle_id, unit_id, previous_state, new_state, days_delinquent, amount_owed, cycle_timestamp
               FROM escalation_events WHERE unit_id = $1 ORDER BY cycle_timestamp, id`
	rows, err := r.store.DB.QueryContext(ctx, r.store.rebind(query), unitID)
	if err != nil {
		return nil, fmt.Errorf("error querying escalation events: %w", err)
	}
	defer rows.Close()

	events := make([]delinquency.EscalationEvent, 0)
	for rows.Next() {
		var ev delinquency.EscalationEvent
		var prev, next string
		if err := rows.Scan(&ev.ID, &ev.CycleID, &ev.UnitID, &prev, &next, &ev.DaysDelinquent, &ev.AmountOwed, &ev.CycleTimestamp); err != nil {
			return nil, fmt.Errorf("error scanning escalation event row: %w", err)
		}
		ev.PreviousState = delinquency.LifecycleState(prev)
		ev.NewState = delinquency.LifecycleState(next)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating escalation event rows: %w", err)
	}
	return events, nil
}
