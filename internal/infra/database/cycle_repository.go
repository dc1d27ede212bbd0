package database

import (
	"context"
	"database/sql"
	"fmt"

	"condo_collections/internal/domain/delinquency"
)

type CycleRepository struct {
	store *Store
}

func NewCycleRepository(store *Store) *CycleRepository {
	return &CycleRepository{store: store}
}

func (r *CycleRepository) RecordCycle(ctx context.Context, run *delinquency.CycleRun) error {
	query := `INSERT INTO collection_cycles
               (id, trigger_source, started_at, completed_at, outcome, delinquent_units, units_needing_action, escalations, failures, error)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.store.DB.ExecContext(ctx, r.store.rebind(query),
		run.ID, string(run.Trigger), run.StartedAt.UTC(), run.CompletedAt.UTC(), string(run.Outcome),
		run.DelinquentUnits, run.UnitsNeedingAction, run.Escalations, run.Failures, run.Error)
	if err != nil {
		return fmt.Errorf("error recording collection cycle: %w", err)
	}
	return nil
}

func (r *CycleRepository) LatestCycle(ctx context.Context) (*delinquency.CycleRun, error) {
	query := `SELECT id, trigger_source, started_at, completed_at, outcome, delinquent_units, units_needing_action, escalations, failures, error
               FROM collection_cycles ORDER BY started_at DESC LIMIT 1`
	run := delinquency.CycleRun{}
	var trigger, outcome string
	err := r.store.DB.QueryRowContext(ctx, query).Scan(
		&run.ID, &trigger, &run.StartedAt, &run.CompletedAt, &outcome,
		&run.DelinquentUnits, &run.UnitsNeedingAction, &run.Escalations, &run.Failures, &run.Error,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, delinquency.ErrCycleNotFound
		}
		return nil, fmt.Errorf("error getting latest collection cycle: %w", err)
	}
	run.Trigger = delinquency.Trigger(trigger)
	run.Outcome = delinquency.CycleOutcome(outcome)
	return &run, nil
}
