package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"condo_collections/internal/domain/delinquency"
)

// UnitRepository is the ledger store backed by the units and unit_charges tables.
type UnitRepository struct {
	store *Store
	now   func() time.Time
}

func NewUnitRepository(store *Store) *UnitRepository {
	return &UnitRepository{store: store, now: time.Now}
}

func (r *UnitRepository) GetAllUnitSnapshots(ctx context.Context) ([]delinquency.UnitFinancialSnapshot, error) {
	query := `SELECT id, unit_number, owner_name, contact_email, total_owed, monthly_charge, lifecycle_state
               FROM units ORDER BY unit_number, id`
	rows, err := r.store.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying unit snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]delinquency.UnitFinancialSnapshot, 0)
	for rows.Next() {
		var s delinquency.UnitFinancialSnapshot
		var state string
		if err := rows.Scan(&s.UnitID, &s.UnitNumber, &s.OwnerName, &s.ContactEmail, &s.TotalOwed, &s.MonthlyCharge, &state); err != nil {
			return nil, fmt.Errorf("error scanning unit snapshot row: %w", err)
		}
		setState(&s, state)
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unit snapshot rows: %w", err)
	}
	return snapshots, nil
}

func (r *UnitRepository) GetUnitSnapshot(ctx context.Context, unitID string) (*delinquency.UnitFinancialSnapshot, error) {
	query := `SELECT id, unit_number, owner_name, contact_email, total_owed, monthly_charge, lifecycle_state
               FROM units WHERE id = $1`
	var s delinquency.UnitFinancialSnapshot
	var state string
	err := r.store.DB.QueryRowContext(ctx, r.store.rebind(query), unitID).Scan(
		&s.UnitID, &s.UnitNumber, &s.OwnerName, &s.ContactEmail, &s.TotalOwed, &s.MonthlyCharge, &state,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, delinquency.ErrUnitNotFound
		}
		return nil, fmt.Errorf("error getting unit snapshot: %w", err)
	}
	setState(&s, state)
	return &s, nil
}

// setState parses the stored lifecycle state. An unknown value does not fail
// the read; it is carried on the snapshot so only that unit is skipped.
func setState(s *delinquency.UnitFinancialSnapshot, raw string) {
	state, err := delinquency.ParseState(raw)
	if err != nil {
		s.LoadErr = err
		return
	}
	s.CurrentStatus = state
}

// UpdateUnitStatus writes the unit's new lifecycle state. It is the only
// write the engine makes to the ledger.
func (r *UnitRepository) UpdateUnitStatus(ctx context.Context, unitID string, newState delinquency.LifecycleState) error {
	query := `UPDATE units SET lifecycle_state = $1, status_updated_at = $2 WHERE id = $3`
	res, err := r.store.DB.ExecContext(ctx, r.store.rebind(query), string(newState), r.now().UTC(), unitID)
	if err != nil {
		return fmt.Errorf("error updating unit status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking updated unit rows: %w", err)
	}
	if n == 0 {
		return delinquency.ErrUnitNotFound
	}
	return nil
}

func (r *UnitRepository) GetBalanceBreakdown(ctx context.Context, unitID string) ([]delinquency.ChargeLine, error) {
	query := `SELECT description, amount, due_date FROM unit_charges
               WHERE unit_id = $1 ORDER BY due_date, description`
	rows, err := r.store.DB.QueryContext(ctx, r.store.rebind(query), unitID)
	if err != nil {
		return nil, fmt.Errorf("error querying balance breakdown: %w", err)
	}
	defer rows.Close()

	lines := make([]delinquency.ChargeLine, 0)
	for rows.Next() {
		var l delinquency.ChargeLine
		if err := rows.Scan(&l.Description, &l.Amount, &l.DueDate); err != nil {
			return nil, fmt.Errorf("error scanning charge row: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating charge rows: %w", err)
	}
	return lines, nil
}
