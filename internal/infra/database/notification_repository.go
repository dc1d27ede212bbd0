package database

import (
	"context"
	"errors"
	"fmt"

	"condo_collections/internal/domain/notification"
)

var ErrDuplicateRecord = errors.New("duplicate notification record (unit_id, tier, period)")

// NotificationRepository is the idempotency ledger.
type NotificationRepository struct {
	store *Store
}

func NewNotificationRepository(store *Store) *NotificationRepository {
	return &NotificationRepository{store: store}
}

func (r *NotificationRepository) HasRecord(ctx context.Context, unitID string, tier notification.NoticeTier, period string) (bool, error) {
	query := `SELECT COUNT(*) FROM notification_records
               WHERE unit_id = $1 AND tier = $2 AND period = $3`
	var count int
	err := r.store.DB.QueryRowContext(ctx, r.store.rebind(query), unitID, string(tier), period).Scan(&count)
	if err != nil {
		// COUNT(*) always returns a row; anything here is a real DB error.
		return false, fmt.Errorf("error checking notification record: %w", err)
	}
	return count > 0, nil
}

func (r *NotificationRepository) WriteRecord(ctx context.Context, rec *notification.Record) error {
	query := `INSERT INTO notification_records (unit_id, tier, period, outcome, sent_at)
               VALUES ($1, $2, $3, $4, $5)`
	_, err := r.store.DB.ExecContext(ctx, r.store.rebind(query),
		rec.UnitID, string(rec.Tier), rec.Period, string(rec.Outcome), rec.SentAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("unit %s tier %s period %s: %w", rec.UnitID, rec.Tier, rec.Period, ErrDuplicateRecord)
		}
		return fmt.Errorf("error writing notification record: %w", err)
	}
	return nil
}

func (r *NotificationRepository) ListRecordsForUnit(ctx context.Context, unitID string) ([]*notification.Record, error) {
	query := `SELECT unit_id, tier, period, outcome, sent_at FROM notification_records
               WHERE unit_id = $1 ORDER BY sent_at, tier`
	rows, err := r.store.DB.QueryContext(ctx, r.store.rebind(query), unitID)
	if err != nil {
		return nil, fmt.Errorf("error querying notification records: %w", err)
	}
	defer rows.Close()

	records := make([]*notification.Record, 0)
	for rows.Next() {
		rec := notification.Record{}
		var tier, outcome string
		if err := rows.Scan(&rec.UnitID, &tier, &rec.Period, &outcome, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("error scanning notification record row: %w", err)
		}
		rec.Tier = notification.NoticeTier(tier)
		rec.Outcome = notification.RecordOutcome(outcome)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification record rows: %w", err)
	}
	return records, nil
}
