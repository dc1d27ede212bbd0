package database

import (
	"context"
	"fmt"
	"strings"
)

// schema is written once for both dialects; {{serial}} and {{timestamp}} are
// swapped per driver before execution.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS units (
		id                TEXT PRIMARY KEY,
		unit_number       TEXT NOT NULL,
		owner_name        TEXT NOT NULL DEFAULT '',
		contact_email     TEXT NOT NULL DEFAULT '',
		total_owed        NUMERIC(12,2) NOT NULL DEFAULT 0,
		monthly_charge    NUMERIC(12,2) NOT NULL DEFAULT 0,
		lifecycle_state   TEXT NOT NULL DEFAULT 'current',
		status_updated_at {{timestamp}}
	)`,
	`CREATE TABLE IF NOT EXISTS unit_charges (
		unit_id     TEXT NOT NULL REFERENCES units(id),
		description TEXT NOT NULL,
		amount      NUMERIC(12,2) NOT NULL,
		due_date    DATE NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS unit_charges_unit_idx ON unit_charges (unit_id, due_date)`,
	`CREATE TABLE IF NOT EXISTS notification_records (
		unit_id TEXT NOT NULL,
		tier    TEXT NOT NULL,
		period  TEXT NOT NULL,
		outcome TEXT NOT NULL,
		sent_at {{timestamp}} NOT NULL,
		CONSTRAINT notification_records_unit_tier_period PRIMARY KEY (unit_id, tier, period)
	)`,
	`CREATE TABLE IF NOT EXISTS escalation_events (
		id              TEXT PRIMARY KEY,
		cycle_id        TEXT NOT NULL,
		unit_id         TEXT NOT NULL,
		previous_state  TEXT NOT NULL,
		new_state       TEXT NOT NULL,
		days_delinquent INTEGER NOT NULL,
		amount_owed     NUMERIC(12,2) NOT NULL,
		cycle_timestamp {{timestamp}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS escalation_events_unit_idx ON escalation_events (unit_id, cycle_timestamp)`,
	`CREATE TABLE IF NOT EXISTS association_contacts (
		id        {{serial}},
		name      TEXT NOT NULL,
		email     TEXT NOT NULL DEFAULT '',
		role      TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS collection_cycles (
		id                   TEXT PRIMARY KEY,
		trigger_source       TEXT NOT NULL,
		started_at           {{timestamp}} NOT NULL,
		completed_at         {{timestamp}} NOT NULL,
		outcome              TEXT NOT NULL,
		delinquent_units     INTEGER NOT NULL,
		units_needing_action INTEGER NOT NULL,
		escalations          INTEGER NOT NULL,
		failures             INTEGER NOT NULL,
		error                TEXT NOT NULL DEFAULT ''
	)`,
}

// Migrate creates any missing tables. It is safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	serial, timestamp := "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ"
	if s.Driver == DriverSQLite {
		serial, timestamp = "INTEGER PRIMARY KEY AUTOINCREMENT", "TIMESTAMP"
	}
	r := strings.NewReplacer("{{serial}}", serial, "{{timestamp}}", timestamp)

	for i, stmt := range schema {
		if _, err := s.DB.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("error applying schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
