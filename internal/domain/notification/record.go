package notification

import "time"

// Record is one entry of the idempotency ledger. Records are append-only.
// Corresponds to the 'notification_records' table.
type Record struct {
	UnitID  string
	Tier    NoticeTier
	Period  string // billing period, see PeriodFor
	Outcome RecordOutcome
	SentAt  time.Time
}
