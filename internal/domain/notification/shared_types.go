// internal/domain/notification/shared_types.go
package notification

import "time"

// NoticeTier identifies which notice template a send belongs to. It is also
// the second half of the idempotency key (unit, tier, period).
type NoticeTier string

const (
	TierCourtesy30Day    NoticeTier = "30_day"            // courtesy reminder, pending units
	TierLateFee60Day     NoticeTier = "60_day"            // includes late-fee warning
	TierFinal90Day       NoticeTier = "90_day"            // final notice before referral
	TierAttorneyReferral NoticeTier = "attorney_referral" // package sent to counsel, never to the owner
)

// IsOwnerFacing reports whether notices of this tier go to the unit owner.
func (t NoticeTier) IsOwnerFacing() bool {
	switch t {
	case TierCourtesy30Day, TierLateFee60Day, TierFinal90Day:
		return true
	default:
		return false
	}
}

// RecordOutcome tells how a NotificationRecord came to exist.
type RecordOutcome string

const (
	OutcomeSent      RecordOutcome = "sent"
	OutcomeNoContact RecordOutcome = "no_contact" // owner had no email; bookkeeping only
)

// PeriodFor returns the billing period identifier (YYYY-MM) that t falls into,
// evaluated in loc.
func PeriodFor(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("2006-01")
}
