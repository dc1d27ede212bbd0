// internal/domain/delinquency/policy.go
package delinquency

import "condo_collections/internal/domain/notification"

// ActionSet is what the dispatcher has to do for one unit this cycle.
type ActionSet struct {
	OwnerNotice      notification.NoticeTier // empty when no owner notice is due
	BoardAlert       bool
	AttorneyReferral bool
	Recovery         bool // unit moved toward current; reported to the board as good news
	ReNotify         bool // produced by the re-notify rule, not by a transition
}

// HasOwnerNotice reports whether an owner-facing notice is part of the set.
func (a ActionSet) HasOwnerNotice() bool { return a.OwnerNotice != "" }

// Empty is true when the set asks for nothing at all.
func (a ActionSet) Empty() bool {
	return !a.HasOwnerNotice() && !a.BoardAlert && !a.AttorneyReferral && !a.Recovery
}

// NeedsAction is true when something must be sent on the unit's behalf.
// Recoveries are informational only.
func (a ActionSet) NeedsAction() bool {
	return a.HasOwnerNotice() || a.BoardAlert || a.AttorneyReferral
}

// PolicyFor maps a transition to the actions it requires.
func PolicyFor(ev EscalationEvent) ActionSet {
	if ev.IsRecovery() {
		return ActionSet{Recovery: true}
	}

	switch ev.NewState {
	case StatePending:
		return ActionSet{OwnerNotice: notification.TierCourtesy30Day}
	case StateTier30To60:
		return ActionSet{OwnerNotice: notification.TierLateFee60Day, BoardAlert: true}
	case StateTier60To90:
		return ActionSet{OwnerNotice: notification.TierFinal90Day, BoardAlert: true}
	case StateTier90Plus, StateAttorney:
		return ActionSet{BoardAlert: true, AttorneyReferral: true}
	default:
		return ActionSet{}
	}
}

// ReNotifyPolicy returns the same-tier action for a unit whose state did not
// change this cycle. The dispatcher's idempotency ledger decides whether it
// actually goes out: it only does when no record exists for the current
// billing period, so a unit that sits in a tier gets one notice per period
// and a notice whose delivery failed is retried on the next cycle.
//
// The board is not alerted again for unchanged units; a re-sent referral
// still shows up in the digest.
func ReNotifyPolicy(state LifecycleState) ActionSet {
	switch state {
	case StatePending:
		return ActionSet{OwnerNotice: notification.TierCourtesy30Day, ReNotify: true}
	case StateTier30To60:
		return ActionSet{OwnerNotice: notification.TierLateFee60Day, ReNotify: true}
	case StateTier60To90:
		return ActionSet{OwnerNotice: notification.TierFinal90Day, ReNotify: true}
	case StateTier90Plus:
		return ActionSet{AttorneyReferral: true, ReNotify: true}
	default:
		// current needs nothing; attorney is already with counsel.
		return ActionSet{}
	}
}
