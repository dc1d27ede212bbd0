package notification

import "time"

// DispatchKind classifies what a DispatchResult was about.
type DispatchKind string

const (
	KindOwnerNotice      DispatchKind = "owner_notice"
	KindAttorneyReferral DispatchKind = "attorney_referral"
	KindBoardAlert       DispatchKind = "board_alert" // immediate, out-of-digest alert
	KindBoardDigest      DispatchKind = "board_digest"
)

// DispatchStatus is the final state of one dispatch attempt.
type DispatchStatus string

const (
	StatusSent        DispatchStatus = "sent"
	StatusAlreadySent DispatchStatus = "already_sent" // idempotency ledger hit
	StatusNoContact   DispatchStatus = "no_contact"   // owner notice suppressed, record written
	StatusFailed      DispatchStatus = "failed"       // retries exhausted or bookkeeping failed
	StatusSkipped     DispatchStatus = "skipped"      // nothing to send
)

// DispatchResult records what happened to one send. Failed results are
// surfaced in the board digest.
type DispatchResult struct {
	UnitID    string         `json:"unit_id,omitempty"`
	Kind      DispatchKind   `json:"kind"`
	Tier      NoticeTier     `json:"tier,omitempty"`
	Recipient string         `json:"recipient,omitempty"`
	Status    DispatchStatus `json:"status"`
	Attempts  int            `json:"attempts"`
	Error     string         `json:"error,omitempty"`
	At        time.Time      `json:"at"`
}

// Failed reports whether the dispatch ended in failure.
func (r DispatchResult) Failed() bool { return r.Status == StatusFailed }
