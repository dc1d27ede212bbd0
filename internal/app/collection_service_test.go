package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"condo_collections/internal/domain/association"
	"condo_collections/internal/domain/delinquency"
	"condo_collections/internal/domain/notification"
)

func TestRunCycle_RecoveryIsReportedToBoard(t *testing.T) {
	h := newHarness(t, unit("u1", "0", "400", delinquency.StatePending))

	summary := h.run(t)

	require.Len(t, summary.Events, 1)
	ev := summary.Events[0]
	assert.Equal(t, delinquency.StatePending, ev.PreviousState)
	assert.Equal(t, delinquency.StateCurrent, ev.NewState)
	assert.Equal(t, delinquency.StateCurrent, h.ledger.state("u1"))

	assert.Empty(t, h.mail.to("u1@owners.example"), "recoveries never notify the owner")
	assert.Empty(t, h.records.forUnit("u1"))
	assert.Equal(t, 0, summary.DelinquentUnitCount)
	assert.Equal(t, 0, summary.UnitsNeedingAction)

	require.True(t, summary.DigestSent)
	digest := h.mail.to(boardEmail)
	require.Len(t, digest, 1)
	assert.Contains(t, digest[0].Body, "Collections recovered")
	assert.Contains(t, digest[0].Body, "#u1")
	assert.Len(t, h.chat.to(boardChatID), 1)
}

func TestRunCycle_NinetyDaysRefersToAttorney(t *testing.T) {
	h := newHarness(t, unit("u2", "1200", "400", delinquency.StateCurrent))

	summary := h.run(t)

	require.Len(t, summary.Events, 1)
	assert.Equal(t, delinquency.StateTier90Plus, summary.Events[0].NewState)
	assert.Equal(t, 90, summary.Events[0].DaysDelinquent)
	assert.Equal(t, delinquency.StateTier90Plus, h.ledger.state("u2"))

	assert.Empty(t, h.mail.to("u2@owners.example"), "owner notice is suppressed at 90+ days")
	assert.Equal(t, []notification.DispatchStatus{notification.StatusSent}, statuses(summary.Dispatches, notification.KindAttorneyReferral))
	assert.Len(t, statuses(summary.Dispatches, notification.KindBoardAlert), 3, "two board members and the board chat")

	referral := h.mail.to(attorneyEmail)
	require.Len(t, referral, 1)
	assert.Contains(t, referral[0].Body, "Balance breakdown")
	assert.Contains(t, referral[0].Body, "Escalation history")
	assert.Contains(t, referral[0].Body, "current -> tier_90_plus")

	records := h.records.forUnit("u2")
	require.Len(t, records, 1)
	assert.Equal(t, notification.TierAttorneyReferral, records[0].Tier)
	assert.Equal(t, period, records[0].Period)

	board := h.mail.to(boardEmail)
	require.Len(t, board, 2, "escalation alert and digest")
	assert.True(t, strings.HasPrefix(board[0].Subject, "URGENT: unit #u2 moved to tier_90_plus"))
	assert.Contains(t, board[1].Body, "Attorney referrals")
}

func TestRunCycle_ReNotifyOnlyWithoutRecord(t *testing.T) {
	stuck := unit("u3", "500", "400", delinquency.StateTier30To60)

	t.Run("record on file suppresses resend", func(t *testing.T) {
		h := newHarness(t, stuck)
		require.NoError(t, h.records.WriteRecord(context.Background(), &notification.Record{
			UnitID: "u3", Tier: notification.TierLateFee60Day, Period: period, Outcome: notification.OutcomeSent,
		}))

		for i := 0; i < 2; i++ {
			summary := h.run(t)
			assert.Empty(t, summary.Events)
			assert.Equal(t, []notification.DispatchStatus{notification.StatusAlreadySent}, statuses(summary.Dispatches, notification.KindOwnerNotice))
			assert.False(t, summary.DigestSent)
		}
		assert.Empty(t, h.mail.to("u3@owners.example"))
	})

	t.Run("missing record fires exactly once", func(t *testing.T) {
		h := newHarness(t, stuck)

		first := h.run(t)
		assert.Equal(t, []notification.DispatchStatus{notification.StatusSent}, statuses(first.Dispatches, notification.KindOwnerNotice))
		assert.Equal(t, 1, first.UnitsNeedingAction)

		second := h.run(t)
		assert.Equal(t, []notification.DispatchStatus{notification.StatusAlreadySent}, statuses(second.Dispatches, notification.KindOwnerNotice))

		notices := h.mail.to("u3@owners.example")
		require.Len(t, notices, 1)
		assert.Contains(t, notices[0].Subject, "late fees may apply")
		assert.Empty(t, h.mail.to(boardEmail), "unchanged units do not alert the board")
	})
}

func TestRunCycle_SecondRunSendsNothingNew(t *testing.T) {
	h := newHarness(t,
		unit("a", "250", "400", delinquency.StateCurrent),
		unit("b", "1200", "400", delinquency.StateCurrent),
		unit("c", "800", "400", delinquency.StateCurrent),
	)

	first := h.run(t)
	assert.Equal(t, 3, first.DelinquentUnitCount)
	assert.Len(t, first.Events, 3)
	assert.Equal(t, delinquency.StatePending, h.ledger.state("a"))
	assert.Equal(t, delinquency.StateTier60To90, h.ledger.state("c"))
	sentFirst := len(h.mail.sent)

	second := h.run(t)
	assert.Equal(t, first.DelinquentUnitCount, second.DelinquentUnitCount)
	assert.Empty(t, second.Events)
	assert.Equal(t, 0, second.UnitsNeedingAction)
	assert.False(t, second.DigestSent)
	for _, d := range second.Dispatches {
		assert.Equal(t, notification.StatusAlreadySent, d.Status, "%s for %s", d.Kind, d.UnitID)
	}
	assert.Equal(t, sentFirst, len(h.mail.sent), "no message of any kind on the second run")
}

func TestRunCycle_DataIntegrityErrorSkipsOnlyThatUnit(t *testing.T) {
	h := newHarness(t,
		unit("bad", "100", "0", delinquency.StateCurrent),
		unit("good", "500", "400", delinquency.StateCurrent),
	)

	summary := h.run(t)

	require.Len(t, summary.UnitFailures, 1)
	assert.Equal(t, "bad", summary.UnitFailures[0].UnitID)
	assert.Equal(t, StageClassify, summary.UnitFailures[0].Stage)
	assert.Equal(t, delinquency.StateCurrent, h.ledger.state("bad"))

	assert.Equal(t, delinquency.StateTier30To60, h.ledger.state("good"))
	assert.Len(t, h.mail.to("good@owners.example"), 1)
	assert.Equal(t, delinquency.OutcomePartial, summary.Outcome)

	digest := h.mail.to(managerEmail)
	require.NotEmpty(t, digest)
	assert.Contains(t, digest[len(digest)-1].Body, "Units not processed")
}

func TestRunCycle_UnreadableStateSkipsOnlyThatUnit(t *testing.T) {
	bad := unit("u-3", "400", "400", "")
	bad.LoadErr = fmt.Errorf("%w %q", delinquency.ErrUnknownState, "Pending")
	h := newHarness(t,
		unit("u-1", "1200", "400", delinquency.StateCurrent),
		unit("u-2", "800", "400", delinquency.StateCurrent),
		bad,
	)

	summary := h.run(t)

	assert.Equal(t, delinquency.OutcomePartial, summary.Outcome)
	require.Len(t, summary.Events, 2)
	assert.Equal(t, delinquency.StateTier90Plus, h.ledger.state("u-1"))
	assert.Equal(t, delinquency.StateTier60To90, h.ledger.state("u-2"))
	assert.Len(t, h.mail.to("u-2@owners.example"), 1)
	assert.Len(t, h.mail.to(attorneyEmail), 1)
	assert.Empty(t, h.mail.to("u-3@owners.example"))

	require.Len(t, summary.UnitFailures, 1)
	assert.Equal(t, "u-3", summary.UnitFailures[0].UnitID)
	assert.Equal(t, StageClassify, summary.UnitFailures[0].Stage)
	assert.Contains(t, summary.UnitFailures[0].Error, "Pending")

	digest := h.mail.to(managerEmail)
	require.NotEmpty(t, digest)
	assert.Contains(t, digest[len(digest)-1].Body, "Units not processed")
}

func TestRunCycle_PeriodIsFixedAtCycleStart(t *testing.T) {
	h := newHarness(t, unit("u", "500", "400", delinquency.StateCurrent))
	started := time.Date(2026, time.October, 31, 23, 59, 0, 0, time.UTC)
	h.svc.now = func() time.Time { return started }
	h.svc.dispatcher.now = func() time.Time { return started.Add(2 * time.Minute) }

	h.run(t)

	records := h.records.forUnit("u")
	require.Len(t, records, 1)
	assert.Equal(t, "2026-10", records[0].Period)
}

func TestRunCycle_LedgerWriteFailureSendsNothing(t *testing.T) {
	h := newHarness(t, unit("u", "800", "400", delinquency.StateCurrent))
	h.ledger.failWrite["u"] = true

	summary := h.run(t)

	assert.Empty(t, summary.Events)
	assert.Empty(t, h.events.events)
	assert.Empty(t, h.publisher.escalations)
	assert.Empty(t, h.mail.to("u@owners.example"))
	assert.Empty(t, h.records.forUnit("u"))
	require.Len(t, summary.UnitFailures, 1)
	assert.Equal(t, StageApply, summary.UnitFailures[0].Stage)
	assert.Equal(t, delinquency.StateCurrent, h.ledger.state("u"))

	// Once the ledger recovers the unit escalates normally.
	h.ledger.failWrite["u"] = false
	next := h.run(t)
	require.Len(t, next.Events, 1)
	assert.Len(t, h.mail.to("u@owners.example"), 1)
}

func TestRunCycle_AuditFailureKeepsTransition(t *testing.T) {
	h := newHarness(t, unit("u", "500", "400", delinquency.StateCurrent))
	h.events.err = errors.New("disk full")

	summary := h.run(t)

	require.Len(t, summary.Events, 1)
	assert.Equal(t, delinquency.StateTier30To60, h.ledger.state("u"))
	assert.Len(t, h.mail.to("u@owners.example"), 1)
	require.Len(t, summary.UnitFailures, 1)
	assert.Equal(t, StageAudit, summary.UnitFailures[0].Stage)
}

func TestRunCycle_MissingEmail(t *testing.T) {
	u := unit("u", "500", "400", delinquency.StateCurrent)
	u.ContactEmail = ""
	h := newHarness(t, u)

	summary := h.run(t)

	assert.Equal(t, []notification.DispatchStatus{notification.StatusNoContact}, statuses(summary.Dispatches, notification.KindOwnerNotice))
	records := h.records.forUnit("u")
	require.Len(t, records, 1)
	assert.Equal(t, notification.OutcomeNoContact, records[0].Outcome)
	assert.Equal(t, notification.TierLateFee60Day, records[0].Tier)

	assert.Len(t, statuses(summary.Dispatches, notification.KindBoardAlert), 3, "board alert is not suppressed")
	board := h.mail.to(boardEmail)
	require.Len(t, board, 2)
	assert.Contains(t, board[1].Body, "Owners without email on file")
}

func TestRunCycle_DeliveryFailureIsSurfacedAndRetriedNextCycle(t *testing.T) {
	h := newHarness(t, unit("u", "500", "400", delinquency.StateCurrent))
	h.mail.fail["u@owners.example"] = true

	summary := h.run(t)

	var owner notification.DispatchResult
	for _, d := range summary.Dispatches {
		if d.Kind == notification.KindOwnerNotice {
			owner = d
		}
	}
	assert.Equal(t, notification.StatusFailed, owner.Status)
	assert.Equal(t, 2, owner.Attempts)
	assert.Equal(t, 2, h.mail.calls["u@owners.example"])
	assert.Empty(t, h.records.forUnit("u"))

	board := h.mail.to(boardEmail)
	require.NotEmpty(t, board)
	assert.Contains(t, board[len(board)-1].Body, "Failed deliveries")
	assert.Equal(t, delinquency.OutcomePartial, summary.Outcome)

	h.mail.fail["u@owners.example"] = false
	next := h.run(t)
	assert.Empty(t, next.Events)
	assert.Equal(t, []notification.DispatchStatus{notification.StatusSent}, statuses(next.Dispatches, notification.KindOwnerNotice))
	assert.Len(t, h.mail.to("u@owners.example"), 1)
}

func TestRunCycle_MissingAttorneyAlertsBoard(t *testing.T) {
	h := newHarness(t, unit("u", "1200", "400", delinquency.StateCurrent))
	h.contacts.contacts = defaultContacts()[:2]

	summary := h.run(t)

	var referral notification.DispatchResult
	for _, d := range summary.Dispatches {
		if d.Kind == notification.KindAttorneyReferral {
			referral = d
		}
	}
	assert.Equal(t, notification.StatusFailed, referral.Status)
	assert.Contains(t, referral.Error, "no active attorney")

	var urgent bool
	for _, m := range h.mail.to(boardEmail) {
		if strings.Contains(m.Subject, "attorney referral for unit #u failed") {
			urgent = true
		}
	}
	assert.True(t, urgent)
	assert.Empty(t, h.records.forUnit("u"))
}

func TestRunCycle_AttorneyReferralDeliveryFailure(t *testing.T) {
	h := newHarness(t, unit("u", "1200", "400", delinquency.StateCurrent))
	h.mail.fail[attorneyEmail] = true

	summary := h.run(t)

	assert.Equal(t, []notification.DispatchStatus{notification.StatusFailed}, statuses(summary.Dispatches, notification.KindAttorneyReferral))
	board := h.mail.to(boardEmail)
	require.Len(t, board, 3, "escalation alert, referral failure alert, digest")
	assert.Contains(t, board[1].Subject, "URGENT: attorney referral")
	assert.Contains(t, board[1].Body, "relay refused")
}

func TestRunCycle_AttorneyGate(t *testing.T) {
	h := newHarness(t,
		unit("law", "0", "400", delinquency.StateAttorney),
		unit("law2", "5000", "400", delinquency.StateAttorney),
	)

	summary := h.run(t)

	assert.Empty(t, summary.Events)
	assert.Empty(t, h.ledger.updates)
	assert.Empty(t, summary.Dispatches)
	assert.Equal(t, 2, summary.DelinquentUnitCount)
	assert.Equal(t, delinquency.StateAttorney, h.ledger.state("law"))
	assert.False(t, summary.DigestSent)
}

func TestRunCycle_SnapshotReadFailureAborts(t *testing.T) {
	h := newHarness(t)
	h.ledger.readErr = errors.New("connection refused")

	summary, err := h.svc.RunCycle(context.Background(), delinquency.TriggerScheduled)
	require.Error(t, err)
	assert.Nil(t, summary)

	board := h.mail.to(boardEmail)
	require.Len(t, board, 1)
	assert.Equal(t, "URGENT: collections cycle failed", board[0].Subject)

	require.Len(t, h.cycles.runs, 1)
	assert.Equal(t, delinquency.OutcomeFailed, h.cycles.runs[0].Outcome)
	assert.Contains(t, h.cycles.runs[0].Error, "connection refused")
	require.Len(t, h.publisher.cycles, 1)
}

func TestRunCycle_NoBoardRecipients(t *testing.T) {
	h := newHarness(t, unit("u", "500", "400", delinquency.StateCurrent))
	h.contacts.contacts = defaultContacts()[2:]

	_, err := h.svc.RunCycle(context.Background(), delinquency.TriggerScheduled)
	assert.True(t, errors.Is(err, association.ErrNoBoardRecipients))
	assert.Empty(t, h.mail.sent)
	assert.Equal(t, delinquency.StateCurrent, h.ledger.state("u"), "nothing is processed without a board to report to")
}

func TestRunCycle_DeterministicAggregation(t *testing.T) {
	var units []delinquency.UnitFinancialSnapshot
	for i := 0; i < 25; i++ {
		units = append(units, unit(fmt.Sprintf("u%02d", i), "100", "400", delinquency.StateCurrent))
	}
	h := newHarness(t, units...)

	summary := h.run(t)

	require.Len(t, summary.Events, 25)
	for i, ev := range summary.Events {
		assert.Equal(t, fmt.Sprintf("u%02d", i), ev.UnitID)
		assert.Equal(t, summary.CycleID, ev.CycleID)
	}
	assert.Len(t, h.publisher.escalations, 25)
	require.Len(t, h.cycles.runs, 1)
	assert.Equal(t, 25, h.cycles.runs[0].Escalations)

	latest, err := h.svc.LatestCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, summary.CycleID, latest.ID)
}

func TestLatestCycle_NoneYet(t *testing.T) {
	h := newHarness(t)
	latest, err := h.svc.LatestCycle(context.Background())
	require.NoError(t, err)
	assert.Nil(t, latest)
}
