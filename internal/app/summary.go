package app

import (
	"time"

	"condo_collections/internal/domain/delinquency"
	"condo_collections/internal/domain/notification"
)

// Stages a unit can fail in. A failed unit is skipped for the cycle and
// retried from its stored state on the next one.
const (
	StageClassify = "classify"
	StageApply    = "apply"
	StageAudit    = "audit"
)

// UnitFailure is a per-unit error reported in the cycle summary and digest.
type UnitFailure struct {
	UnitID     string `json:"unit_id"`
	UnitNumber string `json:"unit_number"`
	Stage      string `json:"stage"`
	Error      string `json:"error"`
}

// CycleSummary is what a trigger gets back once a cycle has finished.
type CycleSummary struct {
	CycleID             string                        `json:"cycle_id"`
	Trigger             delinquency.Trigger           `json:"trigger"`
	StartedAt           time.Time                     `json:"started_at"`
	CompletedAt         time.Time                     `json:"completed_at"`
	Outcome             delinquency.CycleOutcome      `json:"outcome"`
	DelinquentUnitCount int                           `json:"delinquent_unit_count"`
	UnitsNeedingAction  int                           `json:"units_needing_action"`
	Events              []delinquency.EscalationEvent `json:"events"`
	Dispatches          []notification.DispatchResult `json:"dispatches"`
	UnitFailures        []UnitFailure                 `json:"unit_failures"`
	DigestSent          bool                          `json:"digest_sent"`
}

// Run flattens the summary into its persisted outline.
func (s *CycleSummary) Run() delinquency.CycleRun {
	failures := len(s.UnitFailures)
	for _, d := range s.Dispatches {
		if d.Failed() {
			failures++
		}
	}
	return delinquency.CycleRun{
		ID:                 s.CycleID,
		Trigger:            s.Trigger,
		StartedAt:          s.StartedAt,
		CompletedAt:        s.CompletedAt,
		Outcome:            s.Outcome,
		DelinquentUnits:    s.DelinquentUnitCount,
		UnitsNeedingAction: s.UnitsNeedingAction,
		Escalations:        len(s.Events),
		Failures:           failures,
	}
}

// unitOutcome is everything one unit produced during a cycle.
type unitOutcome struct {
	snapshot   delinquency.UnitFinancialSnapshot
	finalState delinquency.LifecycleState // stored state once the cycle is done
	event      *delinquency.EscalationEvent
	actions    delinquency.ActionSet
	dispatches []notification.DispatchResult
	failure    *UnitFailure
}

// needsAction is true when something other than an idempotent skip happened
// on the unit's behalf.
func (o unitOutcome) needsAction() bool {
	for _, d := range o.dispatches {
		if d.Status != notification.StatusAlreadySent && d.Status != notification.StatusSkipped {
			return true
		}
	}
	return false
}
