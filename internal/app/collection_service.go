// internal/app/collection_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"condo_collections/internal/domain/association"
	"condo_collections/internal/domain/delinquency"
	"condo_collections/internal/domain/notification"
	"condo_collections/internal/infra/metrics"
	"condo_collections/internal/infra/templates"
)

// CycleRunner runs one full collections cycle. The scheduler guarantees
// that calls never overlap.
type CycleRunner interface {
	RunCycle(ctx context.Context, trigger delinquency.Trigger) (*CycleSummary, error)
}

// CollectionService is the pipeline: read snapshots, classify, apply,
// decide, dispatch, then send the board digest.
type CollectionService struct {
	ledger      delinquency.LedgerStore
	contacts    association.Repository
	cycles      delinquency.CycleRepository
	applier     *Applier
	dispatcher  *Dispatcher
	publisher   EventPublisher
	metrics     metrics.Recorder
	logger      *logrus.Entry
	concurrency int
	now         func() time.Time
}

func NewCollectionService(
	ledger delinquency.LedgerStore,
	contacts association.Repository,
	cycles delinquency.CycleRepository,
	applier *Applier,
	dispatcher *Dispatcher,
	publisher EventPublisher,
	rec metrics.Recorder,
	logger *logrus.Entry,
	concurrency int,
) *CollectionService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &CollectionService{
		ledger:      ledger,
		contacts:    contacts,
		cycles:      cycles,
		applier:     applier,
		dispatcher:  dispatcher,
		publisher:   publisher,
		metrics:     rec,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// RunCycle processes every unit. Per-unit failures end up in the summary;
// only a failure to read contacts or snapshots aborts the cycle and returns
// an error.
func (s *CollectionService) RunCycle(ctx context.Context, trigger delinquency.Trigger) (*CycleSummary, error) {
	summary := &CycleSummary{
		CycleID:   uuid.NewString(),
		Trigger:   trigger,
		StartedAt: s.now(),
	}
	log := s.logger.WithFields(logrus.Fields{"cycle_id": summary.CycleID, "trigger": trigger})
	log.Info("Collections cycle started")

	contacts, err := s.contacts.ListContacts(ctx)
	if err != nil {
		return nil, s.abort(ctx, summary, nil, fmt.Errorf("failed to list association contacts: %w", err), log)
	}
	rcpt, err := association.Resolve(contacts)
	if err != nil {
		return nil, s.abort(ctx, summary, nil, err, log)
	}

	snapshots, err := s.ledger.GetAllUnitSnapshots(ctx)
	if err != nil {
		return nil, s.abort(ctx, summary, &rcpt, fmt.Errorf("failed to read unit snapshots: %w", err), log)
	}
	log.WithField("units", len(snapshots)).Info("Unit snapshots loaded")

	// Results land by index, so aggregation order is the snapshot order no
	// matter how the pool interleaves.
	outcomes := make([]unitOutcome, len(snapshots))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range snapshots {
		i := i
		g.Go(func() error {
			outcomes[i] = s.processUnit(ctx, summary.CycleID, snapshots[i], rcpt, summary.StartedAt)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		if o.finalState.IsDelinquent() {
			summary.DelinquentUnitCount++
		}
		if o.needsAction() {
			summary.UnitsNeedingAction++
		}
		if o.event != nil {
			summary.Events = append(summary.Events, *o.event)
		}
		if o.failure != nil {
			summary.UnitFailures = append(summary.UnitFailures, *o.failure)
		}
		summary.Dispatches = append(summary.Dispatches, o.dispatches...)
	}

	digest := s.buildDigest(summary, outcomes)
	digestResults := s.dispatcher.DispatchBoardDigest(ctx, digest, rcpt)
	for _, r := range digestResults {
		if r.Status == notification.StatusSent {
			summary.DigestSent = true
		}
	}
	summary.Dispatches = append(summary.Dispatches, digestResults...)

	summary.CompletedAt = s.now()
	summary.Outcome = delinquency.OutcomeCompleted
	run := summary.Run()
	if run.Failures > 0 {
		summary.Outcome = delinquency.OutcomePartial
		run.Outcome = summary.Outcome
	}
	s.finish(ctx, run, log)

	log.WithFields(logrus.Fields{
		"delinquent_units":     summary.DelinquentUnitCount,
		"units_needing_action": summary.UnitsNeedingAction,
		"escalations":          len(summary.Events),
		"failures":             run.Failures,
		"digest_sent":          summary.DigestSent,
	}).Info("Collections cycle finished")
	return summary, nil
}

// processUnit never returns an error: whatever goes wrong is reported in the
// outcome so the remaining units are unaffected.
func (s *CollectionService) processUnit(ctx context.Context, cycleID string, snap delinquency.UnitFinancialSnapshot, rcpt association.Recipients, at time.Time) unitOutcome {
	out := unitOutcome{snapshot: snap, finalState: snap.CurrentStatus}
	log := s.logger.WithFields(logrus.Fields{"cycle_id": cycleID, "unit_id": snap.UnitID})

	days, computed, err := delinquency.Classify(snap)
	if err != nil {
		log.WithError(err).Warn("Unit skipped: cannot classify")
		out.failure = unitFailure(snap, StageClassify, err)
		return out
	}

	ev, auditErr, err := s.applier.Apply(ctx, cycleID, snap, days, computed, at)
	if err != nil {
		log.WithError(err).Error("Unit skipped: state transition not persisted")
		out.failure = unitFailure(snap, StageApply, err)
		return out
	}
	if auditErr != nil {
		out.failure = unitFailure(snap, StageAudit, auditErr)
	}

	if ev != nil {
		out.event = ev
		out.finalState = ev.NewState
		out.actions = delinquency.PolicyFor(*ev)
	} else {
		out.actions = delinquency.ReNotifyPolicy(snap.CurrentStatus)
	}

	if out.actions.NeedsAction() {
		out.dispatches = s.dispatcher.Dispatch(ctx, UnitWork{
			Snapshot:       snap,
			DaysDelinquent: days,
			State:          out.finalState,
			Event:          ev,
			Actions:        out.actions,
			CycleTime:      at,
		}, rcpt)
	}
	return out
}

// abort handles a cycle-level failure: it is recorded, counted and, when the
// board is known, announced.
func (s *CollectionService) abort(ctx context.Context, summary *CycleSummary, rcpt *association.Recipients, cause error, log *logrus.Entry) error {
	log.WithError(cause).Error("Collections cycle aborted")

	if rcpt != nil {
		s.dispatcher.AlertBoard(ctx, *rcpt, templates.AlertData{
			AssociationName: s.dispatcher.cfg.AssociationName,
			Subject:         "collections cycle failed",
			Message:         "The collections cycle could not run. No unit was processed; the next scheduled run will try again.",
			Error:           cause.Error(),
		})
	}

	summary.CompletedAt = s.now()
	summary.Outcome = delinquency.OutcomeFailed
	run := summary.Run()
	run.Error = cause.Error()
	s.finish(ctx, run, log)
	return cause
}

func (s *CollectionService) finish(ctx context.Context, run delinquency.CycleRun, log *logrus.Entry) {
	s.metrics.IncCycle(string(run.Trigger), string(run.Outcome))
	s.metrics.ObserveCycleDuration(run.CompletedAt.Sub(run.StartedAt))

	if err := s.cycles.RecordCycle(ctx, &run); err != nil {
		log.WithError(err).Error("Failed to record collection cycle")
	}
	if err := s.publisher.PublishCycle(ctx, run); err != nil {
		log.WithError(err).Warn("Failed to publish cycle summary")
	}
}

// LatestCycle returns the most recent recorded cycle, or nil if none ran yet.
func (s *CollectionService) LatestCycle(ctx context.Context) (*delinquency.CycleRun, error) {
	run, err := s.cycles.LatestCycle(ctx)
	if errors.Is(err, delinquency.ErrCycleNotFound) {
		return nil, nil
	}
	return run, err
}

func unitFailure(snap delinquency.UnitFinancialSnapshot, stage string, err error) *UnitFailure {
	return &UnitFailure{UnitID: snap.UnitID, UnitNumber: snap.UnitNumber, Stage: stage, Error: err.Error()}
}
