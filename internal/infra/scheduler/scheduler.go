package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"condo_collections/internal/app"
	"condo_collections/internal/domain/delinquency"
	"condo_collections/internal/infra/metrics"
)

// ErrCycleAlreadyRunning is the answer to a manual trigger while a cycle is
// in progress. It is a control-flow signal, not a fault.
var ErrCycleAlreadyRunning = errors.New("collections cycle already running")

// State is the scheduler's pipeline state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Status is the observable state of the scheduler.
type Status struct {
	State          State               `json:"state"`
	CurrentTrigger delinquency.Trigger `json:"current_trigger,omitempty"`
	RunningSince   *time.Time          `json:"running_since,omitempty"`
	NextRun        *time.Time          `json:"next_run,omitempty"`
	LastSummary    *app.CycleSummary   `json:"last_summary,omitempty"`
	LastError      string              `json:"last_error,omitempty"`
}

// CollectionsScheduler owns the single "is a cycle running" flag. The
// recurring trigger and the manual trigger both go through tryStart, so two
// cycles never overlap.
type CollectionsScheduler struct {
	cronEngine *cron.Cron
	cronSpec   string
	entryID    cron.EntryID
	runner     app.CycleRunner
	metrics    metrics.Recorder
	logger     *logrus.Entry

	mu           sync.Mutex
	running      bool
	trigger      delinquency.Trigger
	runningSince time.Time
	lastSummary  *app.CycleSummary
	lastErr      error
}

func NewCollectionsScheduler(runner app.CycleRunner, cronSpec string, loc *time.Location, rec metrics.Recorder, logger *logrus.Entry) *CollectionsScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &CollectionsScheduler{
		cronEngine: cron.New(cron.WithLocation(loc)),
		cronSpec:   cronSpec,
		runner:     runner,
		metrics:    rec,
		logger:     logger,
	}
}

// Start registers the recurring trigger and starts the cron engine.
func (s *CollectionsScheduler) Start() error {
	s.logger.Info("Starting collections scheduler...")

	id, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		s.logger.Info("Cron job triggered for collections cycle.")
		s.runScheduled()
	})
	if err != nil {
		return err
	}
	s.entryID = id

	s.cronEngine.Start()
	s.logger.WithField("cron", s.cronSpec).Info("Collections scheduler started.")
	return nil
}

// Stop stops the cron engine and waits for a running scheduled cycle.
func (s *CollectionsScheduler) Stop() {
	s.logger.Info("Stopping collections scheduler...")
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("Collections scheduler gracefully stopped.")
}

// runScheduled drops the tick when a cycle is already running; ticks are
// never queued.
func (s *CollectionsScheduler) runScheduled() {
	if !s.tryStart(delinquency.TriggerScheduled) {
		s.logger.Warn("Collections cycle still running. Scheduled run skipped")
		s.metrics.IncTriggerRejected(string(delinquency.TriggerScheduled))
		return
	}
	summary, err := s.execute(context.Background(), delinquency.TriggerScheduled)
	if err != nil {
		s.logger.WithError(err).Error("Scheduled collections cycle failed")
		return
	}
	s.logger.WithField("cycle_id", summary.CycleID).Info("Scheduled collections cycle completed")
}

// Trigger runs a cycle now and waits for it. It returns
// ErrCycleAlreadyRunning instead of waiting when a cycle is in progress.
// Once started, the cycle runs to completion even if ctx is cancelled.
func (s *CollectionsScheduler) Trigger(ctx context.Context) (*app.CycleSummary, error) {
	if !s.tryStart(delinquency.TriggerManual) {
		s.logger.Info("Manual trigger rejected: collections cycle already running")
		s.metrics.IncTriggerRejected(string(delinquency.TriggerManual))
		return nil, ErrCycleAlreadyRunning
	}
	return s.execute(context.WithoutCancel(ctx), delinquency.TriggerManual)
}

func (s *CollectionsScheduler) tryStart(trigger delinquency.Trigger) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	s.trigger = trigger
	s.runningSince = time.Now()
	s.metrics.SetCycleRunning(true)
	return true
}

// execute runs the cycle and returns to Idle whatever happens, panics included.
func (s *CollectionsScheduler) execute(ctx context.Context, trigger delinquency.Trigger) (summary *app.CycleSummary, err error) {
	defer func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.running = false
		s.trigger = ""
		if summary != nil {
			s.lastSummary = summary
		}
		s.lastErr = err
		s.metrics.SetCycleRunning(false)
	}()
	return s.runner.RunCycle(ctx, trigger)
}

// IsRunning reports whether a cycle is in progress.
func (s *CollectionsScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *CollectionsScheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{State: StateIdle, LastSummary: s.lastSummary}
	if s.running {
		since := s.runningSince
		st.State = StateRunning
		st.CurrentTrigger = s.trigger
		st.RunningSince = &since
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	if s.entryID != 0 {
		if next := s.cronEngine.Entry(s.entryID).Next; !next.IsZero() {
			st.NextRun = &next
		}
	}
	return st
}
