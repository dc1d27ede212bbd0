package metrics

import "time"

// Recorder defines the observability hooks of the collections pipeline.
// Implementations must be safe for concurrent use; dispatch results are
// recorded from the per-unit worker pool.
type Recorder interface {
	IncCycle(trigger, outcome string)
	ObserveCycleDuration(d time.Duration)
	SetCycleRunning(running bool)
	IncTriggerRejected(trigger string)
	IncEscalation(from, to string)
	IncDispatchResult(kind, status string)
	IncDispatchRetry(kind string)
}

// NoopRecorder is a Recorder that does nothing (default in tests and one-shot runs).
type NoopRecorder struct{}

func (NoopRecorder) IncCycle(string, string)            {}
func (NoopRecorder) ObserveCycleDuration(time.Duration) {}
func (NoopRecorder) SetCycleRunning(bool)               {}
func (NoopRecorder) IncTriggerRejected(string)          {}
func (NoopRecorder) IncEscalation(string, string)       {}
func (NoopRecorder) IncDispatchResult(string, string)   {}
func (NoopRecorder) IncDispatchRetry(string)            {}
