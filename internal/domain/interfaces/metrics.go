package interfaces

import "time"

// Metrics records pipeline outcomes and stage timings
type Metrics interface {
	// ObserveResult counts a finished invocation by outcome class and status
	ObserveResult(outcome string, status int)

	// ObserveStage records how long a pipeline stage took
	ObserveStage(stage string, d time.Duration)

	// ObserveArchiveEntries records the number of entries seen in an archive
	ObserveArchiveEntries(n int)
}

// NoOpMetrics discards all observations
type NoOpMetrics struct{}

// ObserveResult does nothing
func (NoOpMetrics) ObserveResult(string, int) {}

// ObserveStage does nothing
func (NoOpMetrics) ObserveStage(string, time.Duration) {}

// ObserveArchiveEntries does nothing
func (NoOpMetrics) ObserveArchiveEntries(int) {}
