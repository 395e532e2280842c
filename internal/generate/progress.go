package generate

import "takevault/internal/jobs"

// ProgressSink receives live progress updates from a running job. Updates
// are fire-and-forget from the orchestrator's perspective: a sink must not
// block and cannot influence the run.
type ProgressSink interface {
	ReportProgress(status jobs.Status, percent float64, message string)
}

// SinkFunc adapts a function to the ProgressSink interface.
type SinkFunc func(status jobs.Status, percent float64, message string)

func (f SinkFunc) ReportProgress(status jobs.Status, percent float64, message string) {
	f(status, percent, message)
}

// NopSink discards all progress updates.
type NopSink struct{}

func (NopSink) ReportProgress(jobs.Status, float64, string) {}
