package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a generation job.
type Status string

const (
	StatusPending             Status = "pending"
	StatusStarted             Status = "started"
	StatusProgress            Status = "progress"
	StatusSuccess             Status = "success"
	StatusCompletedWithErrors Status = "completed_with_errors"
	StatusFailed              Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusStarted,
	StatusProgress,
	StatusSuccess,
	StatusCompletedWithErrors,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusCompletedWithErrors, StatusFailed:
		return true
	default:
		return false
	}
}

// Kind identifies what a generation job does.
type Kind string

const (
	KindBatchGenerate   Kind = "batch_generate"
	KindLineRegenText   Kind = "line_regen_text"
	KindLineRegenSpeech Kind = "line_regen_speech"
)

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case KindBatchGenerate, KindLineRegenText, KindLineRegenSpeech:
		return normalized, true
	default:
		return "", false
	}
}

// Job is the orchestration record for one generation run. The orchestrator
// owns the record exclusively for the duration of one invocation.
type Job struct {
	ID              string
	Kind            Kind
	Status          Status
	RequestJSON     string
	TargetBatchID   string
	TargetLineKey   string
	Attempts        int
	ProgressPercent float64
	ProgressMessage string
	ResultMessage   string
	ResultBatchIDs  []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

// MarkStarted records the start transition.
func (j *Job) MarkStarted(now time.Time) {
	j.Status = StatusStarted
	started := now.UTC()
	j.StartedAt = &started
	j.ProgressPercent = 0
	j.ProgressMessage = ""
}

// SetProgress records an informational progress update. Purely
// observational; never a decision point.
func (j *Job) SetProgress(percent float64, message string) {
	j.Status = StatusProgress
	j.ProgressPercent = percent
	j.ProgressMessage = message
}

// MarkTerminal records a terminal transition with its result message.
func (j *Job) MarkTerminal(status Status, message string, now time.Time) {
	j.Status = status
	j.ResultMessage = message
	completed := now.UTC()
	j.CompletedAt = &completed
	if status == StatusSuccess {
		j.ProgressPercent = 100
	}
}

// TerminalStatus derives the job verdict from the failure tally: no failures
// is success, all attempts failed is failure, anything between completed
// with errors.
func TerminalStatus(failures, planned int) Status {
	switch {
	case failures == 0:
		return StatusSuccess
	case failures >= planned:
		return StatusFailed
	default:
		return StatusCompletedWithErrors
	}
}
