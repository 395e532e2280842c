package generate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"takevault/internal/batchstore"
	"takevault/internal/jobs"
	"takevault/internal/logging"
	"takevault/internal/services"
	"takevault/internal/synth"
)

// JobStore is the job record persistence the orchestrator needs: load a
// record, mutate it, save it back. The orchestrator has exclusive access to
// the record for the duration of one invocation.
type JobStore interface {
	Get(ctx context.Context, id string) (*jobs.Job, error)
	Save(ctx context.Context, job *jobs.Job) error
}

// Options configures an Orchestrator.
type Options struct {
	Root     string
	Batches  *batchstore.Store
	Jobs     JobStore
	Provider synth.Provider
	Sampler  *Sampler
	Sink     ProgressSink
	Logger   *slog.Logger
	Now      func() time.Time
}

// Orchestrator drives one generation job end to end: it translates the job's
// request plus a stream of per-take synthesis attempts into a terminal
// verdict, keeping the job record and the progress sink in sync.
type Orchestrator struct {
	root     string
	batches  *batchstore.Store
	jobStore JobStore
	provider synth.Provider
	sampler  *Sampler
	sink     ProgressSink
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs an Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		root:     opts.Root,
		batches:  opts.Batches,
		jobStore: opts.Jobs,
		provider: opts.Provider,
		sampler:  opts.Sampler,
		sink:     opts.Sink,
		logger:   logging.NewComponentLogger(opts.Logger, "generate"),
		now:      opts.Now,
	}
	if o.sampler == nil {
		o.sampler = NewSampler()
	}
	if o.sink == nil {
		o.sink = NopSink{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// outcome summarizes a completed take-generation loop.
type outcome struct {
	planned  int
	failures int
	message  string
	batchIDs []string
}

// Run executes the job with the given id. A missing job record means the
// invocation was cancelled before it began: Run returns nil without
// recording anything. Structural failures mark the job failed and are
// returned so the invoking substrate can apply its own retry policy.
func (o *Orchestrator) Run(ctx context.Context, jobID string) error {
	job, err := o.jobStore.Get(ctx, jobID)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "generate", "load job", jobID, err)
	}
	if job == nil {
		o.logger.Info("job record absent, abandoning invocation",
			logging.String(logging.FieldJobID, jobID),
			logging.String(logging.FieldEventType, "job_absent"),
		)
		return nil
	}

	job.MarkStarted(o.now())
	if err := o.jobStore.Save(ctx, job); err != nil {
		return services.Wrap(services.ErrPersistence, "generate", "record start", jobID, err)
	}
	o.sink.ReportProgress(jobs.StatusStarted, 0, "started")

	result, runErr := o.execute(ctx, job)
	if runErr != nil {
		job.MarkTerminal(jobs.StatusFailed, runErr.Error(), o.now())
		if saveErr := o.jobStore.Save(ctx, job); saveErr != nil {
			o.logger.Error("failed to record job failure",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(saveErr),
				logging.String(logging.FieldEventType, "job_save_failed"),
				logging.String(logging.FieldErrorHint, "check jobs database access"),
			)
		}
		o.sink.ReportProgress(jobs.StatusFailed, job.ProgressPercent, runErr.Error())
		return runErr
	}

	status := jobs.TerminalStatus(result.failures, result.planned)
	if status != jobs.StatusFailed {
		job.ResultBatchIDs = result.batchIDs
	}
	job.MarkTerminal(status, result.message, o.now())
	if err := o.jobStore.Save(ctx, job); err != nil {
		return services.Wrap(services.ErrPersistence, "generate", "record verdict", jobID, err)
	}
	o.sink.ReportProgress(status, 100, result.message)

	o.logger.Info("job finished",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("status", string(status)),
		logging.Int("planned", result.planned),
		logging.Int("failures", result.failures),
	)
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, job *jobs.Job) (outcome, error) {
	switch job.Kind {
	case jobs.KindBatchGenerate:
		return o.runBatchGenerate(ctx, job)
	case jobs.KindLineRegenText:
		return o.runLineRegenText(ctx, job)
	case jobs.KindLineRegenSpeech:
		return o.runLineRegenSpeech(ctx, job)
	default:
		return outcome{}, services.Wrap(services.ErrConfigInvalid, "generate", "dispatch",
			fmt.Sprintf("unknown job kind %q", job.Kind), nil)
	}
}

// reportTake publishes one informational progress update and persists it on
// the job record. Both are best-effort: a failed save never aborts the run.
func (o *Orchestrator) reportTake(ctx context.Context, job *jobs.Job, attempted, planned int, message string) {
	percent := float64(attempted) / float64(planned) * 100
	job.SetProgress(percent, message)
	o.logger.Debug("take finished",
		logging.String(logging.FieldJobID, job.ID),
		logging.Int(logging.FieldTake, attempted),
		logging.Float64(logging.FieldProgressPercent, percent),
	)
	if err := o.jobStore.Save(ctx, job); err != nil {
		o.logger.Warn("progress save failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err),
			logging.String(logging.FieldEventType, "progress_save_failed"),
			logging.String(logging.FieldErrorHint, "check jobs database access"),
		)
	}
	o.sink.ReportProgress(jobs.StatusProgress, percent, message)
}

// NewBatchID builds a batch identifier from a UTC timestamp and a short
// random suffix. The leading timestamp keeps directory names sortable and
// feeds the listing's fallback sort key.
func NewBatchID(now time.Time) string {
	return now.UTC().Format("20060102150405") + "-" + uuid.NewString()[:8]
}
