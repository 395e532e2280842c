// Package worker runs the background job loop: it claims pending generation
// jobs one at a time, hands them to the orchestrator, and requeues retryable
// failures up to the configured attempt cap. A flock on the state directory
// enforces single-instance execution.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"takevault/internal/config"
	"takevault/internal/jobs"
	"takevault/internal/logging"
	"takevault/internal/services"
)

// Runner executes one generation job. Satisfied by generate.Orchestrator.
type Runner interface {
	Run(ctx context.Context, jobID string) error
}

// Worker claims and executes generation jobs sequentially.
type Worker struct {
	cfg    *config.Config
	store  *jobs.Store
	runner Runner
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a worker with initialized dependencies.
func New(cfg *config.Config, store *jobs.Store, runner Runner, logger *slog.Logger) (*Worker, error) {
	if cfg == nil || store == nil || runner == nil {
		return nil, errors.New("worker requires config, store, and runner")
	}
	lockPath := filepath.Join(cfg.Paths.StateDir, "takevaultd.lock")
	return &Worker{
		cfg:      cfg,
		store:    store,
		runner:   runner,
		logger:   logging.NewComponentLogger(logger, "worker"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// LockPath returns the path of the single-instance lock file.
func (w *Worker) LockPath() string {
	return w.lockPath
}

// Start acquires the instance lock, requeues jobs a previous process left
// mid-flight, and launches the claim loop.
func (w *Worker) Start(ctx context.Context) error {
	if w.running.Load() {
		return errors.New("worker already running")
	}

	ok, err := w.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another takevault worker instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := w.reclaimStaleJobs(runCtx); err != nil {
		cancel()
		_ = w.lock.Unlock()
		return err
	}

	w.cancel = cancel
	w.running.Store(true)
	w.wg.Add(1)
	go w.loop(runCtx)
	return nil
}

// Stop terminates the claim loop, waits for the in-flight job, and releases
// the instance lock.
func (w *Worker) Stop() {
	if !w.running.Load() {
		return
	}
	w.cancel()
	w.wg.Wait()
	w.running.Store(false)
	if err := w.lock.Unlock(); err != nil {
		w.logger.Warn("releasing instance lock failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "lock_release_failed"),
		)
	}
}

// Running reports whether the claim loop is active.
func (w *Worker) Running() bool {
	return w.running.Load()
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.store.NextPending(ctx)
		if err != nil {
			w.logger.Error("failed to fetch next pending job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "job_fetch_failed"),
				logging.String(logging.FieldErrorHint, "check jobs database access"),
			)
			w.sleep(ctx, w.errorRetryInterval())
			continue
		}
		if job == nil {
			w.sleep(ctx, w.pollInterval())
			continue
		}

		if err := w.processJob(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

// processJob charges one attempt against the job, runs it, and requeues it
// when the failure is retryable and attempts remain. Every log line from one
// claim carries the same correlation id.
func (w *Worker) processJob(ctx context.Context, job *jobs.Job) error {
	log := w.logger.With(
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldCorrelationID, uuid.NewString()),
	)

	job.Attempts++
	if err := w.store.Save(ctx, job); err != nil {
		log.Error("failed to record job attempt",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_save_failed"),
			logging.String(logging.FieldErrorHint, "check jobs database access"),
		)
		w.sleep(ctx, w.errorRetryInterval())
		return err
	}
	log.Info("job claimed",
		logging.Int("attempts", job.Attempts),
		logging.String(logging.FieldEventType, "job_claimed"),
	)

	runErr := w.runner.Run(ctx, job.ID)
	if runErr == nil {
		return nil
	}
	if errors.Is(runErr, context.Canceled) {
		return runErr
	}

	if services.IsRetryable(runErr) && job.Attempts < w.maxAttempts() {
		w.requeue(ctx, log, job.ID, job.Attempts, runErr)
		w.sleep(ctx, w.errorRetryInterval())
		return nil
	}

	log.Error("job failed permanently",
		logging.Int("attempts", job.Attempts),
		logging.Error(runErr),
		logging.String(logging.FieldEventType, "job_failed"),
	)
	return nil
}

func (w *Worker) requeue(ctx context.Context, log *slog.Logger, jobID string, attempts int, cause error) {
	job, err := w.store.Get(ctx, jobID)
	if err != nil || job == nil {
		log.Error("failed to reload job for requeue",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_requeue_failed"),
		)
		return
	}
	job.Status = jobs.StatusPending
	if err := w.store.Save(ctx, job); err != nil {
		log.Error("failed to requeue job",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_requeue_failed"),
			logging.String(logging.FieldErrorHint, "check jobs database access"),
		)
		return
	}
	log.Warn("job requeued after retryable failure",
		logging.Int("attempts", attempts),
		logging.Error(cause),
		logging.String(logging.FieldEventType, "job_requeued"),
	)
}

// reclaimStaleJobs requeues jobs a crashed process left in a non-terminal,
// non-pending state. Jobs that already exhausted their attempts are marked
// failed instead.
func (w *Worker) reclaimStaleJobs(ctx context.Context) error {
	all, err := w.store.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("reclaim stale jobs: %w", err)
	}

	for _, job := range all {
		if job.Status.IsTerminal() || job.Status == jobs.StatusPending {
			continue
		}
		if job.Attempts >= w.maxAttempts() {
			job.MarkTerminal(jobs.StatusFailed, "abandoned after process restart", time.Now())
		} else {
			job.Status = jobs.StatusPending
		}
		if err := w.store.Save(ctx, job); err != nil {
			return fmt.Errorf("reclaim job %s: %w", job.ID, err)
		}
		w.logger.Warn("reclaimed job left mid-flight",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("status", string(job.Status)),
			logging.String(logging.FieldEventType, "job_reclaimed"),
		)
	}
	return nil
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (w *Worker) pollInterval() time.Duration {
	seconds := w.cfg.Workflow.JobPollInterval
	if seconds <= 0 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

func (w *Worker) errorRetryInterval() time.Duration {
	seconds := w.cfg.Workflow.ErrorRetryInterval
	if seconds <= 0 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

func (w *Worker) maxAttempts() int {
	attempts := w.cfg.Workflow.MaxJobAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return attempts
}
