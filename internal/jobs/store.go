package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"takevault/internal/config"
)

// Store manages generation job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// Open initializes or connects to the jobs database under the state
// directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.StateDir, "jobs.db")
	return OpenPath(dbPath)
}

// OpenPath opens a jobs database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

const jobColumns = `id, kind, status, request_json, target_batch_id, target_line_key,
	attempts, progress_percent, progress_message, result_message, result_batch_ids,
	created_at, updated_at, started_at, completed_at`

// Enqueue inserts a new pending job.
func (s *Store) Enqueue(ctx context.Context, job *Job) error {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	job.Status = StatusPending
	job.CreatedAt = now
	job.UpdatedAt = now

	batchIDs, err := marshalBatchIDs(job.ResultBatchIDs)
	if err != nil {
		return err
	}

	err = s.execWithRetry(
		ctx,
		`INSERT INTO generation_jobs (
            id, kind, status, request_json, target_batch_id, target_line_key,
            attempts, progress_percent, progress_message, result_message,
            result_batch_ids, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		string(job.Kind),
		string(job.Status),
		job.RequestJSON,
		job.TargetBatchID,
		job.TargetLineKey,
		job.Attempts,
		job.ProgressPercent,
		job.ProgressMessage,
		job.ResultMessage,
		batchIDs,
		timestamp,
		timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get fetches a job by identifier. Returns (nil, nil) when no such job
// exists; callers treat that as an abandoned invocation, not an error.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+jobColumns+` FROM generation_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Save persists the job's current fields.
func (s *Store) Save(ctx context.Context, job *Job) error {
	job.UpdatedAt = time.Now().UTC()

	batchIDs, err := marshalBatchIDs(job.ResultBatchIDs)
	if err != nil {
		return err
	}

	err = s.execWithRetry(
		ctx,
		`UPDATE generation_jobs SET
            kind = ?, status = ?, request_json = ?, target_batch_id = ?,
            target_line_key = ?, attempts = ?, progress_percent = ?,
            progress_message = ?, result_message = ?, result_batch_ids = ?,
            updated_at = ?, started_at = ?, completed_at = ?
        WHERE id = ?`,
		string(job.Kind),
		string(job.Status),
		job.RequestJSON,
		job.TargetBatchID,
		job.TargetLineKey,
		job.Attempts,
		job.ProgressPercent,
		job.ProgressMessage,
		job.ResultMessage,
		batchIDs,
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

// NextPending returns the oldest pending job, or nil when the queue is idle.
func (s *Store) NextPending(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+jobColumns+` FROM generation_jobs
         WHERE status = ? ORDER BY created_at ASC LIMIT 1`,
		string(StatusPending))
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending job: %w", err)
	}
	return job, nil
}

// List returns jobs ordered newest first, up to limit (0 means no limit).
func (s *Store) List(ctx context.Context, limit int) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var result []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job         Job
		kind        string
		status      string
		batchIDs    string
		createdAt   string
		updatedAt   string
		startedAt   sql.NullString
		completedAt sql.NullString
	)
	err := row.Scan(
		&job.ID,
		&kind,
		&status,
		&job.RequestJSON,
		&job.TargetBatchID,
		&job.TargetLineKey,
		&job.Attempts,
		&job.ProgressPercent,
		&job.ProgressMessage,
		&job.ResultMessage,
		&batchIDs,
		&createdAt,
		&updatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Kind = Kind(kind)
	job.Status = Status(status)
	if batchIDs != "" {
		if err := json.Unmarshal([]byte(batchIDs), &job.ResultBatchIDs); err != nil {
			return nil, fmt.Errorf("decode result batch ids: %w", err)
		}
	}
	job.CreatedAt = parseStoredTime(createdAt)
	job.UpdatedAt = parseStoredTime(updatedAt)
	if startedAt.Valid {
		ts := parseStoredTime(startedAt.String)
		job.StartedAt = &ts
	}
	if completedAt.Valid {
		ts := parseStoredTime(completedAt.String)
		job.CompletedAt = &ts
	}
	return &job, nil
}

func marshalBatchIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode result batch ids: %w", err)
	}
	return string(data), nil
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseStoredTime(value string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}
