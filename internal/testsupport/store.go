package testsupport

import (
	"context"
	"testing"

	"takevault/internal/config"
	"takevault/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// EnqueueJob inserts a pending job for tests using the provided store.
func EnqueueJob(t testing.TB, store *jobs.Store, id string, kind jobs.Kind, requestJSON string) *jobs.Job {
	t.Helper()

	job := &jobs.Job{ID: id, Kind: kind, RequestJSON: requestJSON}
	if err := store.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return job
}
