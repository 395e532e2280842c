package jobs

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEnqueueAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job := &Job{
		ID:          "job-1",
		Kind:        KindBatchGenerate,
		RequestJSON: `{"skin":"frost"}`,
	}
	if err := store.Enqueue(ctx, job); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatal(err)
	}
	if loaded == nil {
		t.Fatal("job not found")
	}
	if loaded.Status != StatusPending {
		t.Fatalf("status: got %s", loaded.Status)
	}
	if loaded.Kind != KindBatchGenerate {
		t.Fatalf("kind: got %s", loaded.Kind)
	}
	if loaded.RequestJSON != `{"skin":"frost"}` {
		t.Fatalf("request json: got %q", loaded.RequestJSON)
	}
	if loaded.ResultBatchIDs == nil || len(loaded.ResultBatchIDs) != 0 {
		t.Fatalf("result batch ids: got %v", loaded.ResultBatchIDs)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := openTestStore(t)

	job, err := store.Get(context.Background(), "no-such-job")
	if err != nil {
		t.Fatal(err)
	}
	if job != nil {
		t.Fatalf("expected nil for missing job, got %+v", job)
	}
}

func TestSavePersistsTransitions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job := &Job{ID: "job-1", Kind: KindLineRegenText, TargetBatchID: "20240311-abc", TargetLineKey: "intro"}
	if err := store.Enqueue(ctx, job); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	job.MarkStarted(now)
	if err := store.Save(ctx, job); err != nil {
		t.Fatal(err)
	}

	job.SetProgress(50, "voice ada line intro take 2/4")
	if err := store.Save(ctx, job); err != nil {
		t.Fatal(err)
	}

	job.ResultBatchIDs = []string{"20240311-abc"}
	job.MarkTerminal(StatusSuccess, "generated 4 takes", now.Add(time.Minute))
	if err := store.Save(ctx, job); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Status != StatusSuccess {
		t.Fatalf("status: got %s", loaded.Status)
	}
	if loaded.StartedAt == nil || loaded.CompletedAt == nil {
		t.Fatalf("timestamps missing: %+v", loaded)
	}
	if loaded.ResultMessage != "generated 4 takes" {
		t.Fatalf("result message: %q", loaded.ResultMessage)
	}
	if len(loaded.ResultBatchIDs) != 1 || loaded.ResultBatchIDs[0] != "20240311-abc" {
		t.Fatalf("result batch ids: %v", loaded.ResultBatchIDs)
	}
	if loaded.TargetBatchID != "20240311-abc" || loaded.TargetLineKey != "intro" {
		t.Fatalf("target fields lost: %+v", loaded)
	}
}

func TestNextPendingOrdersByCreation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Enqueue(ctx, &Job{ID: "older", Kind: KindBatchGenerate}); err != nil {
		t.Fatal(err)
	}
	// Distinct created_at timestamps.
	time.Sleep(2 * time.Millisecond)
	if err := store.Enqueue(ctx, &Job{ID: "newer", Kind: KindBatchGenerate}); err != nil {
		t.Fatal(err)
	}

	next, err := store.NextPending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if next == nil || next.ID != "older" {
		t.Fatalf("next pending: %+v", next)
	}

	next.MarkStarted(time.Now())
	if err := store.Save(ctx, next); err != nil {
		t.Fatal(err)
	}

	next, err = store.NextPending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if next == nil || next.ID != "newer" {
		t.Fatalf("next pending after claim: %+v", next)
	}
}

func TestNextPendingEmptyQueue(t *testing.T) {
	store := openTestStore(t)

	job, err := store.NextPending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if job != nil {
		t.Fatalf("expected nil, got %+v", job)
	}
}

func TestListNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.Enqueue(ctx, &Job{ID: id, Kind: KindBatchGenerate}); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	listed, err := store.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 2 || listed[0].ID != "c" || listed[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", listed)
	}
}

func TestTerminalStatusDerivation(t *testing.T) {
	cases := []struct {
		failures int
		planned  int
		want     Status
	}{
		{0, 4, StatusSuccess},
		{1, 4, StatusCompletedWithErrors},
		{3, 4, StatusCompletedWithErrors},
		{4, 4, StatusFailed},
		{0, 1, StatusSuccess},
		{1, 1, StatusFailed},
	}
	for _, tc := range cases {
		if got := TerminalStatus(tc.failures, tc.planned); got != tc.want {
			t.Fatalf("TerminalStatus(%d, %d) = %s, want %s", tc.failures, tc.planned, got, tc.want)
		}
	}
}

func TestParseStatusAndKind(t *testing.T) {
	if status, ok := ParseStatus(" Completed_With_Errors "); !ok || status != StatusCompletedWithErrors {
		t.Fatalf("ParseStatus: %s %v", status, ok)
	}
	if _, ok := ParseStatus("bogus"); ok {
		t.Fatal("ParseStatus accepted bogus value")
	}
	if kind, ok := ParseKind("line_regen_speech"); !ok || kind != KindLineRegenSpeech {
		t.Fatalf("ParseKind: %s %v", kind, ok)
	}
	if _, ok := ParseKind("bogus"); ok {
		t.Fatal("ParseKind accepted bogus value")
	}
}
