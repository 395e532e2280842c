package batchstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"takevault/internal/services"
)

func TestListBatchesDerivesSummaries(t *testing.T) {
	root := t.TempDir()

	ts := time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC).Format(time.RFC3339)
	doc := testDocument("20240311-abc")
	doc.GeneratedAtUTC = &ts
	doc.GenerationParams = map[string]any{"variants_per_line": float64(4)}
	doc.Takes = []Take{
		{File: "a_take_1.mp3", Line: "a", TakeNumber: 1},
		{File: "a_take_2.mp3", Line: "a", TakeNumber: 2},
		{File: "b_take_1.mp3", Line: "b", TakeNumber: 1},
	}
	dir := writeBatch(t, root, "frost", "ada", "20240311-abc", doc)

	store := NewStore(nil)
	if err := store.LockBatch(dir); err != nil {
		t.Fatal(err)
	}

	summaries, err := store.ListBatches(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries", len(summaries))
	}

	s := summaries[0]
	if s.BatchID != "20240311-abc" || s.Skin != "frost" || s.Voice != "ada" {
		t.Fatalf("identity fields wrong: %+v", s)
	}
	if s.NumLines != 2 || s.NumTakes != 3 {
		t.Fatalf("counts wrong: %+v", s)
	}
	if s.TakesPerLine != 4 {
		t.Fatalf("takes per line should come from generation params: %d", s.TakesPerLine)
	}
	if s.Status != StatusLocked {
		t.Fatalf("status: %q", s.Status)
	}
	want := time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC).Unix()
	if s.CreatedAtSortKey != want {
		t.Fatalf("sort key: got %d, want %d", s.CreatedAtSortKey, want)
	}
}

func TestListBatchesFallsBackToObservedTakeCount(t *testing.T) {
	root := t.TempDir()

	doc := testDocument("20240311-abc")
	doc.Takes = []Take{
		{File: "a_take_1.mp3", Line: "a", TakeNumber: 1},
		{File: "a_take_2.mp3", Line: "a", TakeNumber: 2},
		{File: "b_take_1.mp3", Line: "b", TakeNumber: 1},
	}
	writeBatch(t, root, "frost", "ada", "20240311-abc", doc)

	summaries, err := NewStore(nil).ListBatches(root)
	if err != nil {
		t.Fatal(err)
	}
	if summaries[0].TakesPerLine != 2 {
		t.Fatalf("takes per line: got %d, want 2", summaries[0].TakesPerLine)
	}
}

func TestListBatchesSortKeyFromDirName(t *testing.T) {
	root := t.TempDir()
	writeBatch(t, root, "frost", "ada", "20240215-xyz", testDocument("20240215-xyz"))

	summaries, err := NewStore(nil).ListBatches(root)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC).Unix()
	if summaries[0].CreatedAtSortKey != want {
		t.Fatalf("sort key: got %d, want %d", summaries[0].CreatedAtSortKey, want)
	}
}

func TestListBatchesUnknownSortKeyIsZero(t *testing.T) {
	root := t.TempDir()
	writeBatch(t, root, "frost", "ada", "mystery-batch", testDocument("mystery-batch"))

	summaries, err := NewStore(nil).ListBatches(root)
	if err != nil {
		t.Fatal(err)
	}
	if summaries[0].CreatedAtSortKey != 0 {
		t.Fatalf("sort key: got %d, want 0", summaries[0].CreatedAtSortKey)
	}
}

func TestListBatchesSkipsCorruptMetadata(t *testing.T) {
	root := t.TempDir()
	writeBatch(t, root, "frost", "ada", "20240311-good", testDocument("20240311-good"))

	badDir := BatchDir(root, "frost", "ada", "20240312-bad")
	if err := os.MkdirAll(badDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(badDir, MetadataFilename), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	summaries, err := NewStore(nil).ListBatches(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 || summaries[0].BatchID != "20240311-good" {
		t.Fatalf("corrupt batch should be skipped: %+v", summaries)
	}
}

func TestListBatchesIgnoresDirsWithoutMetadata(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(BatchDir(root, "frost", "ada", "in-progress"), 0o755); err != nil {
		t.Fatal(err)
	}

	summaries, err := NewStore(nil).ListBatches(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 0 {
		t.Fatalf("expected no summaries, got %+v", summaries)
	}
}

func TestListBatchesRootMissing(t *testing.T) {
	_, err := NewStore(nil).ListBatches(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, services.ErrRootNotFound) {
		t.Fatalf("expected ErrRootNotFound, got %v", err)
	}
}
