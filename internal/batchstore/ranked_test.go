package batchstore

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func rankedFixture(t *testing.T) (string, *Document) {
	t.Helper()
	dir := t.TempDir()
	takesDir := filepath.Join(dir, TakesDirName)
	if err := os.MkdirAll(takesDir, 0o755); err != nil {
		t.Fatal(err)
	}

	one, five := 1, 5
	doc := testDocument("20240311-abc")
	doc.Takes = []Take{
		{File: "intro_take_1.mp3", Line: "intro", TakeNumber: 1, Rank: &one},
		{File: "intro_take_2.mp3", Line: "intro", TakeNumber: 2},
		{File: "outro_take_1.mp3", Line: "outro", TakeNumber: 1, Rank: &five},
	}
	for _, take := range doc.Takes {
		if err := os.WriteFile(filepath.Join(takesDir, take.File), []byte("audio"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir, doc
}

func rankedMembers(t *testing.T, batchDir string) map[string][]string {
	t.Helper()
	members := map[string][]string{}
	rankedDir := filepath.Join(batchDir, RankedDirName)
	entries, err := os.ReadDir(rankedDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		files, err := os.ReadDir(filepath.Join(rankedDir, entry.Name()))
		if err != nil {
			t.Fatal(err)
		}
		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, f.Name())
		}
		sort.Strings(names)
		members[entry.Name()] = names
	}
	return members
}

func TestRebuildRankedTreeScenario(t *testing.T) {
	dir, doc := rankedFixture(t)
	store := NewStore(nil)

	if err := store.RebuildRankedTree(dir, doc); err != nil {
		t.Fatal(err)
	}

	members := rankedMembers(t, dir)
	if len(members) != 5 {
		t.Fatalf("expected 5 rank directories, got %d", len(members))
	}
	for rank := MinRank; rank <= MaxRank; rank++ {
		if _, ok := members[rankDirName(rank)]; !ok {
			t.Fatalf("rank directory %s missing", rankDirName(rank))
		}
	}
	if got := members["01"]; len(got) != 1 || got[0] != "intro_take_1.mp3" {
		t.Fatalf("rank 01: %v", got)
	}
	if got := members["05"]; len(got) != 1 || got[0] != "outro_take_1.mp3" {
		t.Fatalf("rank 05: %v", got)
	}
	for _, empty := range []string{"02", "03", "04"} {
		if len(members[empty]) != 0 {
			t.Fatalf("rank %s should be empty: %v", empty, members[empty])
		}
	}

	// Links resolve to the absolute take path.
	link := filepath.Join(dir, RankedDirName, "01", "intro_take_1.mp3")
	target, err := os.Readlink(link)
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(target) {
		t.Fatalf("link target not absolute: %q", target)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("link target unreadable: %v", err)
	}
}

func TestRebuildRankedTreeIdempotent(t *testing.T) {
	dir, doc := rankedFixture(t)
	store := NewStore(nil)

	if err := store.RebuildRankedTree(dir, doc); err != nil {
		t.Fatal(err)
	}
	first := rankedMembers(t, dir)

	if err := store.RebuildRankedTree(dir, doc); err != nil {
		t.Fatal(err)
	}
	second := rankedMembers(t, dir)

	if len(first) != len(second) {
		t.Fatalf("membership changed: %v vs %v", first, second)
	}
	for rank, files := range first {
		got := second[rank]
		if len(got) != len(files) {
			t.Fatalf("rank %s changed: %v vs %v", rank, files, got)
		}
		for i := range files {
			if files[i] != got[i] {
				t.Fatalf("rank %s changed: %v vs %v", rank, files, got)
			}
		}
	}
}

func TestRebuildRankedTreeSkipsMissingSource(t *testing.T) {
	dir, doc := rankedFixture(t)
	store := NewStore(nil)

	if err := os.Remove(filepath.Join(dir, TakesDirName, "outro_take_1.mp3")); err != nil {
		t.Fatal(err)
	}

	if err := store.RebuildRankedTree(dir, doc); err != nil {
		t.Fatal(err)
	}

	members := rankedMembers(t, dir)
	if len(members["05"]) != 0 {
		t.Fatalf("missing source should be skipped: %v", members["05"])
	}
	if len(members["01"]) != 1 {
		t.Fatalf("present source should still be linked: %v", members["01"])
	}
}

func TestRebuildRankedTreeReplacesStaleEntries(t *testing.T) {
	dir, doc := rankedFixture(t)
	store := NewStore(nil)

	if err := store.RebuildRankedTree(dir, doc); err != nil {
		t.Fatal(err)
	}

	// Move the rank from 1 to 4 and rebuild.
	four := 4
	doc.Takes[0].Rank = &four
	if err := store.RebuildRankedTree(dir, doc); err != nil {
		t.Fatal(err)
	}

	members := rankedMembers(t, dir)
	if len(members["01"]) != 0 {
		t.Fatalf("old rank entry survived: %v", members["01"])
	}
	if got := members["04"]; len(got) != 1 || got[0] != "intro_take_1.mp3" {
		t.Fatalf("new rank entry missing: %v", got)
	}
}

func TestRebuildRankedTreeClearsCrashedSwapBackup(t *testing.T) {
	dir, doc := rankedFixture(t)
	store := NewStore(nil)

	stale := filepath.Join(dir, rankedBackupPrefix+"123")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := store.RebuildRankedTree(dir, doc); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("stale backup tree not removed")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		switch entry.Name() {
		case TakesDirName, RankedDirName:
		default:
			t.Fatalf("unexpected entry after rebuild: %s", entry.Name())
		}
	}
}

func TestRebuildRankedTreeClearsCrashedStagingTree(t *testing.T) {
	dir, doc := rankedFixture(t)
	store := NewStore(nil)

	stale := filepath.Join(dir, rankedStagingPrefix+"456")
	if err := os.MkdirAll(filepath.Join(stale, "01"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := store.RebuildRankedTree(dir, doc); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("stale staging tree not removed")
	}
	members := rankedMembers(t, dir)
	if got := members["01"]; len(got) != 1 {
		t.Fatalf("live tree should still be rebuilt: %v", got)
	}
}
