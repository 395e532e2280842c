package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"takevault/internal/batchstore"
)

// SeedBatch writes a complete batch fixture under root: directories, take
// audio files, and the metadata document. Returns the batch directory.
func SeedBatch(t testing.TB, store *batchstore.Store, root string, doc *batchstore.Document) string {
	t.Helper()

	dir := batchstore.BatchDir(root, doc.SkinName, doc.VoiceName, doc.BatchID)
	if err := store.EnsureBatchDirs(dir); err != nil {
		t.Fatalf("ensure batch dirs: %v", err)
	}
	for _, take := range doc.Takes {
		path := filepath.Join(dir, batchstore.TakesDirName, take.File)
		if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
			t.Fatalf("write take %s: %v", take.File, err)
		}
	}
	if err := store.SaveMetadata(dir, doc); err != nil {
		t.Fatalf("save metadata: %v", err)
	}
	return dir
}
