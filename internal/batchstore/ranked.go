package batchstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"takevault/internal/fileutil"
	"takevault/internal/logging"
	"takevault/internal/services"
)

const (
	rankedBackupPrefix  = RankedDirName + ".bak."
	rankedStagingPrefix = RankedDirName + ".new."
)

// RebuildRankedTree recomputes the entire ranked/ directory from the current
// take ranks in doc. The new tree is built in a temporary sibling directory
// with all five rank subdirectories 01..05 (empty ranks included), holding
// symlinks to the absolute paths of ranked take files. The temporary tree is
// then swapped in: an existing live tree is renamed aside to a backup, the
// new tree renamed into place, and the backup removed. On any error the
// temporary tree is removed and the live tree is left exactly as it was.
//
// A crash mid-rebuild can leave a staging tree, a backup tree, or both on
// disk; any lingering ones are removed on the next successful rebuild.
func (s *Store) RebuildRankedTree(batchDir string, doc *Document) error {
	takesDir := filepath.Join(batchDir, TakesDirName)

	tmpDir, err := os.MkdirTemp(batchDir, RankedDirName+".new.*")
	if err != nil {
		return services.Wrap(services.ErrRebuildFailed, "batchstore", "rebuild", "create staging tree", err)
	}

	if err := s.populateRankedTree(tmpDir, takesDir, doc); err != nil {
		_ = os.RemoveAll(tmpDir)
		return err
	}

	if err := s.swapRankedTree(batchDir, tmpDir); err != nil {
		_ = os.RemoveAll(tmpDir)
		return err
	}

	s.removeStaleArtifacts(batchDir)
	return nil
}

func (s *Store) populateRankedTree(tmpDir, takesDir string, doc *Document) error {
	for rank := MinRank; rank <= MaxRank; rank++ {
		if err := os.Mkdir(filepath.Join(tmpDir, rankDirName(rank)), 0o755); err != nil {
			return services.Wrap(services.ErrRebuildFailed, "batchstore", "rebuild", "create rank directory", err)
		}
	}

	for _, take := range doc.Takes {
		if take.Rank == nil || *take.Rank < MinRank || *take.Rank > MaxRank {
			continue
		}
		src := filepath.Join(takesDir, take.File)
		if !fileutil.FileExists(src) {
			s.logger.Warn("ranked take source missing, skipping",
				logging.String(logging.FieldBatchID, doc.BatchID),
				logging.String("file", take.File),
				logging.Int("rank", *take.Rank),
				logging.String(logging.FieldEventType, "ranked_source_missing"),
				logging.String(logging.FieldErrorHint, "re-rank or regenerate the take"),
			)
			continue
		}
		target, err := filepath.Abs(src)
		if err != nil {
			return services.Wrap(services.ErrRebuildFailed, "batchstore", "rebuild", "resolve "+src, err)
		}
		link := filepath.Join(tmpDir, rankDirName(*take.Rank), take.File)
		if err := os.Symlink(target, link); err != nil {
			return services.Wrap(services.ErrRebuildFailed, "batchstore", "rebuild", "link "+take.File, err)
		}
	}
	return nil
}

func (s *Store) swapRankedTree(batchDir, tmpDir string) error {
	live := filepath.Join(batchDir, RankedDirName)

	if !fileutil.DirExists(live) {
		if err := os.Rename(tmpDir, live); err != nil {
			return services.Wrap(services.ErrRebuildFailed, "batchstore", "rebuild", "activate ranked tree", err)
		}
		return nil
	}

	backup := filepath.Join(batchDir, fmt.Sprintf("%s%d", rankedBackupPrefix, time.Now().UnixNano()))
	if err := os.Rename(live, backup); err != nil {
		return services.Wrap(services.ErrRebuildFailed, "batchstore", "rebuild", "set aside live tree", err)
	}
	if err := os.Rename(tmpDir, live); err != nil {
		// Restore the previous tree so the caller still sees a complete view.
		_ = os.Rename(backup, live)
		return services.Wrap(services.ErrRebuildFailed, "batchstore", "rebuild", "activate ranked tree", err)
	}
	_ = os.RemoveAll(backup)
	return nil
}

// removeStaleArtifacts clears backup trees left behind by a crash mid-swap
// and staging trees left behind by a crash before the swap. The current
// rebuild's own staging tree was already renamed into place, so everything
// still carrying either prefix is an orphan.
func (s *Store) removeStaleArtifacts(batchDir string) {
	entries, err := os.ReadDir(batchDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, rankedBackupPrefix) || strings.HasPrefix(name, rankedStagingPrefix) {
			_ = os.RemoveAll(filepath.Join(batchDir, name))
		}
	}
}

func rankDirName(rank int) string {
	return fmt.Sprintf("%02d", rank)
}
