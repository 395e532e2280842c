package batchstore

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"takevault/internal/fileutil"
	"takevault/internal/logging"
	"takevault/internal/services"
)

// ErrNotFound reports that no batch directory matched the requested id.
var ErrNotFound = errors.New("batch not found")

// Store provides durable, crash-consistent access to batch metadata and the
// derived ranked directory tree. It is a passive library; callers serialize
// writers to the same batch.
type Store struct {
	logger *slog.Logger
}

// NewStore constructs a Store. A nil logger is replaced with a no-op logger.
func NewStore(logger *slog.Logger) *Store {
	return &Store{logger: logging.NewComponentLogger(logger, "batchstore")}
}

// BatchDir returns the directory for a batch under root.
func BatchDir(root, skin, voice, batchID string) string {
	return filepath.Join(root, skin, voice, batchID)
}

// LocateBatch scans root/<skin>/<voice>/<batch> and returns the first batch
// directory whose name contains batchID as a substring. Directories are
// visited in sorted order so an ambiguous id resolves deterministically.
// Returns ErrNotFound when nothing matches.
func (s *Store) LocateBatch(root, batchID string) (string, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return "", wrapRootNotFound(root, err)
	}

	for _, skin := range sortedSubdirs(root) {
		skinDir := filepath.Join(root, skin)
		for _, voice := range sortedSubdirs(skinDir) {
			voiceDir := filepath.Join(skinDir, voice)
			for _, batch := range sortedSubdirs(voiceDir) {
				if containsID(batch, batchID) {
					return filepath.Join(voiceDir, batch), nil
				}
			}
		}
	}
	return "", ErrNotFound
}

func containsID(dirName, batchID string) bool {
	return batchID != "" && strings.Contains(dirName, batchID)
}

func wrapRootNotFound(root string, err error) error {
	return services.Wrap(services.ErrRootNotFound, "batchstore", "scan", root, err)
}

func sortedSubdirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names
}

// LoadMetadata reads and parses the batch metadata document. A missing file
// maps to ErrMetadataMissing; anything unparseable or failing the required
// shape maps to ErrMetadataCorrupt. There is no best-effort recovery.
func (s *Store) LoadMetadata(batchDir string) (*Document, error) {
	path := filepath.Join(batchDir, MetadataFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if fileutil.IsNotExist(err) {
			return nil, services.Wrap(services.ErrMetadataMissing, "batchstore", "load", path, nil)
		}
		return nil, services.Wrap(services.ErrMetadataCorrupt, "batchstore", "load", "read "+path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, services.Wrap(services.ErrMetadataCorrupt, "batchstore", "load", path, err)
	}
	if reason, ok := doc.validShape(); !ok {
		return nil, services.Wrap(services.ErrMetadataCorrupt, "batchstore", "load", reason, nil)
	}
	return &doc, nil
}

// SaveMetadata validates the document shape and replaces the metadata file
// atomically: the document is written to a uniquely-named temporary file in
// the batch directory and renamed over the real path in one step. On failure
// the temporary file is removed and the existing metadata file is untouched.
func (s *Store) SaveMetadata(batchDir string, doc *Document) error {
	if reason, ok := doc.validShape(); !ok {
		return services.Wrap(services.ErrWriteFailed, "batchstore", "save", reason, nil)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrWriteFailed, "batchstore", "save", "marshal document", err)
	}
	data = append(data, '\n')

	// Leftovers from an interrupted earlier save.
	fileutil.RemoveStaleTempFiles(batchDir, MetadataFilename)

	path := filepath.Join(batchDir, MetadataFilename)
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrWriteFailed, "batchstore", "save", path, err)
	}
	return nil
}

// IsLocked reports whether the batch carries the lock sentinel.
func (s *Store) IsLocked(batchDir string) bool {
	return fileutil.FileExists(filepath.Join(batchDir, LockFilename))
}

// LockBatch creates the lock sentinel. Locking an already-locked batch is
// not an error; the lock is never cleared by this store.
func (s *Store) LockBatch(batchDir string) error {
	path := filepath.Join(batchDir, LockFilename)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return services.Wrap(services.ErrWriteFailed, "batchstore", "lock", path, err)
	}
	return file.Close()
}

// EnsureBatchDirs creates the batch directory and its takes subdirectory.
func (s *Store) EnsureBatchDirs(batchDir string) error {
	if err := os.MkdirAll(filepath.Join(batchDir, TakesDirName), 0o755); err != nil {
		return services.Wrap(services.ErrWriteFailed, "batchstore", "mkdir", batchDir, err)
	}
	return nil
}
