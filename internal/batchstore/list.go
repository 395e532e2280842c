package batchstore

import (
	"os"
	"path/filepath"
	"time"

	"takevault/internal/fileutil"
	"takevault/internal/logging"
)

// Summary describes one batch for listings.
type Summary struct {
	BatchID          string
	Skin             string
	Voice            string
	NumLines         int
	TakesPerLine     int
	NumTakes         int
	CreatedAt        string
	CreatedAtSortKey int64
	Status           string
}

// Batch status values reported in summaries.
const (
	StatusOpen   = "open"
	StatusLocked = "locked"
)

// ListBatches walks every skin/voice/batch directory under root that carries
// a metadata file and derives a summary per batch. Batches whose metadata
// fails to load are logged and skipped; one corrupt batch never hides the
// rest. Fails with ErrRootNotFound when root is not a directory.
func (s *Store) ListBatches(root string) ([]Summary, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, wrapRootNotFound(root, err)
	}

	var summaries []Summary
	for _, skin := range sortedSubdirs(root) {
		skinDir := filepath.Join(root, skin)
		for _, voice := range sortedSubdirs(skinDir) {
			voiceDir := filepath.Join(skinDir, voice)
			for _, batch := range sortedSubdirs(voiceDir) {
				batchDir := filepath.Join(voiceDir, batch)
				if !fileutil.FileExists(filepath.Join(batchDir, MetadataFilename)) {
					continue
				}
				doc, err := s.LoadMetadata(batchDir)
				if err != nil {
					s.logger.Warn("skipping unreadable batch",
						logging.String(logging.FieldBatchID, batch),
						logging.String(logging.FieldSkin, skin),
						logging.String(logging.FieldVoice, voice),
						logging.Error(err),
						logging.String(logging.FieldEventType, "batch_metadata_unreadable"),
						logging.String(logging.FieldErrorHint, "inspect metadata.json in the batch directory"),
					)
					continue
				}
				summaries = append(summaries, s.summarize(skin, voice, batch, batchDir, doc))
			}
		}
	}
	return summaries, nil
}

func (s *Store) summarize(skin, voice, dirName, batchDir string, doc *Document) Summary {
	summary := Summary{
		BatchID:  doc.BatchID,
		Skin:     skin,
		Voice:    voice,
		NumLines: len(doc.Lines()),
		NumTakes: len(doc.Takes),
		Status:   StatusOpen,
	}
	if s.IsLocked(batchDir) {
		summary.Status = StatusLocked
	}

	summary.TakesPerLine = configuredVariantsPerLine(doc.GenerationParams)
	if summary.TakesPerLine == 0 {
		summary.TakesPerLine = maxTakesPerLine(doc)
	}

	if doc.GeneratedAtUTC != nil {
		summary.CreatedAt = *doc.GeneratedAtUTC
	}
	summary.CreatedAtSortKey = createdAtSortKey(doc.GeneratedAtUTC, dirName)
	return summary
}

func configuredVariantsPerLine(params map[string]any) int {
	switch v := params["variants_per_line"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func maxTakesPerLine(doc *Document) int {
	counts := map[string]int{}
	max := 0
	for _, take := range doc.Takes {
		counts[take.Line]++
		if counts[take.Line] > max {
			max = counts[take.Line]
		}
	}
	return max
}

// createdAtSortKey derives a stable chronological sort key: the authoritative
// generated_at_utc when parseable, else a leading YYYYMMDD segment of the
// batch directory name, else 0. Callers treat 0 as "unknown", never as epoch.
func createdAtSortKey(generatedAt *string, dirName string) int64 {
	if generatedAt != nil {
		if ts, err := parseTimestamp(*generatedAt); err == nil {
			return ts.Unix()
		}
	}
	if len(dirName) >= 8 {
		if ts, err := time.Parse("20060102", dirName[:8]); err == nil {
			return ts.Unix()
		}
	}
	return 0
}

func parseTimestamp(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02T15:04:05", value)
}
