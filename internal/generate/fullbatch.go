package generate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"takevault/internal/batchstore"
	"takevault/internal/jobs"
	"takevault/internal/logging"
	"takevault/internal/services"
)

func (o *Orchestrator) runBatchGenerate(ctx context.Context, job *jobs.Job) (outcome, error) {
	var req jobs.BatchRequest
	if err := jobs.DecodeRequest(job, &req); err != nil {
		return outcome{}, services.Wrap(services.ErrConfigInvalid, "generate", "batch", "", err)
	}
	if err := req.Validate(); err != nil {
		return outcome{}, services.Wrap(services.ErrConfigInvalid, "generate", "batch", err.Error(), nil)
	}

	planned := len(req.Voices) * len(req.Lines) * req.VariantsPerLine
	result := outcome{planned: planned}
	attempted := 0

	for _, voice := range req.Voices {
		batchID := NewBatchID(o.now())
		batchDir := batchstore.BatchDir(o.root, req.Skin, voice.Name, batchID)
		if err := o.batches.EnsureBatchDirs(batchDir); err != nil {
			return outcome{}, err
		}

		doc := batchstore.NewDocument(batchID, req.Skin, voice.Name, generationParams(req.Params, req.VariantsPerLine), o.now())
		successes := 0

		for _, line := range req.Lines {
			for variant := 0; variant < req.VariantsPerLine; variant++ {
				attempted++
				take, err := o.generateTake(ctx, batchDir, doc, line.Key, line.Text, voice.VoiceID, req.Params)
				if err != nil {
					if isStructural(err) {
						return outcome{}, err
					}
					result.failures++
					o.logger.Warn("take synthesis failed",
						logging.String(logging.FieldJobID, job.ID),
						logging.String(logging.FieldVoice, voice.Name),
						logging.String(logging.FieldLineKey, line.Key),
						logging.Error(err),
						logging.String(logging.FieldEventType, "take_failed"),
						logging.String(logging.FieldErrorHint, "check provider status and quota"),
					)
				} else {
					doc.Takes = append(doc.Takes, take)
					successes++
				}
				// Reported after the attempt so the percentage only counts
				// finished takes.
				o.reportTake(ctx, job, attempted, planned,
					fmt.Sprintf("voice %s line %s take %d/%d", voice.Name, line.Key, attempted, planned))
			}
		}

		// A voice with zero successful takes yields no metadata document and
		// is excluded from the result batch list; the job itself carries on.
		if successes == 0 {
			continue
		}
		if err := o.batches.SaveMetadata(batchDir, doc); err != nil {
			return outcome{}, services.Wrap(services.ErrPersistence, "generate", "save metadata", batchID, err)
		}
		result.batchIDs = append(result.batchIDs, batchID)
	}

	result.message = fmt.Sprintf("generated %d/%d takes across %d batches (%d failures)",
		planned-result.failures, planned, len(result.batchIDs), result.failures)
	return result, nil
}

// generateTake synthesizes one take and writes its audio file. Synthesis
// errors are per-take failures; a file write error is structural and aborts
// the job as retryable.
func (o *Orchestrator) generateTake(ctx context.Context, batchDir string, doc *batchstore.Document, lineKey, text, voiceID string, ranges jobs.ParamRanges) (batchstore.Take, error) {
	params := o.sampler.SampleParams(ranges)
	audio, err := o.provider.Synthesize(ctx, text, voiceID, params)
	if err != nil {
		return batchstore.Take{}, services.Wrap(services.ErrSynthesis, "generate", "synthesize", lineKey, err)
	}

	takeNumber := doc.NextTakeNumber(lineKey)
	filename := takeFilename(lineKey, takeNumber)
	path := filepath.Join(batchDir, batchstore.TakesDirName, filename)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return batchstore.Take{}, services.Wrap(services.ErrWriteFailed, "generate", "write take", filename, err)
	}

	return batchstore.Take{
		File:               filename,
		Line:               lineKey,
		ScriptText:         text,
		TakeNumber:         takeNumber,
		GenerationSettings: params.Map(),
	}, nil
}

func isStructural(err error) bool {
	return services.IsRetryable(err) ||
		errorsIsAny(err, services.ErrConfigInvalid, services.ErrTargetNotFound,
			services.ErrRootNotFound, services.ErrMetadataMissing, services.ErrMetadataCorrupt,
			services.ErrRebuildFailed)
}

func errorsIsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func takeFilename(lineKey string, takeNumber int) string {
	return fmt.Sprintf("%s_take_%d.mp3", lineKey, takeNumber)
}

func generationParams(ranges jobs.ParamRanges, variantsPerLine int) map[string]any {
	return map[string]any{
		"variants_per_line": variantsPerLine,
		"stability":         rangeMap(ranges.Stability),
		"similarity":        rangeMap(ranges.Similarity),
		"style":             rangeMap(ranges.Style),
		"speed":             rangeMap(ranges.Speed),
	}
}

func rangeMap(r jobs.Range) map[string]any {
	return map[string]any{"min": r.Min, "max": r.Max}
}
