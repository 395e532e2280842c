package generate

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"takevault/internal/batchstore"
	"takevault/internal/fileutil"
	"takevault/internal/jobs"
	"takevault/internal/logging"
	"takevault/internal/services"
	"takevault/internal/synth"
)

// ConversionScriptText is stored as the script text of takes produced by
// voice conversion, which have no source text.
const ConversionScriptText = "[voice conversion]"

func (o *Orchestrator) runLineRegenText(ctx context.Context, job *jobs.Job) (outcome, error) {
	var req jobs.LineRegenRequest
	if err := jobs.DecodeRequest(job, &req); err != nil {
		return outcome{}, services.Wrap(services.ErrConfigInvalid, "generate", "regen", "", err)
	}
	if err := req.Validate(); err != nil {
		return outcome{}, services.Wrap(services.ErrConfigInvalid, "generate", "regen", err.Error(), nil)
	}

	return o.regenerateLine(ctx, job, regenSpec{
		batchID: req.BatchID,
		lineKey: req.LineKey,
		count:   req.Count,
		replace: req.Replace,
		params:  req.Params,
		produce: func(ctx context.Context, params synth.Params) ([]byte, error) {
			return o.provider.Synthesize(ctx, req.Text, req.VoiceID, params)
		},
		takeRecord: func(filename string, takeNumber int, params synth.Params) batchstore.Take {
			return batchstore.Take{
				File:               filename,
				Line:               req.LineKey,
				ScriptText:         req.Text,
				TakeNumber:         takeNumber,
				GenerationSettings: params.Map(),
			}
		},
	})
}

func (o *Orchestrator) runLineRegenSpeech(ctx context.Context, job *jobs.Job) (outcome, error) {
	var req jobs.SpeechRegenRequest
	if err := jobs.DecodeRequest(job, &req); err != nil {
		return outcome{}, services.Wrap(services.ErrConfigInvalid, "generate", "regen", "", err)
	}
	if err := req.Validate(); err != nil {
		return outcome{}, services.Wrap(services.ErrConfigInvalid, "generate", "regen", err.Error(), nil)
	}

	reference, err := base64.StdEncoding.DecodeString(req.AudioBase64)
	if err != nil {
		return outcome{}, services.Wrap(services.ErrConfigInvalid, "generate", "regen", "decode reference audio", err)
	}

	return o.regenerateLine(ctx, job, regenSpec{
		batchID: req.BatchID,
		lineKey: req.LineKey,
		count:   req.Count,
		replace: req.Replace,
		params:  req.Params,
		produce: func(ctx context.Context, params synth.Params) ([]byte, error) {
			return o.provider.ConvertVoice(ctx, reference, req.VoiceID, params)
		},
		takeRecord: func(filename string, takeNumber int, params synth.Params) batchstore.Take {
			settings := params.Map()
			settings["source_media_type"] = req.MediaType
			return batchstore.Take{
				File:               filename,
				Line:               req.LineKey,
				ScriptText:         ConversionScriptText,
				TakeNumber:         takeNumber,
				GenerationSettings: settings,
			}
		},
	})
}

// regenSpec carries the parts of line regeneration that differ between the
// text and voice-conversion variants.
type regenSpec struct {
	batchID    string
	lineKey    string
	count      int
	replace    bool
	params     jobs.ParamRanges
	produce    func(ctx context.Context, params synth.Params) ([]byte, error)
	takeRecord func(filename string, takeNumber int, params synth.Params) batchstore.Take
}

func (o *Orchestrator) regenerateLine(ctx context.Context, job *jobs.Job, spec regenSpec) (outcome, error) {
	batchDir, err := o.batches.LocateBatch(o.root, spec.batchID)
	if err != nil {
		if errors.Is(err, batchstore.ErrNotFound) {
			return outcome{}, services.Wrap(services.ErrTargetNotFound, "generate", "regen", "batch "+spec.batchID, nil)
		}
		return outcome{}, err
	}

	doc, err := o.batches.LoadMetadata(batchDir)
	if err != nil {
		return outcome{}, err
	}

	if spec.replace {
		o.archiveLineTakes(batchDir, doc, spec.lineKey)
		doc.RemoveTakesForLine(spec.lineKey)
	}

	result := outcome{planned: spec.count}
	for attempted := 1; attempted <= spec.count; attempted++ {
		params := o.sampler.SampleParams(spec.params)
		audio, err := spec.produce(ctx, params)
		if err != nil {
			result.failures++
			o.logger.Warn("take generation failed",
				logging.String(logging.FieldJobID, job.ID),
				logging.String(logging.FieldBatchID, doc.BatchID),
				logging.String(logging.FieldLineKey, spec.lineKey),
				logging.Error(err),
				logging.String(logging.FieldEventType, "take_failed"),
				logging.String(logging.FieldErrorHint, "check provider status and quota"),
			)
		} else {
			takeNumber := doc.NextTakeNumber(spec.lineKey)
			filename := takeFilename(spec.lineKey, takeNumber)
			path := filepath.Join(batchDir, batchstore.TakesDirName, filename)
			if err := os.WriteFile(path, audio, 0o644); err != nil {
				return outcome{}, services.Wrap(services.ErrWriteFailed, "generate", "write take", filename, err)
			}
			doc.Takes = append(doc.Takes, spec.takeRecord(filename, takeNumber, params))
		}
		// Reported after the attempt so the percentage only counts finished
		// takes.
		o.reportTake(ctx, job, attempted, spec.count,
			fmt.Sprintf("line %s take %d/%d", spec.lineKey, attempted, spec.count))
	}

	// Replace mode already dropped the line's takes from the document, so
	// the save happens even when every new attempt failed.
	if err := o.batches.SaveMetadata(batchDir, doc); err != nil {
		return outcome{}, services.Wrap(services.ErrPersistence, "generate", "save metadata", doc.BatchID, err)
	}

	result.batchIDs = []string{doc.BatchID}
	result.message = fmt.Sprintf("regenerated line %s: %d/%d takes (%d failures)",
		spec.lineKey, spec.count-result.failures, spec.count, result.failures)
	return result, nil
}

// archiveLineTakes moves a line's existing take files into a timestamped
// archive subdirectory before the takes are dropped from the metadata. A
// take file that is already gone but left a stale link behind has the link
// removed instead. Archive problems are logged and never fail the job.
func (o *Orchestrator) archiveLineTakes(batchDir string, doc *batchstore.Document, lineKey string) {
	takes := doc.TakesForLine(lineKey)
	if len(takes) == 0 {
		return
	}

	takesDir := filepath.Join(batchDir, batchstore.TakesDirName)
	archiveDir := filepath.Join(takesDir, "archived-"+o.now().UTC().Format("20060102-150405"))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		o.logger.Warn("archive directory creation failed, leaving takes in place",
			logging.String(logging.FieldBatchID, doc.BatchID),
			logging.String(logging.FieldLineKey, lineKey),
			logging.Error(err),
			logging.String(logging.FieldEventType, "archive_failed"),
			logging.String(logging.FieldErrorHint, "check library directory permissions"),
		)
		return
	}

	for _, take := range takes {
		src := filepath.Join(takesDir, take.File)
		if _, err := os.Stat(src); err != nil {
			// Broken symlink: Stat fails but Lstat sees the entry.
			if fileutil.FileExists(src) {
				_ = os.Remove(src)
			}
			continue
		}
		if err := fileutil.MoveFile(src, filepath.Join(archiveDir, take.File)); err != nil {
			o.logger.Warn("archiving take failed",
				logging.String(logging.FieldBatchID, doc.BatchID),
				logging.String("file", take.File),
				logging.Error(err),
				logging.String(logging.FieldEventType, "archive_failed"),
				logging.String(logging.FieldErrorHint, "check library directory permissions"),
			)
		}
	}
}
