package main

import (
	"log/slog"
	"path/filepath"

	"takevault/internal/batchstore"
	"takevault/internal/config"
	"takevault/internal/generate"
	"takevault/internal/jobs"
	"takevault/internal/logging"
	"takevault/internal/synth"
	"takevault/internal/worker"
)

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "takevaultd.log")},
	})
}

func buildWorker(cfg *config.Config, store *jobs.Store, logger *slog.Logger) (*worker.Worker, error) {
	orchestrator := generate.New(generate.Options{
		Root:     cfg.Paths.LibraryDir,
		Batches:  batchstore.NewStore(logger),
		Jobs:     store,
		Provider: synth.NewClient(cfg),
		Sink:     progressLogSink(logger),
		Logger:   logger,
	})
	return worker.New(cfg, store, orchestrator, logger)
}

func progressLogSink(logger *slog.Logger) generate.ProgressSink {
	progress := logging.NewComponentLogger(logger, "progress")
	return generate.SinkFunc(func(status jobs.Status, percent float64, message string) {
		progress.Info(message,
			logging.String("status", string(status)),
			logging.Float64(logging.FieldProgressPercent, percent),
		)
	})
}
