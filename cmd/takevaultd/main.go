// Command takevaultd is the background daemon: it runs preflight checks,
// then claims and executes generation jobs from the shared jobs database
// until it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"takevault/internal/config"
	"takevault/internal/jobs"
	"takevault/internal/logging"
	"takevault/internal/preflight"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	results := preflight.RunAll(ctx, cfg)
	for _, result := range results {
		if result.Passed {
			logger.Info("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logger.Error("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
		)
	}
	if !preflight.AllPassed(results) {
		log.Fatal("preflight checks failed; refusing to start")
	}

	store, err := jobs.Open(cfg)
	if err != nil {
		log.Fatalf("open jobs store: %v", err)
	}
	defer store.Close()

	w, err := buildWorker(cfg, store, logger)
	if err != nil {
		log.Fatalf("create worker: %v", err)
	}

	if err := w.Start(ctx); err != nil {
		log.Fatalf("start worker: %v", err)
	}

	logger.Info("takevaultd running",
		logging.String("jobs_db", store.Path()),
		logging.String("lock_file", w.LockPath()),
	)

	<-ctx.Done()
	logger.Info("takevaultd shutting down")
	w.Stop()
}
