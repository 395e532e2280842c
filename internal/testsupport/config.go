// Package testsupport provides shared helpers for package tests: temp-dir
// seeded configs, job store setup, and on-disk batch fixtures.
package testsupport

import (
	"path/filepath"
	"testing"

	"takevault/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Provider.APIKey = "test-key"
	cfg.Workflow.JobPollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithProviderKey sets the synthesis API key on the test config.
func WithProviderKey(key string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Provider.APIKey = key
	}
}

// WithMaxJobAttempts sets the worker attempt cap on the test config.
func WithMaxJobAttempts(attempts int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.MaxJobAttempts = attempts
	}
}
