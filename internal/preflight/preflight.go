// Package preflight runs environment checks before the daemon starts
// processing jobs: directory access, free disk space, and provider
// reachability.
package preflight

import (
	"context"

	"takevault/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Library directory", cfg.Paths.LibraryDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckFreeSpace(cfg.Paths.LibraryDir, cfg.Generation.MinFreeGiB))

	if cfg.Provider.APIKey != "" {
		results = append(results, CheckProvider(ctx, cfg.Provider))
	}

	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
