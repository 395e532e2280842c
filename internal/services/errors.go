package services

import (
	"errors"
	"fmt"
	"strings"
)

// Failure markers for the batch store.
var (
	ErrRootNotFound    = errors.New("root not found")
	ErrMetadataMissing = errors.New("metadata missing")
	ErrMetadataCorrupt = errors.New("metadata corrupt")
	ErrWriteFailed     = errors.New("write failed")
	ErrRebuildFailed   = errors.New("rebuild failed")
)

// Failure markers for generation jobs.
var (
	ErrConfigInvalid  = errors.New("config invalid")
	ErrTargetNotFound = errors.New("target not found")
	ErrSynthesis      = errors.New("synthesis failure")
	ErrPersistence    = errors.New("persistence failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether the invoking substrate may usefully retry the
// failed job. Only filesystem write and metadata persistence failures
// qualify; everything else needs operator attention or a changed request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrWriteFailed) || errors.Is(err, ErrPersistence)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
