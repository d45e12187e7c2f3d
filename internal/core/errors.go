package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/Jwink3101/dfb/internal/driver"
)

// Sentinel errors for the taxonomy in spec.md §7. Use errors.Is to
// classify.
var (
	ErrSourceUnavailable      = errors.New("core: source unavailable")
	ErrDestinationUnavailable = errors.New("core: destination unavailable")
	ErrConflictingArtifact    = errors.New("core: conflicting artifact at destination")
	ErrIntegrityViolation     = errors.New("core: reference integrity violation")
	ErrMissingHash            = errors.New("core: missing hash for compare=hash")
	ErrIndexInconsistent      = errors.New("core: index inconsistent with destination")
	ErrPruneDisabled          = errors.New("core: prune disabled by configuration")
	ErrCancelRequested        = errors.New("core: run cancelled")
)

// ErrorTier classifies an error by how it should affect an in-progress
// run: ErrorFatal aborts the run immediately, ErrorRetryable is safe to
// retry with backoff (not attempted inline; surfaced for the next run),
// ErrorSkip is recorded and the run continues.
type ErrorTier int

const (
	ErrorTierNone ErrorTier = iota
	ErrorSkip
	ErrorRetryable
	ErrorFatal
)

func (t ErrorTier) String() string {
	switch t {
	case ErrorTierNone:
		return "none"
	case ErrorSkip:
		return "skip"
	case ErrorRetryable:
		return "retryable"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// classifyError maps an error observed during a single action's dispatch
// to an ErrorTier. A single bad file must never abort a run (spec.md
// §7), so only cancellation and whole-source or whole-destination outages
// are fatal.
func classifyError(err error) ErrorTier {
	if err == nil {
		return ErrorTierNone
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrCancelRequested) {
		return ErrorFatal
	}

	if errors.Is(err, ErrSourceUnavailable) || errors.Is(err, ErrDestinationUnavailable) {
		return ErrorFatal
	}

	if errors.Is(err, driver.ErrUnavailable) {
		return ErrorFatal
	}

	if errors.Is(err, ErrIntegrityViolation) || errors.Is(err, ErrIndexInconsistent) {
		return ErrorSkip
	}

	if errors.Is(err, ErrConflictingArtifact) || errors.Is(err, driver.ErrAlreadyExist) {
		return ErrorSkip
	}

	if errors.Is(err, driver.ErrNotFound) {
		return ErrorSkip
	}

	return ErrorSkip
}

// wrapAction adds the action's apparent path to an error for logging and
// reporting context.
func wrapAction(apparentPath string, err error) error {
	return fmt.Errorf("%s: %w", apparentPath, err)
}
