package client

import (
	"context"
	"errors"
	"io/fs"
	"strings"

	"github.com/climatekit/ascraster/pkg/domain"
	"github.com/climatekit/ascraster/pkg/raster"
)

// Error types returned by converters.
// Source errors are non-retryable: the same job would fail the same way.

// SourceNotFoundError indicates the source product of a job does not exist.
type SourceNotFoundError struct {
	Source string
}

func (e *SourceNotFoundError) Error() string {
	return "source not found: " + e.Source
}

// InvalidSourceError indicates a source file exists but cannot be used.
// Examples: truncated grid, unreadable header, wrong dimensions
type InvalidSourceError struct {
	Path    string
	Message string
}

func (e *InvalidSourceError) Error() string {
	return "invalid source " + e.Path + ": " + e.Message
}

// TransientError marks a failure that may succeed when retried.
// Examples: NFS hiccup, exhausted file descriptors, busy archive server
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsRetryableError determines if a converter error should be retried.
//
// Classification strategy:
// 1. Cancellation and deadlines are never retried
// 2. Known typed errors decide directly
// 3. Fallback to error message pattern matching (for generic errors)
//
// Non-retryable errors (fail immediately):
//   - SourceNotFoundError, fs.ErrNotExist, fs.ErrPermission
//   - InvalidSourceError
//   - messages such as "not found", "permission denied", "invalid"
//
// Retryable errors:
//   - TransientError
//   - any other error (I/O timeouts, stale handles, busy devices)
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Strategy 1: the caller gave up
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Strategy 2: Check for known typed errors
	var transient *TransientError
	if errors.As(err, &transient) {
		return true
	}

	var notFound *SourceNotFoundError
	if errors.As(err, &notFound) {
		return false
	}

	var invalid *InvalidSourceError
	if errors.As(err, &invalid) {
		return false
	}

	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return false
	}

	// Strategy 3: Fallback to pattern matching for generic errors
	errMsg := strings.ToLower(err.Error())

	nonRetryablePatterns := []string{
		"not found",
		"no such file",
		"permission denied",
		"invalid",
		"unsupported",
		"malformed",
	}

	for _, pattern := range nonRetryablePatterns {
		if strings.Contains(errMsg, pattern) {
			return false
		}
	}

	// All other errors are considered retryable
	return true
}

// Converter produces the rasters of one job on a target grid. It stands for
// the dataset loaders and the regridding step that feed the exporter.
type Converter interface {
	// Sources lists the files the job reads. Their modification times decide
	// whether existing outputs are up to date.
	//
	// Returns SourceNotFoundError if the job has no source product.
	Sources(ctx context.Context, job *domain.Job) ([]string, error)

	// Convert loads the job's source product and remaps every selected
	// variable onto grid.
	//
	// Parameters:
	//   - ctx: Context for cancellation
	//   - job: The planned job; nil Variables selects all variables
	//   - grid: Target grid definition from the catalog
	Convert(ctx context.Context, job *domain.Job, grid *domain.GridDefinition) ([]*raster.Raster, error)
}
