package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes for the export pipeline.
const (
	// Config errors
	ErrCodeConfigInvalid   = "CONFIG_INVALID"
	ErrCodeConfigNotFound  = "CONFIG_NOT_FOUND"
	ErrCodeConfigMalformed = "CONFIG_MALFORMED"

	// Validation errors
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeInvalidInput     = "INVALID_INPUT"

	// Catalog errors
	ErrCodeDatasetNotFound    = "DATASET_NOT_FOUND"
	ErrCodeExperimentNotFound = "EXPERIMENT_NOT_FOUND"
	ErrCodeGridNotFound       = "GRID_NOT_FOUND"
	ErrCodeFormatUnsupported  = "FORMAT_UNSUPPORTED"

	// Processing errors
	ErrCodeConversionFailed  = "CONVERSION_FAILED"
	ErrCodeOutputWriteFailed = "OUTPUT_WRITE_FAILED"

	// Storage errors
	ErrCodeDatabaseError = "DATABASE_ERROR"
	ErrCodeCacheError    = "CACHE_ERROR"
)

// ExportError represents an error raised while loading, planning, or running an export.
type ExportError struct {
	Code    string
	Message string
	Err     error
}

func (e *ExportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// NewExportError creates a new ExportError.
func NewExportError(code, message string, err error) *ExportError {
	return &ExportError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// HasCode reports whether any error in err's chain is an ExportError with the given code.
func HasCode(err error, code string) bool {
	var e *ExportError
	for stderrors.As(err, &e) {
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}

// ErrConfigNotFound returns an error when the config file cannot be read.
func ErrConfigNotFound(path string, err error) *ExportError {
	return &ExportError{
		Code:    ErrCodeConfigNotFound,
		Message: fmt.Sprintf("config file not readable: %s", path),
		Err:     err,
	}
}

// ErrConfigMalformed wraps YAML syntax and type errors.
func ErrConfigMalformed(err error) *ExportError {
	return &ExportError{
		Code:    ErrCodeConfigMalformed,
		Message: "malformed configuration document",
		Err:     err,
	}
}

// ErrConfigInvalid returns an error for invalid configuration.
func ErrConfigInvalid(reason string) *ExportError {
	return &ExportError{
		Code:    ErrCodeConfigInvalid,
		Message: fmt.Sprintf("invalid configuration: %s", reason),
		Err:     nil,
	}
}

// ErrValidationFailed returns a validation error.
func ErrValidationFailed(field, reason string) *ExportError {
	return &ExportError{
		Code:    ErrCodeValidationFailed,
		Message: fmt.Sprintf("validation failed for %s: %s", field, reason),
		Err:     nil,
	}
}

// ErrDatasetNotFound returns an error when an observational dataset is not in the catalog.
func ErrDatasetNotFound(name string) *ExportError {
	return &ExportError{
		Code:    ErrCodeDatasetNotFound,
		Message: fmt.Sprintf("dataset not found: %s", name),
		Err:     nil,
	}
}

// ErrExperimentNotFound returns an error when a model experiment is not in the catalog.
func ErrExperimentNotFound(family, name string) *ExportError {
	return &ExportError{
		Code:    ErrCodeExperimentNotFound,
		Message: fmt.Sprintf("%s experiment not found: %s", family, name),
		Err:     nil,
	}
}

// ErrGridNotFound returns an error when a target grid has no definition.
func ErrGridNotFound(grid, resolution string) *ExportError {
	return &ExportError{
		Code:    ErrCodeGridNotFound,
		Message: fmt.Sprintf("grid not found: %s (resolution %q)", grid, resolution),
		Err:     nil,
	}
}

// ErrFormatUnsupported returns an error for an output format with no registered writer.
func ErrFormatUnsupported(format string) *ExportError {
	return &ExportError{
		Code:    ErrCodeFormatUnsupported,
		Message: fmt.Sprintf("unsupported output format: %s", format),
		Err:     nil,
	}
}

// ErrConversionFailed wraps converter failures for a job.
func ErrConversionFailed(jobKey string, err error) *ExportError {
	return &ExportError{
		Code:    ErrCodeConversionFailed,
		Message: fmt.Sprintf("conversion failed for job %s", jobKey),
		Err:     err,
	}
}

// ErrOutputWriteFailed wraps failures writing an output file.
func ErrOutputWriteFailed(path string, err error) *ExportError {
	return &ExportError{
		Code:    ErrCodeOutputWriteFailed,
		Message: fmt.Sprintf("failed to write output: %s", path),
		Err:     err,
	}
}

// ErrDatabaseError wraps database errors.
func ErrDatabaseError(operation string, err error) *ExportError {
	return &ExportError{
		Code:    ErrCodeDatabaseError,
		Message: fmt.Sprintf("database error during %s", operation),
		Err:     err,
	}
}

// ErrCacheError wraps intermediate cache errors.
func ErrCacheError(operation string, err error) *ExportError {
	return &ExportError{
		Code:    ErrCodeCacheError,
		Message: fmt.Sprintf("cache error during %s", operation),
		Err:     err,
	}
}
