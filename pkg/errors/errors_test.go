package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestExportError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *ExportError
		wantMsg string
	}{
		{
			name: "error without wrapped error",
			err: &ExportError{
				Code:    ErrCodeGridNotFound,
				Message: "grid not found: arb2",
				Err:     nil,
			},
			wantMsg: "GRID_NOT_FOUND: grid not found: arb2",
		},
		{
			name: "error with wrapped error",
			err: &ExportError{
				Code:    ErrCodeDatabaseError,
				Message: "database error during query",
				Err:     errors.New("connection timeout"),
			},
			wantMsg: "DATABASE_ERROR: database error during query: connection timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.wantMsg {
				t.Errorf("ExportError.Error() = %v, want %v", got, tt.wantMsg)
			}
		})
	}
}

func TestExportError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	err := &ExportError{
		Code:    ErrCodeCacheError,
		Message: "test error",
		Err:     originalErr,
	}

	if err.Unwrap() != originalErr {
		t.Errorf("Unwrap() returned %v, want %v", err.Unwrap(), originalErr)
	}
}

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name     string
		err      *ExportError
		wantCode string
		contains []string
		wantErr  error
	}{
		{"config not found", ErrConfigNotFound("/etc/export.yaml", cause), ErrCodeConfigNotFound, []string{"/etc/export.yaml"}, cause},
		{"config malformed", ErrConfigMalformed(cause), ErrCodeConfigMalformed, []string{"malformed"}, cause},
		{"config invalid", ErrConfigInvalid("no grids"), ErrCodeConfigInvalid, []string{"no grids"}, nil},
		{"validation failed", ErrValidationFailed("periods", "must be positive"), ErrCodeValidationFailed, []string{"periods", "must be positive"}, nil},
		{"dataset not found", ErrDatasetNotFound("PRISM"), ErrCodeDatasetNotFound, []string{"PRISM"}, nil},
		{"experiment not found", ErrExperimentNotFound("WRF", "max-ctrl"), ErrCodeExperimentNotFound, []string{"WRF", "max-ctrl"}, nil},
		{"grid not found", ErrGridNotFound("glb1", "d02"), ErrCodeGridNotFound, []string{"glb1", "d02"}, nil},
		{"format unsupported", ErrFormatUnsupported("GeoTIFF"), ErrCodeFormatUnsupported, []string{"GeoTIFF"}, nil},
		{"conversion failed", ErrConversionFailed("wrf/max/srfc", cause), ErrCodeConversionFailed, []string{"wrf/max/srfc"}, cause},
		{"output write failed", ErrOutputWriteFailed("/out/precip.asc", cause), ErrCodeOutputWriteFailed, []string{"/out/precip.asc"}, cause},
		{"database error", ErrDatabaseError("batch upsert", cause), ErrCodeDatabaseError, []string{"batch upsert"}, cause},
		{"cache error", ErrCacheError("put", cause), ErrCodeCacheError, []string{"put"}, cause},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.wantCode)
			}
			for _, s := range tt.contains {
				if !strings.Contains(tt.err.Message, s) {
					t.Errorf("Message should contain %q, got %v", s, tt.err.Message)
				}
			}
			if tt.err.Err != tt.wantErr {
				t.Errorf("Wrapped error = %v, want %v", tt.err.Err, tt.wantErr)
			}
		})
	}
}

func TestNewExportError(t *testing.T) {
	originalErr := errors.New("wrapped error")

	err := NewExportError("TEST_CODE", "test message", originalErr)

	if err.Code != "TEST_CODE" {
		t.Errorf("Code = %v, want TEST_CODE", err.Code)
	}
	if err.Message != "test message" {
		t.Errorf("Message = %v, want test message", err.Message)
	}
	if err.Err != originalErr {
		t.Errorf("Wrapped error = %v, want %v", err.Err, originalErr)
	}
}

func TestErrorWrapping(t *testing.T) {
	originalErr := errors.New("database connection failed")
	exportErr := ErrDatabaseError("query", originalErr)

	if !errors.Is(exportErr, originalErr) {
		t.Error("errors.Is should recognize wrapped error")
	}

	var target *ExportError
	if !errors.As(fmt.Errorf("outer: %w", exportErr), &target) {
		t.Fatal("errors.As should find ExportError through fmt wrapping")
	}
	if target.Code != ErrCodeDatabaseError {
		t.Errorf("Code = %v, want %v", target.Code, ErrCodeDatabaseError)
	}
}

func TestHasCode(t *testing.T) {
	inner := ErrGridNotFound("arb2", "d01")
	outer := ErrConversionFailed("job", fmt.Errorf("resolve grid: %w", inner))

	if !HasCode(outer, ErrCodeConversionFailed) {
		t.Error("HasCode should match the outermost code")
	}
	if !HasCode(outer, ErrCodeGridNotFound) {
		t.Error("HasCode should match a nested code")
	}
	if HasCode(outer, ErrCodeCacheError) {
		t.Error("HasCode should not match an absent code")
	}
	if HasCode(errors.New("plain"), ErrCodeCacheError) {
		t.Error("HasCode should be false for plain errors")
	}
	if HasCode(nil, ErrCodeCacheError) {
		t.Error("HasCode should be false for nil")
	}
}
