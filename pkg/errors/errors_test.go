package errors

import (
	"fmt"
	"testing"
)

func TestConstructorsWrapSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		sentinel error
		code     string
	}{
		{"not found", NotFound("closure"), ErrNotFound, "NOT_FOUND"},
		{"conflict", Conflict("already exists"), ErrConflict, "CONFLICT"},
		{"invalid identity", InvalidIdentity("12.34"), ErrInvalidIdentity, "INVALID_IDENTITY"},
		{"unparseable value", UnparseableValue("abc"), ErrUnparseableValue, "UNPARSEABLE_VALUE"},
		{"closure transition", InvalidClosureTransition("pending", "completed"), ErrInvalidClosureTransition, "INVALID_CLOSURE_TRANSITION"},
		{"incident transition", InvalidIncidentTransition("pending", "approved_by_supervisor"), ErrInvalidIncidentTransition, "INVALID_INCIDENT_TRANSITION"},
		{"concurrent job", ConcurrentJobConflict("closure-1"), ErrConcurrentJobConflict, "CONCURRENT_JOB_CONFLICT"},
		{"missing category", MissingCategoryMapping("SUELDO_BASE"), ErrMissingCategoryMapping, "MISSING_CATEGORY_MAPPING"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !Is(tt.err, tt.sentinel) {
				t.Errorf("Is(%v, sentinel) = false, want true", tt.err)
			}
			if tt.err.Code != tt.code {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.code)
			}
		})
	}
}

func TestIsSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("running job: %w", ConcurrentJobConflict("closure-1"))

	if !Is(err, ErrConcurrentJobConflict) {
		t.Errorf("Is() should match through fmt.Errorf wrapping")
	}

	var appErr *AppError
	if !As(err, &appErr) {
		t.Fatalf("As() should extract *AppError")
	}
	if appErr.Details["closure_id"] != "closure-1" {
		t.Errorf("Details = %v, want closure_id=closure-1", appErr.Details)
	}
}
