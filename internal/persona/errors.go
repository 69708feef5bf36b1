package persona

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("persona: not found")
	ErrAlreadyExists   = errors.New("persona: already exists")
	ErrVersionConflict = errors.New("persona: version conflict")
	ErrPayloadTooLarge = errors.New("persona: document too large")
	ErrBundleMismatch  = errors.New("persona: bundle hash does not match document")
)

// FieldError tags a single validation violation with the field that caused
// it, so a caller can fix every issue in one round trip.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries the complete list of violations for a document.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "persona: validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("persona: validation failed: %s", strings.Join(parts, "; "))
}
