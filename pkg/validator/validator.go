package validator

import (
	"math"
	"strings"

	"github.com/google/uuid"
)

const MaxReasonLength = 200

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var msgs []string
	for _, e := range v {
		msgs = append(msgs, e.Field+": "+e.Message)
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any errors
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// Add adds a validation error
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, ValidationError{Field: field, Message: message})
}

// RequireUUID parses a required, non-nil UUID field.
func (v *ValidationErrors) RequireUUID(field, value string) uuid.UUID {
	if value == "" {
		v.Add(field, "is required")
		return uuid.Nil
	}
	id, err := uuid.Parse(value)
	if err != nil || id == uuid.Nil {
		v.Add(field, "must be a valid uuid")
		return uuid.Nil
	}
	return id
}

// OptionalUUID parses a UUID field that may be empty.
func (v *ValidationErrors) OptionalUUID(field, value string) (uuid.UUID, bool) {
	if value == "" {
		return uuid.Nil, false
	}
	id := v.RequireUUID(field, value)
	return id, id != uuid.Nil
}

// ValidateTap checks a horizontal tap position against the view width.
func ValidateTap(x, width float64) ValidationErrors {
	var errs ValidationErrors
	if !finite(width) || width <= 0 {
		errs.Add("width", "must be positive")
	}
	if !finite(x) || x < 0 {
		errs.Add("x", "must be non-negative")
	} else if finite(width) && width > 0 && x > width {
		errs.Add("x", "must not exceed width")
	}
	return errs
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// SanitizeString trims whitespace and limits length
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}
