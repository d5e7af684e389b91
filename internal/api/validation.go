package api

import (
	"fmt"
	"strings"

	"github.com/octohub/webhook-hub/internal/domain"
)

// ValidationError represents a validation error with field details
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors represents multiple validation errors
type ValidationErrors struct {
	Errors []ValidationError
}

func (ve *ValidationErrors) Error() string {
	var messages []string
	for _, err := range ve.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(messages, "; ")
}

// Add adds a validation error
func (ve *ValidationErrors) Add(field, message string) {
	ve.Errors = append(ve.Errors, ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are validation errors
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// ToAppError converts ValidationErrors to AppError
func (ve *ValidationErrors) ToAppError() *domain.AppError {
	return domain.NewValidationError(ve.Error())
}

// ValidateString validates and sanitizes a string field
func ValidateString(value, fieldName string, required bool, minLen, maxLen int) *ValidationErrors {
	errors := &ValidationErrors{}
	
	// Sanitize input first
	value = SanitizeString(value)
	
	if required && strings.TrimSpace(value) == "" {
		errors.Add(fieldName, "is required")
		return errors
	}

	if value != "" {
		if minLen > 0 && len(value) < minLen {
			errors.Add(fieldName, fmt.Sprintf("must be at least %d characters", minLen))
		}
		if maxLen > 0 && len(value) > maxLen {
			errors.Add(fieldName, fmt.Sprintf("must be at most %d characters", maxLen))
		}
	}

	return errors
}

// ValidateInt validates an integer field
func ValidateInt(value *int, fieldName string, required bool, min, max int) *ValidationErrors {
	errors := &ValidationErrors{}

	if required && value == nil {
		errors.Add(fieldName, "is required")
		return errors
	}

	if value != nil {
		if min > 0 && *value < min {
			errors.Add(fieldName, fmt.Sprintf("must be at least %d", min))
		}
		if max > 0 && *value > max {
			errors.Add(fieldName, fmt.Sprintf("must be at most %d", max))
		}
	}

	return errors
}

// ValidateOneOf validates that a value is one of the allowed values
func ValidateOneOf(value, fieldName string, allowedValues []string) *ValidationErrors {
	errors := &ValidationErrors{}

	if value == "" {
		return errors
	}

	valid := false
	for _, allowed := range allowedValues {
		if value == allowed {
			valid = true
			break
		}
	}

	if !valid {
		errors.Add(fieldName, fmt.Sprintf("must be one of: %s", strings.Join(allowedValues, ", ")))
	}

	return errors
}

// ValidateUUID validates a UUID string
func ValidateUUID(value, fieldName string, required bool) *ValidationErrors {
	errors := &ValidationErrors{}

	if required && value == "" {
		errors.Add(fieldName, "is required")
		return errors
	}

	if value != "" {
		// Basic UUID shape check: five hyphen-separated groups; group
		// lengths and hex digits are not checked
		parts := strings.Split(value, "-")
		if len(parts) != 5 {
			errors.Add(fieldName, "must be a valid UUID")
		}
	}

	return errors
}

// ValidateNotifyMode validates a repo config's notify mode string.
func ValidateNotifyMode(value string) *ValidationErrors {
	return ValidateOneOf(value, "notify_mode", []string{"none", "channel", "owner", "all"})
}

