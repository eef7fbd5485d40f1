package circulation

import (
	"errors"
	"maps"
	"slices"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnavailable        = errors.New("book is currently unavailable")
	ErrAlreadyReturned    = errors.New("book has already been returned")
	ErrIntegrity          = errors.New("integrity violation")
	ErrForbidden          = errors.New("staff access required")
	ErrInvalidCredentials = errors.New("invalid authentication credentials")
	ErrNoMemberProfile    = errors.New("account has no member profile")
)

// ValidationError carries field-level messages for malformed input.
type ValidationError struct {
	Errors map[string]string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation failed:")
	for _, key := range slices.Sorted(maps.Keys(e.Errors)) {
		b.WriteString(" " + key + " " + e.Errors[key] + ";")
	}
	return b.String()
}

func failed(errs map[string]string) error {
	return &ValidationError{Errors: errs}
}

func fieldError(key, message string) error {
	return failed(map[string]string{key: message})
}
