package mirror

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigurationError reports missing or malformed settings. It is raised
// before any remote call is made.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an expected absence: a repository, branch, file,
// pull request number, commit or reference that does not exist.
type NotFoundError struct {
	Resource string
	Err      error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s not found: %v", e.Resource, e.Err)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// ValidationError reports a write rejected by the hosting service.
type ValidationError struct {
	Message string
	// Details holds the per-field messages returned alongside Message.
	Details []string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed: %s (%s)", e.Message, strings.Join(e.Details, "; "))
}

// Mentions reports whether the message or any detail contains s,
// ignoring case.
func (e *ValidationError) Mentions(s string) bool {
	s = strings.ToLower(s)
	if strings.Contains(strings.ToLower(e.Message), s) {
		return true
	}
	for _, d := range e.Details {
		if strings.Contains(strings.ToLower(d), s) {
			return true
		}
	}
	return false
}

// TransportError is any other remote failure. It aborts the current pass.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsNotFound reports whether err wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// AsValidation returns the *ValidationError wrapped by err, if any.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// IsConfiguration reports whether err wraps a *ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	_, ok := AsValidation(err)
	return ok
}
