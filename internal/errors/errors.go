// Package errors provides structured error types for bugfiler.
package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Code represents a unique error code.
type Code string

// Error codes for bugfiler.
const (
	// Settings errors
	CodeSettingsIncomplete Code = "SETTINGS_INCOMPLETE"
	CodeInvalidURL         Code = "INVALID_URL"

	// Tracker errors
	CodeTransportFailure Code = "TRANSPORT_FAILURE"
	CodeNotFound         Code = "NOT_FOUND"

	// Local argument errors
	CodeValidationFailed Code = "VALIDATION_FAILED"

	// Config errors
	CodeConfigInvalid Code = "CONFIG_INVALID"
)

// Category groups error codes by where the failure was detected.
type Category int

const (
	CategoryUnknown Category = iota
	// CategoryLocal failures are detected before any network call.
	CategoryLocal
	// CategoryRemote failures come back from the tracker.
	CategoryRemote
	CategoryNotFound
)

// codeCategories maps error codes to their categories.
var codeCategories = map[Code]Category{
	CodeSettingsIncomplete: CategoryLocal,
	CodeInvalidURL:         CategoryLocal,
	CodeValidationFailed:   CategoryLocal,
	CodeConfigInvalid:      CategoryLocal,
	CodeTransportFailure:   CategoryRemote,
	CodeNotFound:           CategoryNotFound,
}

// ExitCode returns the process exit status the CLI uses for a category.
func (c Category) ExitCode() int {
	switch c {
	case CategoryLocal:
		return 2
	case CategoryRemote:
		return 3
	case CategoryNotFound:
		return 4
	default:
		return 1
	}
}

// Error is the structured error type for bugfiler.
type Error struct {
	Code  Code   `json:"code"`
	What  string `json:"what"`
	Why   string `json:"why,omitempty"`
	Fix   string `json:"fix,omitempty"`
	Cause error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly message for CLI output.
func (e *Error) UserMessage() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString("\n\nWhy: ")
		b.WriteString(e.Why)
	}
	if e.Fix != "" {
		b.WriteString("\n\nFix: ")
		b.WriteString(e.Fix)
	}
	return b.String()
}

// Category returns the error category.
func (e *Error) Category() Category {
	if cat, ok := codeCategories[e.Code]; ok {
		return cat
	}
	return CategoryUnknown
}

// MarshalJSON implements json.Marshaler.
func (e *Error) MarshalJSON() ([]byte, error) {
	type alias Error
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// Is reports whether target is an Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:  e.Code,
		What:  e.What,
		Why:   e.Why,
		Fix:   e.Fix,
		Cause: err,
	}
}

// --- Error constructors ---

// ErrSettingsIncomplete returns an error for missing url, login or password.
func ErrSettingsIncomplete() *Error {
	return &Error{
		Code: CodeSettingsIncomplete,
		What: "settings not completely specified",
		Why:  "The JIRA URL, login and password must all be set",
		Fix:  "Run 'bugfiler settings set --url URL --login USER --password-stdin'",
	}
}

// ErrInvalidURL returns an error for a server URL that cannot be used.
func ErrInvalidURL(raw string) *Error {
	return &Error{
		Code: CodeInvalidURL,
		What: "Incorrectly specified bug tracker URI.",
		Why:  fmt.Sprintf("%q is not an absolute http(s) URL", raw),
		Fix:  "Set the URL of your JIRA instance, for instance, https://mycompany.atlassian.net",
	}
}

// ErrTransport wraps a failed round trip to the tracker.
func ErrTransport(op string, cause error) *Error {
	return &Error{
		Code:  CodeTransportFailure,
		What:  fmt.Sprintf("%s failed", op),
		Cause: cause,
	}
}

// ErrNotFound returns an error for a project, issue type or issue that does not exist.
func ErrNotFound(kind, name string) *Error {
	return &Error{
		Code: CodeNotFound,
		What: fmt.Sprintf("%s %s not found", kind, name),
	}
}

// ErrValidation returns an error for a missing or malformed local argument.
func ErrValidation(what string) *Error {
	return &Error{
		Code: CodeValidationFailed,
		What: what,
	}
}

// ErrConfigInvalid returns an error for invalid configuration.
func ErrConfigInvalid(field, reason string) *Error {
	return &Error{
		Code: CodeConfigInvalid,
		What: fmt.Sprintf("invalid configuration: %s", field),
		Why:  reason,
		Fix:  "Check ~/.config/bugfiler/config.yaml and fix the invalid field",
	}
}

// AsError attempts to convert an error to an *Error.
// Returns nil if the error is not an *Error.
func AsError(err error) *Error {
	var bfErr *Error
	if As(err, &bfErr) {
		return bfErr
	}
	return nil
}

// As is a convenience wrapper for errors.As.
func As(err error, target any) bool {
	return asError(err, target)
}

// asError implements errors.As behavior.
func asError(err error, target any) bool {
	if err == nil {
		return false
	}
	if bfErr, ok := err.(*Error); ok {
		if t, ok := target.(**Error); ok {
			*t = bfErr
			return true
		}
	}
	if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
		return asError(unwrapper.Unwrap(), target)
	}
	return false
}

// Wrap wraps a generic error into an Error with unknown code.
func Wrap(err error, what string) *Error {
	return &Error{
		Code:  Code("UNKNOWN"),
		What:  what,
		Cause: err,
	}
}
