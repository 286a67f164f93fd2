package reconcile

import (
	"errors"
	"fmt"

	"github.com/roach88/callscript/internal/platform"
)

// Error is a deploy failure with a machine-readable code.
//
// Errors include:
//   - NotFound: an application, rule or scenario that must exist remotely does not
//   - DuplicateName: two declared scenarios collapse case-insensitively
//   - FormatError: cached metadata or config content is not well-formed
//   - PlatformAPIError: a remote call returned an error code
//   - Conflict: remote content drifted since the last sync
//   - CompilationError: the builder failed
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Kind is the artifact kind ("application", "rule", "scenario").
	Kind string

	// Name is the local name of the affected artifact, when known.
	Name string

	// RemoteID is the remote id of the affected artifact, when known.
	RemoteID int64

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes deploy errors.
type ErrorCode string

const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeDuplicateName ErrorCode = "DUPLICATE_NAME"
	ErrCodeFormat        ErrorCode = "FORMAT_ERROR"
	ErrCodePlatformAPI   ErrorCode = "PLATFORM_API_ERROR"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeCompilation   ErrorCode = "COMPILATION_ERROR"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Name != "" && e.RemoteID != 0 {
		msg = fmt.Sprintf("%s (%s=%s, id=%d)", msg, e.Kind, e.Name, e.RemoteID)
	} else if e.Name != "" {
		msg = fmt.Sprintf("%s (%s=%s)", msg, e.Kind, e.Name)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsNotFound returns true if err is a NotFound error.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsDuplicateName returns true if err is a DuplicateName error.
func IsDuplicateName(err error) bool { return hasCode(err, ErrCodeDuplicateName) }

// IsFormatError returns true if err is a FormatError.
func IsFormatError(err error) bool { return hasCode(err, ErrCodeFormat) }

// IsPlatformError returns true if err wraps an error code returned by the platform.
func IsPlatformError(err error) bool { return hasCode(err, ErrCodePlatformAPI) }

// IsConflict returns true if err is a drift Conflict.
func IsConflict(err error) bool { return hasCode(err, ErrCodeConflict) }

// IsCompilationError returns true if err is a builder failure.
func IsCompilationError(err error) bool { return hasCode(err, ErrCodeCompilation) }

// NewNotFoundError reports an artifact with no remote counterpart.
func NewNotFoundError(kind, name string, id int64) *Error {
	var msg string
	switch {
	case id != 0:
		msg = fmt.Sprintf("%s with id %d not found", kind, id)
	case name != "":
		msg = fmt.Sprintf("%s %q not found", kind, name)
	default:
		msg = fmt.Sprintf("no %s name or id given", kind)
	}
	return &Error{Code: ErrCodeNotFound, Message: msg, Kind: kind, Name: name, RemoteID: id}
}

// NewDuplicateNameError reports two declared artifacts whose names collide.
func NewDuplicateNameError(kind, first, second string) *Error {
	msg := fmt.Sprintf("%s names %q and %q differ only by case", kind, first, second)
	if first == second {
		msg = fmt.Sprintf("%s %q declared more than once", kind, first)
	}
	return &Error{Code: ErrCodeDuplicateName, Message: msg, Kind: kind, Name: second}
}

// NewConflictError reports remote content that changed since the last sync.
func NewConflictError(name string, remoteID int64) *Error {
	return &Error{
		Code:     ErrCodeConflict,
		Message:  "remote scenario changed since last sync; use --force to overwrite",
		Kind:     "scenario",
		Name:     name,
		RemoteID: remoteID,
	}
}

// NewFormatError reports malformed config content.
func NewFormatError(kind, name string, err error) *Error {
	return &Error{Code: ErrCodeFormat, Message: "malformed " + kind + " config", Kind: kind, Name: name, Err: err}
}

// NewCompilationError wraps a builder failure.
func NewCompilationError(err error) *Error {
	return &Error{Code: ErrCodeCompilation, Message: "scenario build failed", Err: err}
}

// WrapPlatformError classifies an error returned by the platform client.
// Platform error codes become PlatformAPIError; transport failures are
// wrapped with the operation name and passed through.
func WrapPlatformError(op, kind, name string, err error) error {
	var apiErr *platform.APIError
	if errors.As(err, &apiErr) {
		return &Error{
			Code:    ErrCodePlatformAPI,
			Message: fmt.Sprintf("%s failed with code %d", op, apiErr.Code),
			Kind:    kind,
			Name:    name,
			Err:     err,
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
