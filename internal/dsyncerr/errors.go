// Package dsyncerr defines the flat error taxonomy the synchronization
// engine surfaces across its component boundaries.
package dsyncerr

import "fmt"

// Kind classifies an Error so callers can branch with errors.Is/As
// instead of matching on message text.
type Kind string

const (
	KindInvalidPath        Kind = "INVALID_PATH"
	KindInvalidFileType    Kind = "INVALID_FILE_TYPE"
	KindInvalidObjectType  Kind = "INVALID_OBJECT_TYPE"
	KindRepoNotEmpty       Kind = "REPO_NOT_EMPTY"
	KindNoObjects          Kind = "NO_OBJECTS"
	KindDBNotOnboarded     Kind = "DB_NOT_ONBOARDED"
	KindDBOutOfSync        Kind = "DB_OUT_OF_SYNC"
	KindDependencyCycle    Kind = "DEPENDENCY_CYCLE"
	KindDDLExecutionFailed Kind = "DDL_EXECUTION_FAILED"
	KindRepoIO             Kind = "REPO_IO"
	KindDBIO               Kind = "DB_IO"
)

// Error wraps an underlying cause with a taxonomy Kind and a
// human-readable message. It participates in errors.Is/As via Unwrap.
type Error struct {
	Kind    Kind
	Message string
	Err     error

	// Delta carries the out-of-sync change list for KindDBOutOfSync,
	// so callers can surface it without re-deriving it.
	Delta any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, &Error{Kind: KindX}) match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == "" {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around an existing error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Of reports whether err (or anything it wraps) is a *Error of kind.
func Of(err error, kind Kind) bool {
	var e *Error
	if !asError(err, &e) {
		return false
	}
	return e.Kind == kind
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
