package fsal

import (
	"errors"
	"fmt"
)

// ErrorCode is the major error kind a backend operation reports.
//
// Backends return these codes through *Error; protocol handlers translate
// them to wire-level status codes via ConvertStatus.
type ErrorCode int

const (
	// ErrNotFound indicates the named object does not exist
	ErrNotFound ErrorCode = iota + 1

	// ErrExists indicates an object with the name already exists
	ErrExists

	// ErrAccessDenied indicates an ACL-based access check failed
	ErrAccessDenied

	// ErrPermDenied indicates a credential-based permission check failed
	ErrPermDenied

	// ErrStale indicates the handle no longer refers to a live object
	ErrStale

	// ErrHandleExpired indicates the backend expired the handle; treated
	// like staleness by the cache layer
	ErrHandleExpired

	// ErrDelay indicates a transient resource condition; the caller
	// should retry later
	ErrDelay

	// ErrNotDirectory indicates a directory operation on a non-directory
	ErrNotDirectory

	// ErrIsDirectory indicates a file operation on a directory
	ErrIsDirectory

	// ErrBadType indicates the object's type does not support the
	// operation
	ErrBadType

	// ErrCrossJunction signals that resolution crossed into another
	// export. Not a failure: it is the control signal that triggers
	// junction resolution in readdir and getattr
	ErrCrossJunction

	// ErrInvalid indicates invalid caller input
	ErrInvalid

	// ErrNameTooLong indicates a name exceeding the backend limit
	ErrNameTooLong

	// ErrNoSpace indicates the filesystem is out of space
	ErrNoSpace

	// ErrQuotaExceeded indicates a quota was exhausted
	ErrQuotaExceeded

	// ErrIO indicates an I/O failure in the backend
	ErrIO

	// ErrNotSupported indicates the backend does not implement the
	// operation
	ErrNotSupported

	// ErrReadOnly indicates a mutation on a read-only filesystem
	ErrReadOnly

	// ErrNotEmpty indicates a directory that cannot be removed or
	// displaced because it is non-empty or is an export mount point
	ErrNotEmpty

	// ErrNotOpened indicates an I/O call on a closed handle
	ErrNotOpened

	// ErrBadCookie indicates an unusable directory enumeration cookie
	ErrBadCookie

	// ErrShareDenied indicates a conflicting share reservation
	ErrShareDenied

	// ErrNoData indicates a missing extended attribute
	ErrNoData

	// ErrTooManyLinks indicates the link count limit was reached
	ErrTooManyLinks

	// ErrBadHandle indicates a malformed handle key
	ErrBadHandle

	// ErrBadRange indicates an invalid offset/length combination
	ErrBadRange

	// ErrSecurity indicates a security context failure
	ErrSecurity

	// ErrXDev indicates an operation crossing a filesystem boundary
	ErrXDev

	// ErrFault indicates an internal inconsistency; always a bug
	ErrFault
)

// String returns the symbolic name of the code.
func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "NOT_FOUND"
	case ErrExists:
		return "EXISTS"
	case ErrAccessDenied:
		return "ACCESS_DENIED"
	case ErrPermDenied:
		return "PERM_DENIED"
	case ErrStale:
		return "STALE"
	case ErrHandleExpired:
		return "HANDLE_EXPIRED"
	case ErrDelay:
		return "DELAY"
	case ErrNotDirectory:
		return "NOT_DIRECTORY"
	case ErrIsDirectory:
		return "IS_DIRECTORY"
	case ErrBadType:
		return "BAD_TYPE"
	case ErrCrossJunction:
		return "CROSS_JUNCTION"
	case ErrInvalid:
		return "INVALID"
	case ErrNameTooLong:
		return "NAME_TOO_LONG"
	case ErrNoSpace:
		return "NO_SPACE"
	case ErrQuotaExceeded:
		return "QUOTA_EXCEEDED"
	case ErrIO:
		return "IO"
	case ErrNotSupported:
		return "NOT_SUPPORTED"
	case ErrReadOnly:
		return "READ_ONLY"
	case ErrNotEmpty:
		return "NOT_EMPTY"
	case ErrNotOpened:
		return "NOT_OPENED"
	case ErrBadCookie:
		return "BAD_COOKIE"
	case ErrShareDenied:
		return "SHARE_DENIED"
	case ErrNoData:
		return "NO_DATA"
	case ErrTooManyLinks:
		return "TOO_MANY_LINKS"
	case ErrBadHandle:
		return "BAD_HANDLE"
	case ErrBadRange:
		return "BAD_RANGE"
	case ErrSecurity:
		return "SECURITY"
	case ErrXDev:
		return "XDEV"
	case ErrFault:
		return "FAULT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(c))
	}
}

// Error is the status a backend operation returns: a major error kind plus
// an optional errno-style minor detail.
//
// These are domain errors (object not found, permission denied, handle gone
// stale) as opposed to infrastructure errors. Protocol handlers translate
// the Code to protocol-specific error codes.
type Error struct {
	// Code is the major error kind
	Code ErrorCode

	// Errno is an optional errno-style detail from the backend
	Errno int

	// Message is a human-readable error description
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Code.String() + ": " + e.Message
	}
	return e.Code.String()
}

// Errorf builds an *Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the ErrorCode from err. Returns 0 for nil and for errors
// that did not originate from a backend operation.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return 0
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return 0
}

// IsCode reports whether err carries the given major error kind.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsStale reports whether err signals backend staleness. Both ErrStale and
// ErrHandleExpired are terminal for the handle that produced them.
func IsStale(err error) bool {
	code := CodeOf(err)
	return code == ErrStale || code == ErrHandleExpired
}
