// Package fault classifies errors returned by the file-operations core.
package fault

import (
	"errors"
	"fmt"
	"io/fs"
)

// Kind is the failure class of an operation.
type Kind int

const (
	KindIO Kind = iota
	KindInvalidInput
	KindNotFound
	KindConflict
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "io_error"
	}
}

// Sentinels usable with errors.Is.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrUnauthorized = errors.New("unauthorized")
	ErrIO           = errors.New("i/o error")

	// ErrQuotaExceeded is an InvalidInput raised when a write would push the
	// active zone past its storage limit.
	ErrQuotaExceeded = errors.New("storage limit exceeded")
)

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidInput:
		return ErrInvalidInput
	case KindNotFound:
		return ErrNotFound
	case KindConflict:
		return ErrConflict
	case KindUnauthorized:
		return ErrUnauthorized
	default:
		return ErrIO
	}
}

// Error is an operation failure with enough context for the HTTP layer to
// build a status and message.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// New builds an Error of the given kind.
func New(kind Kind, op, path string, err error) error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Invalid is shorthand for an InvalidInput error with a message.
func Invalid(op, path, msg string) error {
	return &Error{Kind: KindInvalidInput, Op: op, Path: path, Err: errors.New(msg)}
}

// NotFound is shorthand for a NotFound error.
func NotFound(op, path string) error {
	return &Error{Kind: KindNotFound, Op: op, Path: path}
}

// Conflict is shorthand for a Conflict error.
func Conflict(op, path string) error {
	return &Error{Kind: KindConflict, Op: op, Path: path}
}

// Unauthorized is shorthand for an Unauthorized error with a message.
func Unauthorized(op, msg string) error {
	return &Error{Kind: KindUnauthorized, Op: op, Err: errors.New(msg)}
}

// Wrap classifies a filesystem error. Existing *Error values pass through.
func Wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return &Error{Kind: classify(err), Op: op, Path: path, Err: err}
}

// KindOf reports the kind of any error. Unclassified errors are IOError.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return classify(err)
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, fs.ErrExist):
		return KindConflict
	case errors.Is(err, ErrQuotaExceeded):
		return KindInvalidInput
	default:
		return KindIO
	}
}
