// Package apperr defines the error kinds surfaced by the vault.
//
// Filesystem failures never leave the storage layer as raw OS errors: they are
// classified into a Kind and wrapped in an *Error. Callers branch on kinds
// with errors.Is against the sentinels below or with KindOf.
package apperr

import (
	"errors"
	"io/fs"
	"strings"
	"syscall"
)

// Kind is a stable, machine-readable error category.
type Kind string

// Error kinds.
const (
	KindInvalidPath       Kind = "invalid_path"
	KindNotFound          Kind = "not_found"
	KindAlreadyExists     Kind = "already_exists"
	KindDirectoryNotEmpty Kind = "directory_not_empty"
	KindPermission        Kind = "permission"
	KindParentNotFound    Kind = "parent_not_found"
	KindIO                Kind = "io"
	KindInvalidQuery      Kind = "invalid_query"
	KindConflict          Kind = "conflict"
	KindInvalidMove       Kind = "invalid_move"
)

// Sentinel errors, one per kind.
var (
	ErrInvalidPath       = errors.New("invalid path")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrDirectoryNotEmpty = errors.New("directory not empty")
	ErrPermission        = errors.New("permission denied")
	ErrParentNotFound    = errors.New("parent directory not found")
	ErrIO                = errors.New("i/o error")
	ErrInvalidQuery      = errors.New("invalid query")
	ErrConflict          = errors.New("conflict")
	ErrInvalidMove       = errors.New("invalid move")
)

var sentinels = map[Kind]error{
	KindInvalidPath:       ErrInvalidPath,
	KindNotFound:          ErrNotFound,
	KindAlreadyExists:     ErrAlreadyExists,
	KindDirectoryNotEmpty: ErrDirectoryNotEmpty,
	KindPermission:        ErrPermission,
	KindParentNotFound:    ErrParentNotFound,
	KindIO:                ErrIO,
	KindInvalidQuery:      ErrInvalidQuery,
	KindConflict:          ErrConflict,
	KindInvalidMove:       ErrInvalidMove,
}

// Sentinel returns the sentinel error for k, or ErrIO for unknown kinds.
func (k Kind) Sentinel() error {
	if err, ok := sentinels[k]; ok {
		return err
	}
	return ErrIO
}

// Message returns the human-readable description of k.
func (k Kind) Message() string {
	return k.Sentinel().Error()
}

// Error is a classified failure of an operation on a path.
type Error struct {
	Kind   Kind
	Op     string // operation, e.g. "read", "move"
	Path   string // vault-relative path the operation targeted
	Reason string // optional detail, e.g. "presence" or "traversal"
	Err    error  // underlying cause, if any
}

// New returns an *Error of the given kind.
func New(kind Kind, op, path string) *Error {
	return &Error{Kind: kind, Op: op, Path: path}
}

// Newf returns an *Error of the given kind carrying a reason.
func Newf(kind Kind, op, path, reason string) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Reason: reason}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Message())
	if e.Reason != "" {
		b.WriteString(" (")
		b.WriteString(e.Reason)
		b.WriteString(")")
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.Sentinel()
}

// KindOf extracts the kind from err. Unclassified non-nil errors are KindIO.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for k, s := range sentinels {
		if errors.Is(err, s) {
			return k
		}
	}
	return KindIO
}

// ReasonOf returns the Reason of the first *Error in err's chain.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// Classify maps an OS error to an *Error. Errors that are already classified
// are returned unchanged, nil stays nil.
func Classify(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: classifyKind(err), Op: op, Path: path, Err: err}
}

func classifyKind(err error) Kind {
	switch {
	case errors.Is(err, syscall.ENOTEMPTY):
		return KindDirectoryNotEmpty
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return KindNotFound
	case errors.Is(err, fs.ErrExist):
		return KindAlreadyExists
	case errors.Is(err, fs.ErrPermission):
		return KindPermission
	default:
		return KindIO
	}
}
