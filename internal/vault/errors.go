package vault

import (
	"errors"
	"maps"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/pathguard"
	"github.com/starford/quire/internal/storage"
)

// Base is the field name of errors that are not tied to an input field.
const Base = "base"

// MaxPathLength bounds the length of user-supplied paths.
const MaxPathLength = 1024

// ReasonExtension marks a note path without a markdown extension.
const ReasonExtension = "extension"

// FieldError is one recorded failure of an entity operation.
type FieldError struct {
	Field   string      `json:"field"`
	Kind    apperr.Kind `json:"kind"`
	Reason  string      `json:"reason,omitempty"`
	Message string      `json:"message"`
}

// IsBase reports whether e is a base-level (filesystem) error.
func (e FieldError) IsBase() bool { return e.Field == Base }

// Errors collects the failures of the last operation on an entity.
// The zero value is empty and ready to use.
type Errors struct {
	list []FieldError
}

// Add records a failure.
func (e *Errors) Add(field string, kind apperr.Kind, reason, msg string) {
	e.list = append(e.list, FieldError{Field: field, Kind: kind, Reason: reason, Message: msg})
}

// Clear drops every recorded failure.
func (e *Errors) Clear() { e.list = nil }

// Any reports whether at least one failure is recorded.
func (e *Errors) Any() bool { return len(e.list) > 0 }

// All returns a copy of the recorded failures in insertion order.
func (e *Errors) All() []FieldError {
	out := make([]FieldError, len(e.list))
	copy(out, e.list)
	return out
}

// On returns the failures recorded for field.
func (e *Errors) On(field string) []FieldError {
	var out []FieldError
	for _, fe := range e.list {
		if fe.Field == field {
			out = append(out, fe)
		}
	}
	return out
}

// Has reports whether a failure of the given kind is recorded.
func (e *Errors) Has(kind apperr.Kind) bool {
	for _, fe := range e.list {
		if fe.Kind == kind {
			return true
		}
	}
	return false
}

// Kind returns the kind of the first failure, or "" when there is none.
func (e *Errors) Kind() apperr.Kind {
	if len(e.list) == 0 {
		return ""
	}
	return e.list[0].Kind
}

// FullMessages renders each failure as "<field> <message>", with base
// messages left as they are.
func (e *Errors) FullMessages() []string {
	out := make([]string, 0, len(e.list))
	for _, fe := range e.list {
		if fe.IsBase() {
			out = append(out, fe.Message)
			continue
		}
		out = append(out, fe.Field+" "+fe.Message)
	}
	return out
}

// Err returns the recorded failures as an *apperr.Error carrying the kind of
// the first one, or nil.
func (e *Errors) Err() error {
	if len(e.list) == 0 {
		return nil
	}
	return &apperr.Error{Kind: e.list[0].Kind, Reason: strings.Join(e.FullMessages(), "; ")}
}

// Validation errors. Codes double as invalid_path reasons.
var (
	errPresence  = validation.NewError(pathguard.ReasonPresence, "can't be blank")
	errTraversal = validation.NewError(pathguard.ReasonTraversal, "must stay inside the vault")
	errExtension = validation.NewError(ReasonExtension, "must end in .md or .markdown")
	errTooLong   = validation.NewError("length", "is too long")
)

var pathRule = validation.By(func(v interface{}) error {
	s, _ := v.(string)
	if len(s) > MaxPathLength {
		return errTooLong
	}
	if _, err := pathguard.Normalize(s); err != nil {
		if apperr.ReasonOf(err) == pathguard.ReasonTraversal {
			return errTraversal
		}
		return errPresence
	}
	return nil
})

var markdownRule = validation.By(func(v interface{}) error {
	s, _ := v.(string)
	if !storage.IsMarkdown(s) {
		return errExtension
	}
	return nil
})

var presenceRule = validation.By(func(v interface{}) error {
	s, _ := v.(string)
	if strings.TrimSpace(s) == "" {
		return errPresence
	}
	return nil
})

// validate runs the rule sets and records any failures on errs as
// invalid_path field errors. It reports whether every field passed.
func validate(errs *Errors, fields validation.Errors) bool {
	if fields.Filter() == nil {
		return true
	}
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		err := fields[name]
		if err == nil {
			continue
		}
		code, msg := "", err.Error()
		var ve validation.Error
		if errors.As(err, &ve) {
			code, msg = ve.Code(), ve.Message()
		}
		errs.Add(name, apperr.KindInvalidPath, code, msg)
	}
	return false
}

// messages are the user-facing texts of base-level failures.
var messages = map[apperr.Kind]string{
	apperr.KindNotFound:          "does not exist",
	apperr.KindAlreadyExists:     "already exists",
	apperr.KindDirectoryNotEmpty: "is not empty",
	apperr.KindPermission:        "permission denied",
	apperr.KindParentNotFound:    "parent folder does not exist",
	apperr.KindConflict:          "was changed since it was loaded",
	apperr.KindInvalidMove:       "cannot be moved into itself",
	apperr.KindInvalidPath:       "has an invalid path",
	apperr.KindIO:                "could not be accessed",
}

// addBase records err as a base-level failure on errs. noun names the
// entity, e.g. "Folder".
func addBase(errs *Errors, noun string, err error) {
	kind := apperr.KindOf(err)
	msg, ok := messages[kind]
	if !ok {
		msg = messages[apperr.KindIO]
	}
	if kind == apperr.KindPermission || kind == apperr.KindParentNotFound {
		errs.Add(Base, kind, apperr.ReasonOf(err), msg)
		return
	}
	errs.Add(Base, kind, apperr.ReasonOf(err), noun+" "+msg)
}

func validationErrors(field, value string, rules ...validation.Rule) validation.Errors {
	return validation.Errors{field: validation.Validate(value, rules...)}
}
