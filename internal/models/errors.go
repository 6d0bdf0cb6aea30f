package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoPendingClick is returned when a submission arrives without a prior map click.
var ErrNoPendingClick = errors.New("no pending map click")

// FieldError describes one rejected input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports bad numeric input on a submission.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " " + f.Reason
	}
	return "invalid workout: " + strings.Join(parts, ", ")
}

// Has reports whether field is among the rejected fields.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// NotFoundError is returned when no workout has the requested id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("workout %q not found", e.ID)
}

// StorageCorruptError is returned when a stored blob is not a well-formed
// sequence of workout records.
type StorageCorruptError struct {
	Index  int // -1 when the blob as a whole failed to parse
	Reason string
	Err    error
}

func (e *StorageCorruptError) Error() string {
	msg := "corrupt workout storage"
	if e.Index >= 0 {
		msg += fmt.Sprintf(" at record %d", e.Index)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StorageCorruptError) Unwrap() error { return e.Err }

// PersistError is returned when a workout was added to the session but the
// collection could not be written to storage. The workout stays in memory and
// is included in the next successful write.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return "workout recorded but not saved: " + e.Err.Error()
}

func (e *PersistError) Unwrap() error { return e.Err }
