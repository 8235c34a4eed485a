package form

import (
	"strings"

	siteerrors "github.com/conneroisu/shopfront/internal/errors"
)

// Status is the position of a form in the submission state machine.
type Status int

const (
	StatusIdle Status = iota
	StatusSubmitting
	StatusSuccess
	StatusError
)

// String returns the string representation of the Status
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSubmitting:
		return "submitting"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// State holds the values of one form instance together with the derived
// error, touched and status bookkeeping.
type State struct {
	values  map[Field]string
	errors  map[Field]string
	touched map[Field]bool
	status  Status
}

// NewState creates an empty, idle form.
func NewState() *State {
	return &State{
		values:  make(map[Field]string),
		errors:  make(map[Field]string),
		touched: make(map[Field]bool),
		status:  StatusIdle,
	}
}

// Change records a new value for field. Touched fields are revalidated right
// away so a visible error clears as soon as the input becomes valid.
func (s *State) Change(field Field, value string) {
	s.values[field] = value
	if s.touched[field] {
		s.validate(field)
	}
}

// Blur marks field as touched and validates it.
func (s *State) Blur(field Field) {
	s.touched[field] = true
	s.validate(field)
}

// Value returns the current raw value of field.
func (s *State) Value(field Field) string {
	return s.values[field]
}

// Touched reports whether field has been blurred or force-touched.
func (s *State) Touched(field Field) bool {
	return s.touched[field]
}

// VisibleError returns the message to show next to field. Untouched fields
// never show an error.
func (s *State) VisibleError(field Field) string {
	if !s.touched[field] {
		return ""
	}
	return s.errors[field]
}

// Errors returns a copy of the current error map.
func (s *State) Errors() map[Field]string {
	out := make(map[Field]string, len(s.errors))
	for field, msg := range s.errors {
		out[field] = msg
	}
	return out
}

// Status returns the current submission status.
func (s *State) Status() Status {
	return s.status
}

// ValidateAll touches and validates every required field and returns the
// number of fields that failed.
func (s *State) ValidateAll() int {
	count := 0
	for _, field := range RequiredFields {
		s.touched[field] = true
		if s.validate(field) != "" {
			count++
		}
	}
	return count
}

// FieldErrors converts the current errors into the shared error type.
func (s *State) FieldErrors() siteerrors.FieldErrors {
	if len(s.errors) == 0 {
		return nil
	}
	fe := make(siteerrors.FieldErrors, len(s.errors))
	for field, msg := range s.errors {
		fe[string(field)] = msg
	}
	return fe
}

func (s *State) validate(field Field) string {
	msg := Validate(field, s.values[field])
	if msg == "" {
		delete(s.errors, field)
	} else {
		s.errors[field] = msg
	}
	return msg
}

func (s *State) trimmed(field Field) string {
	return strings.TrimSpace(s.values[field])
}
