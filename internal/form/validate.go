// Package form implements the contact form: per-field validation, the
// touched/error bookkeeping behind inline messages, and the submission
// controller that talks to the form relay.
package form

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Field identifies one input of the contact form.
type Field string

const (
	FieldName    Field = "name"
	FieldEmail   Field = "email"
	FieldService Field = "service"
	FieldMessage Field = "message"
)

// RequiredFields are the inputs that must pass validation before a submit.
var RequiredFields = []Field{FieldName, FieldEmail, FieldMessage}

const (
	nameMinLength    = 2
	nameMaxLength    = 100
	messageMinLength = 10
	messageMaxLength = 2000
)

var (
	namePattern = regexp.MustCompile(`^[A-Za-z '\-]+$`)
	// The final label is the top-level domain and must be two letters or more.
	emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(?:\.[A-Za-z0-9\-]+)*\.[A-Za-z]{2,}$`)
)

// Validate returns a human-readable message for an invalid value, or "" when the
// value is acceptable. Fields are checked independently of each other.
func Validate(field Field, value string) string {
	switch field {
	case FieldName:
		return validateName(value)
	case FieldEmail:
		return validateEmail(value)
	case FieldMessage:
		return validateMessage(value)
	default:
		return ""
	}
}

func validateName(value string) string {
	name := strings.TrimSpace(value)
	n := utf8.RuneCountInString(name)

	switch {
	case n == 0:
		return "Name is required"
	case n < nameMinLength:
		return "Name must be at least 2 characters"
	case n > nameMaxLength:
		return "Name must be less than 100 characters"
	case !namePattern.MatchString(name):
		return "Name can only contain letters, spaces, hyphens, and apostrophes"
	}
	return ""
}

func validateEmail(value string) string {
	email := strings.TrimSpace(value)

	switch {
	case email == "":
		return "Email is required"
	case !emailPattern.MatchString(email):
		return "Please enter a valid email address"
	}
	return ""
}

func validateMessage(value string) string {
	message := strings.TrimSpace(value)
	n := utf8.RuneCountInString(message)

	switch {
	case n == 0:
		return "Message is required"
	case n < messageMinLength:
		return "Message must be at least 10 characters"
	case n > messageMaxLength:
		return "Message must be less than 2000 characters"
	}
	return ""
}
