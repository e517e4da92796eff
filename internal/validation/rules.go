// Package validation holds the field rules applied to conversation input.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	// MaxUserName is the longest accepted display name, in characters.
	MaxUserName = 25
	// MaxLogin is the longest accepted login, in characters.
	MaxLogin = 25
	// MaxTaskName is the longest accepted task name, in characters.
	MaxTaskName = 50
	// MaxTaskDescription is the longest accepted task description, in characters.
	MaxTaskDescription = 250
)

var loginRe = regexp.MustCompile(`^[A-Za-z0-9._]+$`)

// Error reports why a value was rejected.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Code identifies validation failures in handler summaries.
func (e *Error) Code() string { return "VALIDATION" }

type rule struct {
	field string
	label string
	tags  string
	max   int
}

var (
	userNameRule    = rule{field: "name", label: "Name", tags: fmt.Sprintf("required,max=%d", MaxUserName), max: MaxUserName}
	loginRule       = rule{field: "login", label: "Login", tags: fmt.Sprintf("required,max=%d,login", MaxLogin), max: MaxLogin}
	taskNameRule    = rule{field: "task_name", label: "Task name", tags: fmt.Sprintf("required,max=%d", MaxTaskName), max: MaxTaskName}
	descriptionRule = rule{field: "description", label: "Description", tags: fmt.Sprintf("required,max=%d", MaxTaskDescription), max: MaxTaskDescription}
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("login", func(fl validator.FieldLevel) bool {
		return loginRe.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("validation: register login rule: %v", err))
	}
	return v
}

// Normalize trims surrounding whitespace from raw chat input.
func Normalize(s string) string {
	return strings.TrimSpace(s)
}

// UserName validates a display name.
func UserName(s string) error { return check(userNameRule, s) }

// Login validates a login: letters, digits, dot and underscore only.
func Login(s string) error { return check(loginRule, s) }

// TaskName validates a task name.
func TaskName(s string) error { return check(taskNameRule, s) }

// TaskDescription validates a task description.
func TaskDescription(s string) error { return check(descriptionRule, s) }

func check(r rule, value string) error {
	err := validate.Var(value, r.tags)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &Error{Field: r.field, Reason: err.Error()}
	}
	return &Error{Field: r.field, Reason: reason(r, verrs[0].Tag())}
}

func reason(r rule, tag string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("%s must not be empty.", r.label)
	case "max":
		return fmt.Sprintf("%s must be at most %d characters.", r.label, r.max)
	case "login":
		return fmt.Sprintf("%s may contain only Latin letters, digits, '.' and '_'.", r.label)
	default:
		return fmt.Sprintf("%s is not valid.", r.label)
	}
}

// Reason extracts the human-readable reason from err, or "" when err is not a validation error.
func Reason(err error) string {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Reason
	}
	return ""
}
