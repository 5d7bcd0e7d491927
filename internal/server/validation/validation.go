// Package validation contains pure input validators for polls and votes.
// Validators collect per-field messages into a Result; nothing here touches
// storage or transport.
package validation

import (
	"fmt"
	"sort"
	"strings"
)

// Result aggregates validation failures keyed by field name.
// A Result with no messages is valid.
type Result struct {
	errors map[string][]string
}

func NewResult() *Result {
	return &Result{errors: make(map[string][]string)}
}

// Add appends a message for the given field.
func (r *Result) Add(field, msg string) {
	r.errors[field] = append(r.errors[field], msg)
}

// Merge copies all messages from other into r.
func (r *Result) Merge(other *Result) {
	for field, msgs := range other.errors {
		r.errors[field] = append(r.errors[field], msgs...)
	}
}

// Valid reports whether no field collected any message.
func (r *Result) Valid() bool {
	return len(r.errors) == 0
}

// Fields returns the field→messages map. The map must not be mutated.
func (r *Result) Fields() map[string][]string {
	return r.errors
}

// Err converts a failing Result into an *Error; a valid Result yields nil.
func (r *Result) Err() error {
	if r.Valid() {
		return nil
	}
	return &Error{Fields: r.errors}
}

// Error is the structured validation error carrying the full field-error map.
type Error struct {
	Fields map[string][]string
}

func (e *Error) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fmt.Sprintf("validation failed: %s", strings.Join(fields, ", "))
}

// AsError returns the *Error carried by err, if any.
func AsError(err error) (*Error, bool) {
	ve, ok := err.(*Error)
	return ve, ok
}
