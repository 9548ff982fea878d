package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrReference           = errors.New("reference error")
	ErrValidation          = errors.New("validation error")
)

// Error carries the kind plus the entity and field that triggered it.
type Error struct {
	Kind   error
	Entity string
	Field  string
	Msg    string
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Msg != "":
		return fmt.Sprintf("%s: %s.%s: %s", e.Kind, e.Entity, e.Field, e.Msg)
	case e.Field != "":
		return fmt.Sprintf("%s: %s.%s", e.Kind, e.Entity, e.Field)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Entity, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Entity)
}

func (e *Error) Unwrap() error { return e.Kind }

func NotFound(entity, id string) error {
	return &Error{Kind: ErrNotFound, Entity: entity, Msg: fmt.Sprintf("id %q", id)}
}

func Conflict(entity, field, msg string) error {
	return &Error{Kind: ErrConstraintViolation, Entity: entity, Field: field, Msg: msg}
}

func DanglingRef(entity, field, id string) error {
	return &Error{Kind: ErrReference, Entity: entity, Field: field, Msg: fmt.Sprintf("no record with id %q", id)}
}

func Invalid(entity, field, msg string) error {
	return &Error{Kind: ErrValidation, Entity: entity, Field: field, Msg: msg}
}
