// Package errs defines the error taxonomy shared by the ledger packages.
//
// Every error surfaced by a repository is either an *Error carrying one of
// the codes below or a plain wrapped error from a caller-supplied function.
// Use the Is* helpers rather than comparing codes by hand; they unwrap.
package errs

import (
	"errors"
	"fmt"
)

// Code categorizes ledger errors.
type Code string

const (
	// CodeNotFound indicates that no row exists for the requested id.
	CodeNotFound Code = "NOT_FOUND"

	// CodeConflict indicates that a save precondition did not hold against
	// the remote state (the row vanished between fetch and save).
	CodeConflict Code = "CONFLICT"

	// CodeInvalidState indicates a programming error: replacing an
	// identifier, binding instance fields without an instance, or a
	// misconfigured schema.
	CodeInvalidState Code = "INVALID_STATE"

	// CodeStoreFailure wraps a failure of the row source or update executor.
	CodeStoreFailure Code = "STORE_FAILURE"

	// CodeNotEnoughMelons indicates that a mutation would drive a balance
	// below zero.
	CodeNotEnoughMelons Code = "NOT_ENOUGH_MELONS"
)

// Error is the structured error returned by holders, registries and
// repositories.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Entity names the affected entity kind ("account", "purchase", ...).
	Entity string

	// ID identifies the affected entity, if known.
	ID string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Entity != "" && e.ID != "" {
		msg = fmt.Sprintf("%s (%s=%s)", msg, e.Entity, e.ID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound creates an error for a missing row.
func NotFound(entity, id string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("no %s with this id", entity),
		Entity:  entity,
		ID:      id,
	}
}

// Conflict creates an error for a failed save precondition.
func Conflict(entity, id, message string) *Error {
	return &Error{
		Code:    CodeConflict,
		Message: message,
		Entity:  entity,
		ID:      id,
	}
}

// InvalidState creates an error for a programming error.
func InvalidState(format string, args ...any) *Error {
	return &Error{
		Code:    CodeInvalidState,
		Message: fmt.Sprintf(format, args...),
	}
}

// StoreFailure wraps err as a store failure of op.
// Errors that already belong to the taxonomy are returned unchanged so that
// a NotFound or InvalidState raised below the store boundary keeps its code.
func StoreFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{
		Code:    CodeStoreFailure,
		Message: op,
		Err:     err,
	}
}

// NotEnoughMelons creates an error for a mutation that would leave an
// account with a negative balance.
func NotEnoughMelons(id string, have, delta int64) *Error {
	return &Error{
		Code:    CodeNotEnoughMelons,
		Message: fmt.Sprintf("balance of %d cannot be changed by %d", have, delta),
		Entity:  "account",
		ID:      id,
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if there
// is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound returns true if err is a NotFound error.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsConflict returns true if err is a Conflict error.
func IsConflict(err error) bool { return CodeOf(err) == CodeConflict }

// IsInvalidState returns true if err is an InvalidState error.
func IsInvalidState(err error) bool { return CodeOf(err) == CodeInvalidState }

// IsStoreFailure returns true if err is a StoreFailure error.
func IsStoreFailure(err error) bool { return CodeOf(err) == CodeStoreFailure }

// IsNotEnoughMelons returns true if err is a NotEnoughMelons error.
func IsNotEnoughMelons(err error) bool { return CodeOf(err) == CodeNotEnoughMelons }
