package apply

import (
	"errors"
	"fmt"

	"github.com/roach88/backstock/internal/catalog"
	"github.com/roach88/backstock/internal/reorder"
)

// Code categorizes apply failures. The executor's retry policy is
// uniform across codes; the code exists for logging and surfacing.
type Code string

const (
	// CodeValidation marks a malformed request. Retrying cannot help.
	CodeValidation Code = "VALIDATION"

	// CodePrecondition marks a failed ordering-mode switch. No moves
	// were submitted.
	CodePrecondition Code = "PRECONDITION"

	// CodeRemoteUser marks a business-rule rejection from the catalog.
	CodeRemoteUser Code = "REMOTE_USER"

	// CodeTransient marks a network or timeout failure.
	CodeTransient Code = "TRANSIENT"
)

// Error is a classified apply failure.
type Error struct {
	Code     Code
	EntityID string
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("%s: %v (entity=%s)", e.Code, e.Err, e.EntityID)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

// Unwrap exposes the underlying error to errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Classify wraps an error from the apply pipeline with its taxonomy
// code. Validation errors are constructed directly, not classified.
func Classify(entityID string, err error) *Error {
	code := CodeTransient

	var ue *catalog.UserError
	switch {
	case errors.Is(err, reorder.ErrOrderingMode):
		code = CodePrecondition
	case errors.As(err, &ue):
		code = CodeRemoteUser
	}

	return &Error{Code: code, EntityID: entityID, Err: err}
}
