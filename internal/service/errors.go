package service

import (
	"errors"
	"fmt"

	"github.com/Dan9191/coop-lending/internal/repository"
)

// ValidationError reports malformed or out-of-domain input
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing loan, member or invitation
type NotFoundError struct {
	Resource string
	Err      error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %v", e.Resource, e.Err)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// ConstraintViolation reports a write rejected by a storage invariant.
// Upserts keyed on (loan, guarantor) should never produce one.
type ConstraintViolation struct {
	Constraint string
	Err        error
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("constraint violation on %q: %v", e.Constraint, e.Err)
}

func (e *ConstraintViolation) Unwrap() error {
	return e.Err
}

// NotificationDeliveryError reports a notification that could not be written.
// It is logged and never fails a recorded decision.
type NotificationDeliveryError struct {
	Type string
	Err  error
}

func (e *NotificationDeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver %s notification: %v", e.Type, e.Err)
}

func (e *NotificationDeliveryError) Unwrap() error {
	return e.Err
}

// translate maps repository errors onto the service taxonomy
func translate(resource string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Resource: resource, Err: err}
	}
	var cErr *repository.ConstraintError
	if errors.As(err, &cErr) {
		return &ConstraintViolation{Constraint: cErr.Constraint, Err: err}
	}
	return err
}
