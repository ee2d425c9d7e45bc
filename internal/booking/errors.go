package booking

import (
	"errors"
	"fmt"

	"quarterdeck-booking/internal/models"
)

// ValidationError reports malformed, missing or out-of-range input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictError means the requested slot overlaps another booking, or the booking
// changed underneath an update.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

var (
	errSlotBooked   = &ConflictError{Message: "slot already booked"}
	errStaleBooking = &ConflictError{Message: "booking was modified concurrently, reload and retry"}
)

// NotFoundError is returned when a referenced facility, membership or booking does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// InvalidTransitionError rejects a status or payment-status move the state machine forbids.
type InvalidTransitionError struct {
	From string
	To   string
	// Detail is set when the move is blocked by payment state rather than the status graph.
	Detail string
}

func (e *InvalidTransitionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("cannot move booking from %s to %s: %s", e.From, e.To, e.Detail)
	}
	return fmt.Sprintf("cannot move booking from %s to %s", e.From, e.To)
}

func invalidTransition(from, to models.BookingStatus) error {
	return &InvalidTransitionError{From: string(from), To: string(to)}
}

// notFound converts the store sentinel into a typed error, passing anything else through.
func notFound(err error, kind, id string) error {
	if errors.Is(err, models.ErrRecordNotFound) {
		return &NotFoundError{Kind: kind, ID: id}
	}
	return err
}
