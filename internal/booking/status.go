package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"quarterdeck-booking/internal/models"
)

// TransitionStatus moves a booking along PENDING -> CONFIRMED, PENDING -> CANCELLED
// or CONFIRMED -> CANCELLED. Confirming marks the payment verified.
func (s *Service) TransitionStatus(ctx context.Context, id string, to models.BookingStatus, reason string) (*models.Booking, error) {
	switch to {
	case models.BookingPending, models.BookingConfirmed, models.BookingCancelled:
	default:
		return nil, invalid("status", fmt.Sprintf("unknown status %q", to))
	}

	b, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	change := models.StatusChange{
		FromStatus:    b.Status,
		FromPayment:   b.PaymentStatus,
		Status:        to,
		PaymentStatus: b.PaymentStatus,
		Reason:        strings.TrimSpace(reason),
	}

	var kind models.BookingEventKind
	switch {
	case to == models.BookingCancelled && (b.Status == models.BookingPending || b.Status == models.BookingConfirmed):
		kind = models.EventBookingCancelled
	case to == models.BookingConfirmed && b.Status == models.BookingPending:
		change.PaymentStatus = models.PaymentVerified
		kind = models.EventPaymentVerified
	default:
		return nil, invalidTransition(b.Status, to)
	}
	return s.apply(ctx, b, change, kind)
}

func (s *Service) Cancel(ctx context.Context, id, reason string) (*models.Booking, error) {
	return s.TransitionStatus(ctx, id, models.BookingCancelled, reason)
}

// SubmitPaymentProof records a bank transfer reference for desk verification.
// A rejected proof may be resubmitted.
func (s *Service) SubmitPaymentProof(ctx context.Context, id, reference string) (*models.Booking, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, invalid("paymentReference", "is required")
	}

	b, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.PaymentMethod != models.PaymentBankTransfer {
		return nil, invalid("paymentMethod", "payment proof applies to bank transfers only")
	}
	if b.Status != models.BookingPending {
		return nil, &InvalidTransitionError{From: string(b.Status), To: string(models.PaymentPendingVerification), Detail: "booking is no longer pending"}
	}
	if b.PaymentStatus != models.PaymentPending && b.PaymentStatus != models.PaymentRejected {
		return nil, &InvalidTransitionError{From: string(b.PaymentStatus), To: string(models.PaymentPendingVerification)}
	}

	return s.apply(ctx, b, models.StatusChange{
		FromStatus:       b.Status,
		FromPayment:      b.PaymentStatus,
		Status:           b.Status,
		PaymentStatus:    models.PaymentPendingVerification,
		PaymentReference: reference,
	}, "")
}

// VerifyPayment confirms a pending booking. Cash is verified straight from
// PENDING_PAYMENT at the desk; bank transfers need a submitted proof first.
func (s *Service) VerifyPayment(ctx context.Context, id string) (*models.Booking, error) {
	b, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != models.BookingPending {
		return nil, invalidTransition(b.Status, models.BookingConfirmed)
	}

	switch {
	case b.PaymentStatus == models.PaymentPendingVerification:
	case b.PaymentStatus == models.PaymentPending && b.PaymentMethod == models.PaymentCash:
	default:
		return nil, &InvalidTransitionError{
			From:   string(b.PaymentStatus),
			To:     string(models.PaymentVerified),
			Detail: fmt.Sprintf("%s payment is not awaiting verification", b.PaymentMethod),
		}
	}

	return s.apply(ctx, b, models.StatusChange{
		FromStatus:    b.Status,
		FromPayment:   b.PaymentStatus,
		Status:        models.BookingConfirmed,
		PaymentStatus: models.PaymentVerified,
	}, models.EventPaymentVerified)
}

// RejectPayment sends a submitted proof back to the payer; the booking stays PENDING.
func (s *Service) RejectPayment(ctx context.Context, id, reason string) (*models.Booking, error) {
	b, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != models.BookingPending || b.PaymentStatus != models.PaymentPendingVerification {
		return nil, &InvalidTransitionError{From: string(b.PaymentStatus), To: string(models.PaymentRejected)}
	}

	return s.apply(ctx, b, models.StatusChange{
		FromStatus:    b.Status,
		FromPayment:   b.PaymentStatus,
		Status:        b.Status,
		PaymentStatus: models.PaymentRejected,
		Reason:        strings.TrimSpace(reason),
	}, "")
}

// apply writes change as a compare-and-set against the state b was read in. An
// empty kind writes no event.
func (s *Service) apply(ctx context.Context, b *models.Booking, change models.StatusChange, kind models.BookingEventKind) (*models.Booking, error) {
	change.At = s.now().UTC()

	var events []*models.OutboxEvent
	if kind != "" {
		next := *b
		change.Apply(&next)
		event, err := s.newEvent(kind, next, change.Reason)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	updated, err := s.Store.UpdateStatus(ctx, b.ID, change, events...)
	switch {
	case errors.Is(err, models.ErrStaleStatus):
		return nil, errStaleBooking
	case errors.Is(err, models.ErrRecordNotFound):
		return nil, &NotFoundError{Kind: "booking", ID: b.ID}
	case err != nil:
		return nil, fmt.Errorf("update booking %s: %w", b.ID, err)
	}
	return updated, nil
}
