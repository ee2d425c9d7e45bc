package booking_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quarterdeck-booking/internal/booking"
	"quarterdeck-booking/internal/booking/pass"
	"quarterdeck-booking/internal/logger"
	"quarterdeck-booking/internal/models"
	"quarterdeck-booking/internal/utils"
)

type BookingService interface {
	FacilityAvailability(ctx context.Context, facilityRef string, resourceID int, date, startTime, endTime string) (*models.AvailabilityResponse, error)
	DaySchedule(ctx context.Context, facilityRef, date string) ([]models.ResourceSchedule, error)
	Quote(ctx context.Context, userID string, req models.CreateBookingRequest) (*models.PriceBreakdown, error)
	PlaceBooking(ctx context.Context, userID string, req models.CreateBookingRequest) (*models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
	Cancel(ctx context.Context, id, reason string) (*models.Booking, error)
	SubmitPaymentProof(ctx context.Context, id, reference string) (*models.Booking, error)
	VerifyPayment(ctx context.Context, id string) (*models.Booking, error)
	RejectPayment(ctx context.Context, id, reason string) (*models.Booking, error)
	TransitionStatus(ctx context.Context, id string, to models.BookingStatus, reason string) (*models.Booking, error)
}

type PassIssuer interface {
	Seal(b models.Booking) (string, error)
	QR(b models.Booking, size int) ([]byte, error)
	Open(token string) (*pass.Claims, error)
}

// NotificationHistory is optional; admins use it to see what a booking was sent.
type NotificationHistory interface {
	ListForBooking(ctx context.Context, bookingID string) ([]models.NotificationLog, error)
}

type Handler struct {
	Bookings      BookingService
	Passes        PassIssuer
	Notifications NotificationHistory
	Logger        *logger.Logger
	AdminRole     string
}

func NewHandler(svc BookingService, passes PassIssuer, history NotificationHistory, log *logger.Logger, adminRole string) *Handler {
	return &Handler{Bookings: svc, Passes: passes, Notifications: history, Logger: log, AdminRole: adminRole}
}

// RegisterPublic mounts the routes that need no token.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/api/facilities/{slug}/availability", h.Availability)
	r.Get("/api/facilities/{slug}/schedule", h.Schedule)
}

// RegisterUser mounts the caller's booking routes; auth.Middleware must already run.
// Quotes live here because member pricing depends on who is asking.
func (h *Handler) RegisterUser(r chi.Router) {
	r.Post("/api/pricing/quote", h.Quote)
	r.Route("/api/bookings", func(r chi.Router) {
		r.Post("/", h.CreateBooking)
		r.Get("/", h.ListBookings)
		r.Get("/{id}", h.GetBooking)
		r.Post("/{id}/cancel", h.CancelBooking)
		r.Post("/{id}/payment-proof", h.SubmitPaymentProof)
		r.Get("/{id}/pass", h.GetPass)
	})
}

// RegisterAdmin mounts staff routes on a router already scoped to /api/admin
// and guarded by auth.RequireRole.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/bookings/{id}/verify-payment", h.VerifyPayment)
	r.Post("/bookings/{id}/reject-payment", h.RejectPayment)
	r.Post("/bookings/{id}/status", h.SetStatus)
	r.Get("/bookings/{id}/notifications", h.ListNotifications)
	r.Post("/passes/verify", h.VerifyPass)
}

func (h *Handler) isAdmin(p models.Principal) bool {
	return p.HasRole(h.AdminRole)
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeError maps engine errors onto status codes. Unexpected errors are logged
// and hidden from the client.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	var (
		verr *booking.ValidationError
		cerr *booking.ConflictError
		nerr *booking.NotFoundError
		terr *booking.InvalidTransitionError
	)
	switch {
	case errors.As(err, &verr):
		h.Logger.Debug("API", fmt.Sprintf("%s: %v", op, err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Validation failed", verr.Error()))
	case errors.As(err, &cerr):
		h.Logger.Info("API", fmt.Sprintf("%s: conflict: %v", op, err))
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Conflict", cerr.Error()))
	case errors.As(err, &nerr):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Not found", nerr.Error()))
	case errors.As(err, &terr):
		utils.WriteJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("Invalid transition", terr.Error()))
	case errors.Is(err, pass.ErrNotConfirmed):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Pass unavailable", err.Error()))
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Internal error", "internal error"))
	}
}
