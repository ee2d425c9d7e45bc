package booking_api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"quarterdeck-booking/internal/auth"
	"quarterdeck-booking/internal/models"
	"quarterdeck-booking/internal/utils"
)

const passSize = 256

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req models.CreateBookingRequest
	if err := decodeBody(r, &req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	b, err := h.Bookings.PlaceBooking(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, "CreateBooking", err)
		return
	}
	h.Logger.LogBooking("CREATED", b.ID, fmt.Sprintf("user=%s facility=%s resource=%d %s %s-%s total=%d",
		userID, b.FacilityID, b.ResourceID, b.Date, b.StartTime, b.EndTime, b.TotalPrice))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Booking created", b))
}

// ListBookings returns the caller's bookings. Admins may list anyone's.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	q := r.URL.Query()

	filter := models.BookingFilter{
		FacilityID: q.Get("facility"),
		Date:       q.Get("date"),
		Status:     models.BookingStatus(q.Get("status")),
		UserID:     p.Subject,
	}
	if h.isAdmin(p) {
		filter.UserID = q.Get("user")
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Validation failed", fmt.Sprintf("invalid %s: must be a number", name)))
				return
			}
			*dst = n
		}
	}

	bookings, err := h.Bookings.ListBookings(r.Context(), filter)
	if err != nil {
		h.writeError(w, "ListBookings", err)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Bookings retrieved", bookings))
}

// ownedBooking loads the booking in the URL and checks the caller may act on it.
// It writes the response itself when it returns nil.
func (h *Handler) ownedBooking(w http.ResponseWriter, r *http.Request, op string) *models.Booking {
	id := chi.URLParam(r, "id")
	p, _ := auth.PrincipalFrom(r.Context())

	b, err := h.Bookings.GetBooking(r.Context(), id)
	if err != nil {
		h.writeError(w, op, err)
		return nil
	}
	if b.UserID != p.Subject && !h.isAdmin(p) {
		h.Logger.LogSecurity("BOOKING_ACCESS_DENIED", fmt.Sprintf("%s: user %s on booking %s", op, p.Subject, id))
		utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse("Forbidden", "booking belongs to another user"))
		return nil
	}
	return b
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b := h.ownedBooking(w, r, "GetBooking")
	if b == nil {
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Booking retrieved", b))
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	var body reasonRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil {
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
			return
		}
	}

	b := h.ownedBooking(w, r, "CancelBooking")
	if b == nil {
		return
	}
	updated, err := h.Bookings.Cancel(r.Context(), b.ID, body.Reason)
	if err != nil {
		h.writeError(w, "CancelBooking", err)
		return
	}
	h.Logger.LogBooking("CANCELLED", updated.ID, fmt.Sprintf("by=%s reason=%q", auth.UserID(r.Context()), body.Reason))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Booking cancelled", updated))
}

type paymentProofRequest struct {
	Reference string `json:"reference"`
}

func (h *Handler) SubmitPaymentProof(w http.ResponseWriter, r *http.Request) {
	var body paymentProofRequest
	if err := decodeBody(r, &body); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	b := h.ownedBooking(w, r, "SubmitPaymentProof")
	if b == nil {
		return
	}
	updated, err := h.Bookings.SubmitPaymentProof(r.Context(), b.ID, body.Reference)
	if err != nil {
		h.writeError(w, "SubmitPaymentProof", err)
		return
	}
	h.Logger.LogBooking("PAYMENT_PROOF", updated.ID, fmt.Sprintf("reference=%s", body.Reference))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Payment proof submitted", updated))
}

// GetPass serves the entry pass as a PNG QR code, or as a raw token with ?format=token.
func (h *Handler) GetPass(w http.ResponseWriter, r *http.Request) {
	if h.Passes == nil {
		utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Passes disabled", "no pass secret configured"))
		return
	}
	b := h.ownedBooking(w, r, "GetPass")
	if b == nil {
		return
	}

	if r.URL.Query().Get("format") == "token" {
		token, err := h.Passes.Seal(*b)
		if err != nil {
			h.writeError(w, "GetPass", err)
			return
		}
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Pass issued", map[string]string{"token": token}))
		return
	}

	png, err := h.Passes.QR(*b, passSize)
	if err != nil {
		h.writeError(w, "GetPass", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"pass-%s.png\"", b.ID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetPass: failed to write image: %v", err))
	}
}
