package booking_api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quarterdeck-booking/internal/auth"
	"quarterdeck-booking/internal/booking/pass"
	"quarterdeck-booking/internal/models"
	"quarterdeck-booking/internal/utils"
)

func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	b, err := h.Bookings.VerifyPayment(r.Context(), id)
	if err != nil {
		h.writeError(w, "VerifyPayment", err)
		return
	}
	h.Logger.LogBooking("PAYMENT_VERIFIED", b.ID, fmt.Sprintf("by=%s method=%s", auth.UserID(r.Context()), b.PaymentMethod))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Payment verified", b))
}

func (h *Handler) RejectPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body reasonRequest
	if err := decodeBody(r, &body); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	b, err := h.Bookings.RejectPayment(r.Context(), id, body.Reason)
	if err != nil {
		h.writeError(w, "RejectPayment", err)
		return
	}
	h.Logger.LogBooking("PAYMENT_REJECTED", b.ID, fmt.Sprintf("by=%s reason=%q", auth.UserID(r.Context()), body.Reason))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Payment rejected", b))
}

type statusRequest struct {
	Status models.BookingStatus `json:"status"`
	Reason string               `json:"reason,omitempty"`
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body statusRequest
	if err := decodeBody(r, &body); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	b, err := h.Bookings.TransitionStatus(r.Context(), id, body.Status, body.Reason)
	if err != nil {
		h.writeError(w, "SetStatus", err)
		return
	}
	h.Logger.LogBooking("STATUS", b.ID, fmt.Sprintf("by=%s status=%s", auth.UserID(r.Context()), b.Status))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Status updated", b))
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.Notifications == nil {
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Notifications retrieved", []models.NotificationLog{}))
		return
	}
	logs, err := h.Notifications.ListForBooking(r.Context(), id)
	if err != nil {
		h.writeError(w, "ListNotifications", err)
		return
	}
	if logs == nil {
		logs = []models.NotificationLog{}
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Notifications retrieved", logs))
}

type passVerifyRequest struct {
	Token string `json:"token"`
}

type passVerifyResponse struct {
	Valid   bool                 `json:"valid"`
	Reason  string               `json:"reason,omitempty"`
	Claims  *pass.Claims         `json:"claims,omitempty"`
	Status  models.BookingStatus `json:"status,omitempty"`
	Payment models.PaymentStatus `json:"paymentStatus,omitempty"`
}

// VerifyPass checks a scanned token and that its booking is still confirmed.
func (h *Handler) VerifyPass(w http.ResponseWriter, r *http.Request) {
	if h.Passes == nil {
		utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Passes disabled", "no pass secret configured"))
		return
	}
	var body passVerifyRequest
	if err := decodeBody(r, &body); err != nil || body.Token == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", "token is required"))
		return
	}

	claims, err := h.Passes.Open(body.Token)
	if errors.Is(err, pass.ErrInvalidPass) {
		h.Logger.LogSecurity("PASS_REJECTED", fmt.Sprintf("scanned by %s", auth.UserID(r.Context())))
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Pass checked", passVerifyResponse{Valid: false, Reason: "not a valid pass"}))
		return
	}
	if err != nil {
		h.writeError(w, "VerifyPass", err)
		return
	}

	b, err := h.Bookings.GetBooking(r.Context(), claims.BookingID)
	if err != nil {
		h.writeError(w, "VerifyPass", err)
		return
	}

	resp := passVerifyResponse{Valid: b.Status == models.BookingConfirmed, Claims: claims, Status: b.Status, Payment: b.PaymentStatus}
	if !resp.Valid {
		resp.Reason = fmt.Sprintf("booking is %s", b.Status)
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Pass checked", resp))
}
