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

func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	q := r.URL.Query()

	resourceID, err := strconv.Atoi(q.Get("resource"))
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Validation failed", "invalid resource: must be a number"))
		return
	}

	res, err := h.Bookings.FacilityAvailability(r.Context(), slug, resourceID, q.Get("date"), q.Get("start"), q.Get("end"))
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Availability checked", res))
}

func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	date := r.URL.Query().Get("date")
	h.Logger.Debug("API", fmt.Sprintf("Schedule: facility=%s date=%s", slug, date))

	schedule, err := h.Bookings.DaySchedule(r.Context(), slug, date)
	if err != nil {
		h.writeError(w, "Schedule", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Schedule retrieved", schedule))
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req models.CreateBookingRequest
	if err := decodeBody(r, &req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	price, err := h.Bookings.Quote(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		h.writeError(w, "Quote", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Price computed", price))
}
