package outbox_api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"quarterdeck-booking/internal/logger"
	"quarterdeck-booking/internal/models"
	"quarterdeck-booking/internal/utils"
)

type OutboxAdmin interface {
	CountByStatus(ctx context.Context) (map[models.OutboxStatus]int, error)
	Requeue(ctx context.Context, id string, now time.Time) error
}

type Handler struct {
	Outbox OutboxAdmin
	Logger *logger.Logger
}

// Register mounts the routes on a router that already enforces the admin role.
func (h *Handler) Register(r chi.Router) {
	r.Get("/outbox", h.Stats)
	r.Post("/outbox/{id}/requeue", h.Requeue)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Outbox.CountByStatus(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("OutboxStats: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to read outbox", "internal error"))
		return
	}
	out := map[models.OutboxStatus]int{models.OutboxPending: 0, models.OutboxDelivered: 0, models.OutboxDead: 0}
	for k, v := range counts {
		out[k] = v
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Outbox status", out))
}

func (h *Handler) Requeue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.Outbox.Requeue(r.Context(), id, time.Now().UTC())
	if errors.Is(err, models.ErrRecordNotFound) {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Not found", "no dead event "+id))
		return
	}
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("OutboxRequeue: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to requeue", "internal error"))
		return
	}
	h.Logger.LogOutbox("REQUEUED", id, "dead event put back in line")
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Event requeued", map[string]string{"id": id}))
}
