package catalog_api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quarterdeck-booking/internal/catalog"
	"quarterdeck-booking/internal/logger"
	"quarterdeck-booking/internal/models"
	"quarterdeck-booking/internal/utils"
)

type CatalogService interface {
	ListFacilities(ctx context.Context) ([]models.Facility, error)
	GetFacilityBySlug(ctx context.Context, slug string) (*catalog.FacilityDetail, error)
	ListTierRules(ctx context.Context) ([]models.TierRule, error)
}

type Handler struct {
	Catalog CatalogService
	Logger  *logger.Logger
}

func NewHandler(svc CatalogService, log *logger.Logger) *Handler {
	return &Handler{Catalog: svc, Logger: log}
}

// Register mounts the public catalog routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/facilities", h.ListFacilities)
	r.Get("/api/facilities/{slug}", h.GetFacility)
	r.Get("/api/tiers", h.ListTiers)
}

func (h *Handler) ListFacilities(w http.ResponseWriter, r *http.Request) {
	facilities, err := h.Catalog.ListFacilities(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListFacilities: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list facilities", "internal error"))
		return
	}
	if facilities == nil {
		facilities = []models.Facility{}
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Facilities retrieved", facilities))
}

func (h *Handler) GetFacility(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	h.Logger.Debug("API", fmt.Sprintf("GetFacility: slug=%s", slug))

	detail, err := h.Catalog.GetFacilityBySlug(r.Context(), slug)
	if errors.Is(err, models.ErrRecordNotFound) {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Facility not found", slug))
		return
	}
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetFacility: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to load facility", "internal error"))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Facility retrieved", detail))
}

func (h *Handler) ListTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.Catalog.ListTierRules(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListTiers: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list tiers", "internal error"))
		return
	}
	if tiers == nil {
		tiers = []models.TierRule{}
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Tiers retrieved", tiers))
}
