package catalog

import (
	"context"
	"fmt"

	"quarterdeck-booking/internal/logger"
	"quarterdeck-booking/internal/models"
)

// Repository is the persistence the catalog reads from.
type Repository interface {
	ListFacilities(ctx context.Context, activeOnly bool) ([]models.Facility, error)
	FindFacility(ctx context.Context, ref string) (*models.Facility, error)
	ListAddOns(ctx context.Context, facilityID string) ([]models.AddOn, error)
	GetAddOns(ctx context.Context, facilityID string, ids []string) ([]models.AddOn, error)
	GetMembershipByNumber(ctx context.Context, number string) (*models.Membership, error)
	GetTierRule(ctx context.Context, tier string) (*models.TierRule, error)
	ListTierRules(ctx context.Context) ([]models.TierRule, error)
}

// FacilityDetail is a facility with the add-ons bookable alongside it.
type FacilityDetail struct {
	models.Facility
	AddOns []models.AddOn `json:"addOns"`
}

// Service serves the facility catalog and the membership registry. Facility
// lookups go through the cache when one is configured.
type Service struct {
	Repo   Repository
	Cache  *FacilityCache
	Logger *logger.Logger
}

func NewService(repo Repository, cache *FacilityCache, log *logger.Logger) *Service {
	return &Service{Repo: repo, Cache: cache, Logger: log}
}

func (s *Service) ListFacilities(ctx context.Context) ([]models.Facility, error) {
	return s.Repo.ListFacilities(ctx, true)
}

// FindFacility resolves a slug or id. Cache failures degrade to a store read.
func (s *Service) FindFacility(ctx context.Context, ref string) (*models.Facility, error) {
	if s.Cache != nil {
		f, err := s.Cache.Get(ctx, ref)
		if err != nil {
			s.Logger.Warn("CATALOG", fmt.Sprintf("Facility cache read failed for %s: %v", ref, err))
		} else if f != nil {
			return f, nil
		}
	}

	f, err := s.Repo.FindFacility(ctx, ref)
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, ref, f); err != nil {
			s.Logger.Warn("CATALOG", fmt.Sprintf("Facility cache write failed for %s: %v", ref, err))
		}
	}
	return f, nil
}

func (s *Service) GetFacilityBySlug(ctx context.Context, slug string) (*FacilityDetail, error) {
	f, err := s.FindFacility(ctx, slug)
	if err != nil {
		return nil, err
	}
	addOns, err := s.Repo.ListAddOns(ctx, f.ID)
	if err != nil {
		return nil, fmt.Errorf("list add-ons for %s: %w", f.ID, err)
	}
	if addOns == nil {
		addOns = []models.AddOn{}
	}
	return &FacilityDetail{Facility: *f, AddOns: addOns}, nil
}

func (s *Service) GetAddOns(ctx context.Context, facilityID string, ids []string) ([]models.AddOn, error) {
	return s.Repo.GetAddOns(ctx, facilityID, ids)
}

func (s *Service) GetMembershipByNumber(ctx context.Context, number string) (*models.Membership, error) {
	return s.Repo.GetMembershipByNumber(ctx, number)
}

func (s *Service) GetTierRule(ctx context.Context, tier string) (*models.TierRule, error) {
	return s.Repo.GetTierRule(ctx, tier)
}

func (s *Service) ListTierRules(ctx context.Context) ([]models.TierRule, error) {
	return s.Repo.ListTierRules(ctx)
}
