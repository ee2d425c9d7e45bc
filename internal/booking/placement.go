package booking

import (
	"context"
	"fmt"
	"strings"

	"quarterdeck-booking/internal/models"
	"quarterdeck-booking/internal/utils"
)

// PlaceBooking resolves a public request against the catalog and creates the booking
// for userID.
func (s *Service) PlaceBooking(ctx context.Context, userID string, req models.CreateBookingRequest) (*models.Booking, error) {
	resolved, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	resolved.UserID = userID
	return s.CreateBooking(ctx, resolved)
}

// Quote prices a request for userID exactly as PlaceBooking would, without
// touching bookings.
func (s *Service) Quote(ctx context.Context, userID string, req models.CreateBookingRequest) (*models.PriceBreakdown, error) {
	resolved, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	resolved.UserID = userID
	if _, err := validateRequest(resolved, s.opts.Location); err != nil {
		return nil, err
	}
	discountPercent, _, err := s.discountFor(ctx, resolved)
	if err != nil {
		return nil, err
	}
	price := ComputePrice(resolved.BasePrice, discountPercent, resolved.AddOns)
	return &price, nil
}

// resolve turns the public request into an engine request: facility reference to id,
// base price from the hourly rate, add-on ids to priced lines.
func (s *Service) resolve(ctx context.Context, req models.CreateBookingRequest) (models.BookingRequest, error) {
	ref := strings.TrimSpace(req.FacilityID)
	if ref == "" {
		return models.BookingRequest{}, invalid("facilityId", "is required")
	}
	// Shape checks that need no lookup run first.
	if req.PayerType == models.PayerMember && !ValidMembershipNumber(req.PayerMembershipNumber) {
		return models.BookingRequest{}, invalid("payerMembershipNumber", "must match QD-NNNN")
	}
	start, err := utils.ClockMinutes(req.StartTime)
	if err != nil {
		return models.BookingRequest{}, invalid("startTime", err.Error())
	}
	end, err := utils.ClockMinutes(req.EndTime)
	if err != nil {
		return models.BookingRequest{}, invalid("endTime", err.Error())
	}
	duration := req.DurationMinutes
	if duration == 0 {
		duration = end - start
	}

	f, err := s.Catalog.FindFacility(ctx, ref)
	if err != nil {
		return models.BookingRequest{}, notFound(err, "facility", ref)
	}
	if !f.Active {
		return models.BookingRequest{}, invalid("facilityId", fmt.Sprintf("facility %s is not taking bookings", f.Slug))
	}

	base := HourlyBasePrice(f.HourlyRate, duration)
	if req.BasePrice != nil && *req.BasePrice != base {
		return models.BookingRequest{}, invalid("basePrice", fmt.Sprintf("does not match the facility rate (expected %d)", base))
	}

	lines, err := s.resolveAddOns(ctx, f.ID, req.AddOns)
	if err != nil {
		return models.BookingRequest{}, err
	}

	return models.BookingRequest{
		FacilityID:            f.ID,
		ResourceCount:         f.ResourceCount,
		ResourceID:            req.ResourceID,
		Date:                  req.Date,
		StartTime:             req.StartTime,
		EndTime:               req.EndTime,
		DurationMinutes:       duration,
		PaymentMethod:         req.PaymentMethod,
		PayerType:             req.PayerType,
		PayerMembershipNumber: req.PayerMembershipNumber,
		BasePrice:             base,
		AddOns:                lines,
	}, nil
}

func (s *Service) resolveAddOns(ctx context.Context, facilityID string, requested []models.AddOnRequest) ([]models.AddOnLine, error) {
	if len(requested) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, r := range requested {
		if r.ID == "" {
			return nil, invalid("addOns", "id is required")
		}
		if r.Quantity < 0 {
			return nil, invalid("addOns", fmt.Sprintf("add-on %q has a negative quantity", r.ID))
		}
		if seen[r.ID] {
			return nil, invalid("addOns", fmt.Sprintf("add-on %q listed twice", r.ID))
		}
		seen[r.ID] = true
		ids = append(ids, r.ID)
	}

	available, err := s.Catalog.GetAddOns(ctx, facilityID, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup add-ons: %w", err)
	}
	byID := make(map[string]models.AddOn, len(available))
	for _, a := range available {
		byID[a.ID] = a
	}

	lines := make([]models.AddOnLine, 0, len(requested))
	for _, r := range requested {
		a, ok := byID[r.ID]
		if !ok {
			return nil, invalid("addOns", fmt.Sprintf("add-on %q is not offered for this facility", r.ID))
		}
		lines = append(lines, models.AddOnLine{ID: a.ID, Name: a.Name, UnitPrice: a.UnitPrice, Quantity: r.Quantity})
	}
	return lines, nil
}

// FacilityAvailability answers an availability query addressed by facility slug or id.
func (s *Service) FacilityAvailability(ctx context.Context, facilityRef string, resourceID int, date, startTime, endTime string) (*models.AvailabilityResponse, error) {
	f, err := s.Catalog.FindFacility(ctx, facilityRef)
	if err != nil {
		return nil, notFound(err, "facility", facilityRef)
	}
	if resourceID < 1 || resourceID > f.ResourceCount {
		return nil, invalid("resourceId", fmt.Sprintf("must be between 1 and %d", f.ResourceCount))
	}
	taken, err := s.CheckAvailability(ctx, f.ID, resourceID, date, startTime, endTime)
	if err != nil {
		return nil, err
	}
	return &models.AvailabilityResponse{
		FacilityID: f.ID,
		ResourceID: resourceID,
		Date:       date,
		StartTime:  startTime,
		EndTime:    endTime,
		Available:  !taken,
	}, nil
}
