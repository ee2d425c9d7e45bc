package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"quarterdeck-booking/internal/config"
	"quarterdeck-booking/internal/models"
	"quarterdeck-booking/internal/utils"
)

// Store persists bookings. InsertBooking and UpdateStatus write the given outbox
// events in the same transaction as the row change.
type Store interface {
	FindOverlapping(ctx context.Context, facilityID string, resourceID int, date string, startMinute, endMinute int) ([]models.Booking, error)
	InsertBooking(ctx context.Context, b *models.Booking, events ...*models.OutboxEvent) error
	GetBookingByID(ctx context.Context, id string) (*models.Booking, error)
	UpdateStatus(ctx context.Context, id string, change models.StatusChange, events ...*models.OutboxEvent) (*models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
}

type FacilityCatalog interface {
	FindFacility(ctx context.Context, ref string) (*models.Facility, error)
	GetAddOns(ctx context.Context, facilityID string, ids []string) ([]models.AddOn, error)
}

type MembershipRegistry interface {
	GetMembershipByNumber(ctx context.Context, number string) (*models.Membership, error)
	GetTierRule(ctx context.Context, tier string) (*models.TierRule, error)
}

// SlotLocker serialises concurrent requests for one resource-day across instances.
// A false return means another request holds the slot.
type SlotLocker interface {
	HoldSlot(ctx context.Context, key, owner string) (bool, error)
	ReleaseSlot(ctx context.Context, key, owner string) error
}

type Options struct {
	Location           *time.Location
	DefaultAdvanceDays int
	Topics             config.TopicConfig
	Now                func() time.Time
}

// Service is the booking engine. It performs no logging and no retries; callers
// map its typed errors.
type Service struct {
	Store   Store
	Catalog FacilityCatalog
	Members MembershipRegistry
	Locker  SlotLocker
	opts    Options
}

func NewService(store Store, catalog FacilityCatalog, members MembershipRegistry, locker SlotLocker, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{Store: store, Catalog: catalog, Members: members, Locker: locker, opts: opts}
}

func (s *Service) now() time.Time {
	return s.opts.Now()
}

// CheckAvailability reports whether the window is already taken: true when a
// non-cancelled booking on the same facility, resource and date intersects
// [startTime, endTime). Back-to-back windows do not intersect.
func (s *Service) CheckAvailability(ctx context.Context, facilityID string, resourceID int, date, startTime, endTime string) (bool, error) {
	w, err := parseWindow(date, startTime, endTime, s.opts.Location)
	if err != nil {
		return false, err
	}
	return s.slotTaken(ctx, facilityID, resourceID, date, w)
}

func (s *Service) slotTaken(ctx context.Context, facilityID string, resourceID int, date string, w window) (bool, error) {
	existing, err := s.Store.FindOverlapping(ctx, facilityID, resourceID, date, w.start, w.end)
	if err != nil {
		return false, fmt.Errorf("find overlapping bookings: %w", err)
	}
	for _, b := range existing {
		if b.Status != models.BookingCancelled && w.overlaps(b.StartMinute, b.EndMinute) {
			return true, nil
		}
	}
	return false, nil
}

// errMembershipUnusable covers unknown, inactive and other people's memberships
// alike, so the response does not reveal which numbers exist.
var errMembershipUnusable = invalid("payerMembershipNumber", "membership cannot be used by this account")

// discountFor resolves the payer's discount percent and advance window. Members
// must exist, be ACTIVE and belong to the requesting user.
func (s *Service) discountFor(ctx context.Context, req models.BookingRequest) (int, int, error) {
	if req.PayerType != models.PayerMember {
		return 0, s.opts.DefaultAdvanceDays, nil
	}

	m, err := s.Members.GetMembershipByNumber(ctx, req.PayerMembershipNumber)
	if errors.Is(err, models.ErrRecordNotFound) {
		return 0, 0, errMembershipUnusable
	}
	if err != nil {
		return 0, 0, fmt.Errorf("lookup membership %s: %w", req.PayerMembershipNumber, err)
	}
	if m.Status != models.MembershipActive || m.UserID == "" || m.UserID != req.UserID {
		return 0, 0, errMembershipUnusable
	}

	rule, err := s.Members.GetTierRule(ctx, m.Tier)
	if err != nil {
		return 0, 0, fmt.Errorf("lookup tier rule %q: %w", m.Tier, err)
	}
	if rule.DiscountPercent < 0 || rule.DiscountPercent > 100 {
		return 0, 0, fmt.Errorf("tier %q has discount %d outside 0..100", m.Tier, rule.DiscountPercent)
	}
	return rule.DiscountPercent, rule.AdvanceBookingDays, nil
}

// CreateBooking validates, checks the slot, prices and persists a PENDING booking
// together with its booking-created event. A constraint violation raised by the
// store is reported as the same ConflictError as the pre-check.
func (s *Service) CreateBooking(ctx context.Context, req models.BookingRequest) (*models.Booking, error) {
	w, err := validateRequest(req, s.opts.Location)
	if err != nil {
		return nil, err
	}
	if req.PayerType == models.PayerSelf {
		req.PayerMembershipNumber = ""
	}

	discountPercent, advanceDays, err := s.discountFor(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := checkAdvanceWindow(w, s.now(), advanceDays); err != nil {
		return nil, err
	}

	if s.Locker != nil {
		key := fmt.Sprintf("%s:%d:%s", req.FacilityID, req.ResourceID, req.Date)
		owner := uuid.NewString()
		// The hold covers the whole resource-day, so a timeout says nothing about
		// this window. Timeouts and locker outages fall through to the overlap
		// check and the store constraint.
		held, err := s.Locker.HoldSlot(ctx, key, owner)
		if err == nil && held {
			defer s.Locker.ReleaseSlot(context.WithoutCancel(ctx), key, owner)
		}
	}

	taken, err := s.slotTaken(ctx, req.FacilityID, req.ResourceID, req.Date, w)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errSlotBooked
	}

	price := ComputePrice(req.BasePrice, discountPercent, req.AddOns)
	now := s.now().UTC()

	b := &models.Booking{
		ID:                    uuid.NewString(),
		FacilityID:            req.FacilityID,
		ResourceID:            req.ResourceID,
		Date:                  req.Date,
		StartTime:             req.StartTime,
		EndTime:               req.EndTime,
		StartMinute:           w.start,
		EndMinute:             w.end,
		DurationMinutes:       req.DurationMinutes,
		Status:                models.BookingPending,
		PaymentStatus:         models.PaymentPending,
		PaymentMethod:         req.PaymentMethod,
		PayerType:             req.PayerType,
		PayerMembershipNumber: req.PayerMembershipNumber,
		UserID:                req.UserID,
		BasePrice:             price.BasePrice,
		Discount:              price.Discount,
		AddOnTotal:            price.AddOnTotal,
		TotalPrice:            price.TotalPrice,
		AddOns:                bookedAddOns(req.AddOns),
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	event, err := s.newEvent(models.EventBookingCreated, *b, "")
	if err != nil {
		return nil, err
	}
	if err := s.Store.InsertBooking(ctx, b, event); err != nil {
		if errors.Is(err, models.ErrSlotTaken) {
			return nil, errSlotBooked
		}
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	return b, nil
}

func bookedAddOns(lines []models.AddOnLine) []models.BookedAddOn {
	out := make([]models.BookedAddOn, 0, len(lines))
	for _, l := range lines {
		out = append(out, models.BookedAddOn{ID: l.ID, Name: l.Name, UnitPrice: l.UnitPrice, Quantity: l.Quantity})
	}
	return out
}

func (s *Service) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	b, err := s.Store.GetBookingByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "booking", id)
	}
	return b, nil
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func (s *Service) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	if filter.Date != "" {
		if _, err := utils.ParseDate(filter.Date, s.opts.Location); err != nil {
			return nil, invalid("date", err.Error())
		}
	}
	switch filter.Status {
	case "", models.BookingPending, models.BookingConfirmed, models.BookingCancelled:
	default:
		return nil, invalid("status", fmt.Sprintf("unknown status %q", filter.Status))
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.Store.ListBookings(ctx, filter)
}

// DaySchedule lists the booked windows of every resource of a facility on one day.
func (s *Service) DaySchedule(ctx context.Context, facilityRef, date string) ([]models.ResourceSchedule, error) {
	if _, err := utils.ParseDate(date, s.opts.Location); err != nil {
		return nil, invalid("date", err.Error())
	}
	f, err := s.Catalog.FindFacility(ctx, facilityRef)
	if err != nil {
		return nil, notFound(err, "facility", facilityRef)
	}

	booked, err := s.Store.ListBookings(ctx, models.BookingFilter{FacilityID: f.ID, Date: date, Limit: maxListLimit * f.ResourceCount})
	if err != nil {
		return nil, fmt.Errorf("list bookings for schedule: %w", err)
	}

	schedule := make([]models.ResourceSchedule, f.ResourceCount)
	for i := range schedule {
		schedule[i] = models.ResourceSchedule{ResourceID: i + 1, Booked: []models.BookedWindow{}}
	}
	sort.Slice(booked, func(i, j int) bool { return booked[i].StartMinute < booked[j].StartMinute })
	for _, b := range booked {
		if b.Status == models.BookingCancelled || b.ResourceID < 1 || b.ResourceID > f.ResourceCount {
			continue
		}
		r := &schedule[b.ResourceID-1]
		r.Booked = append(r.Booked, models.BookedWindow{
			BookingID: b.ID,
			StartTime: b.StartTime,
			EndTime:   b.EndTime,
			Status:    b.Status,
		})
	}
	return schedule, nil
}
