package booking_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"quarterdeck-booking/internal/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) FindOverlapping(ctx context.Context, facilityID string, resourceID int, date string, startMinute, endMinute int) ([]models.Booking, error) {
	args := m.Called(ctx, facilityID, resourceID, date, startMinute, endMinute)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *MockStore) InsertBooking(ctx context.Context, b *models.Booking, events ...*models.OutboxEvent) error {
	args := m.Called(ctx, b, events)
	return args.Error(0)
}

func (m *MockStore) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockStore) UpdateStatus(ctx context.Context, id string, change models.StatusChange, events ...*models.OutboxEvent) (*models.Booking, error) {
	args := m.Called(ctx, id, change, events)
	if fn, ok := args.Get(0).(func(context.Context, string, models.StatusChange, ...*models.OutboxEvent) *models.Booking); ok {
		return fn(ctx, id, change, events...), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockStore) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) FindFacility(ctx context.Context, ref string) (*models.Facility, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Facility), args.Error(1)
}

func (m *MockCatalog) GetAddOns(ctx context.Context, facilityID string, ids []string) ([]models.AddOn, error) {
	args := m.Called(ctx, facilityID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AddOn), args.Error(1)
}

type MockMembers struct {
	mock.Mock
}

func (m *MockMembers) GetMembershipByNumber(ctx context.Context, number string) (*models.Membership, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Membership), args.Error(1)
}

func (m *MockMembers) GetTierRule(ctx context.Context, tier string) (*models.TierRule, error) {
	args := m.Called(ctx, tier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TierRule), args.Error(1)
}

type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) HoldSlot(ctx context.Context, key, owner string) (bool, error) {
	args := m.Called(ctx, key, owner)
	return args.Bool(0), args.Error(1)
}

func (m *MockLocker) ReleaseSlot(ctx context.Context, key, owner string) error {
	args := m.Called(ctx, key, owner)
	return args.Error(0)
}
