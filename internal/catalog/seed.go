package catalog

import (
	"time"

	"quarterdeck-booking/internal/models"
)

// SeedData is the reference data a fresh deployment starts with.
type SeedData struct {
	Facilities  []models.Facility
	AddOns      []models.AddOn
	Tiers       []models.TierRule
	Memberships []models.Membership
}

func DefaultSeed(now time.Time) SeedData {
	now = now.UTC().Truncate(time.Second)
	nextYear := now.AddDate(1, 0, 0)

	return SeedData{
		Facilities: []models.Facility{
			{ID: "fac-padel", Slug: "padel-tennis", Name: "Padel Tennis", Description: "Four glass-walled padel courts", HourlyRate: 3200, ResourceCount: 4, Active: true, CreatedAt: now},
			{ID: "fac-pickleball", Slug: "pickleball", Name: "Pickleball", Description: "Indoor pickleball courts", HourlyRate: 2000, ResourceCount: 2, Active: true, CreatedAt: now},
			{ID: "fac-golf", Slug: "golf-simulator", Name: "Golf Simulator", Description: "Launch-monitor simulator bay", HourlyRate: 4500, ResourceCount: 1, Active: true, CreatedAt: now},
		},
		AddOns: []models.AddOn{
			{ID: "addon-racket", FacilityID: "fac-padel", Name: "Padel racket hire", UnitPrice: 300, Active: true},
			{ID: "addon-balls", FacilityID: "fac-padel", Name: "Padel ball tube", UnitPrice: 450, Active: true},
			{ID: "addon-paddle", FacilityID: "fac-pickleball", Name: "Pickleball paddle hire", UnitPrice: 250, Active: true},
			{ID: "addon-clubs", FacilityID: "fac-golf", Name: "Club set hire", UnitPrice: 800, Active: true},
			{ID: "addon-towel", Name: "Towel", UnitPrice: 150, Active: true},
		},
		Tiers: []models.TierRule{
			{Tier: "STANDARD", DiscountPercent: 0, AdvanceBookingDays: 7, GuestPassesIncluded: 0},
			{Tier: "SILVER", DiscountPercent: 10, AdvanceBookingDays: 10, GuestPassesIncluded: 1},
			{Tier: "GOLD", DiscountPercent: 20, AdvanceBookingDays: 14, GuestPassesIncluded: 2},
			{Tier: "PLATINUM", DiscountPercent: 30, AdvanceBookingDays: 21, GuestPassesIncluded: 4},
		},
		Memberships: []models.Membership{
			{Number: "QD-0001", UserID: "member-alex", HolderName: "Alex Morgan", Email: "alex@example.com", Tier: "GOLD", Status: models.MembershipActive, ValidUntil: nextYear},
			{Number: "QD-0002", UserID: "member-sam", HolderName: "Sam Patel", Email: "sam@example.com", Tier: "SILVER", Status: models.MembershipActive, ValidUntil: nextYear},
			{Number: "QD-0003", UserID: "member-jordan", HolderName: "Jordan Lee", Tier: "PLATINUM", Status: models.MembershipSuspended, ValidUntil: nextYear},
			{Number: "QD-0004", UserID: "member-casey", HolderName: "Casey Brown", Tier: "STANDARD", Status: models.MembershipExpired, ValidUntil: now.AddDate(0, -1, 0)},
		},
	}
}
