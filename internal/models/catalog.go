package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Facility is a bookable venue category with ResourceCount interchangeable units.
type Facility struct {
	bun.BaseModel `bun:"table:facilities"`

	ID            string    `bun:"id,pk" json:"id"`
	Slug          string    `bun:"slug,unique,notnull" json:"slug"`
	Name          string    `bun:"name,notnull" json:"name"`
	Description   string    `bun:"description,nullzero" json:"description,omitempty"`
	HourlyRate    int64     `bun:"hourly_rate,notnull" json:"hourlyRate"`
	ResourceCount int       `bun:"resource_count,notnull" json:"resourceCount"`
	Active        bool      `bun:"active,notnull" json:"active"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

type AddOn struct {
	bun.BaseModel `bun:"table:add_ons"`

	ID         string `bun:"id,pk" json:"id"`
	FacilityID string `bun:"facility_id,nullzero" json:"facilityId,omitempty"`
	Name       string `bun:"name,notnull" json:"name"`
	UnitPrice  int64  `bun:"unit_price,notnull" json:"unitPrice"`
	Active     bool   `bun:"active,notnull" json:"active"`
}

type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "ACTIVE"
	MembershipSuspended MembershipStatus = "SUSPENDED"
	MembershipExpired   MembershipStatus = "EXPIRED"
)

type Membership struct {
	bun.BaseModel `bun:"table:memberships"`

	Number     string           `bun:"number,pk" json:"number"`
	HolderName string           `bun:"holder_name,notnull" json:"holderName"`
	UserID     string           `bun:"user_id,nullzero" json:"userId,omitempty"` // account subject allowed to book with it
	Email      string           `bun:"email,nullzero" json:"email,omitempty"`
	Tier       string           `bun:"tier,notnull" json:"tier"`
	Status     MembershipStatus `bun:"status,notnull" json:"status"`
	ValidUntil time.Time        `bun:"valid_until,nullzero" json:"validUntil,omitempty"`
}

// TierRule is the discount and booking-window entitlement of a membership tier.
type TierRule struct {
	bun.BaseModel `bun:"table:tier_rules"`

	Tier                string `bun:"tier,pk" json:"tier"`
	DiscountPercent     int    `bun:"discount_percent,notnull" json:"discountPercent"`
	AdvanceBookingDays  int    `bun:"advance_booking_days,notnull" json:"advanceBookingDays"`
	GuestPassesIncluded int    `bun:"guest_passes_included,notnull" json:"guestPassesIncluded"`
}
