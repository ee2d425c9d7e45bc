package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentPending             PaymentStatus = "PENDING_PAYMENT"
	PaymentPendingVerification PaymentStatus = "PENDING_VERIFICATION"
	PaymentVerified            PaymentStatus = "VERIFIED"
	PaymentRejected            PaymentStatus = "REJECTED"
)

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

type PayerType string

const (
	PayerSelf   PayerType = "SELF"
	PayerMember PayerType = "MEMBER"
)

// Booking is one resource unit of a facility reserved for one time window.
// Times are facility-local wall clock; the minute columns mirror them for range checks.
type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID                    string        `bun:"id,pk" json:"id"`
	FacilityID            string        `bun:"facility_id,notnull" json:"facilityId"`
	ResourceID            int           `bun:"resource_id,notnull" json:"resourceId"`
	Date                  string        `bun:"booking_date,notnull" json:"date"`
	StartTime             string        `bun:"start_time,notnull" json:"startTime"`
	EndTime               string        `bun:"end_time,notnull" json:"endTime"`
	StartMinute           int           `bun:"start_minute,notnull" json:"-"`
	EndMinute             int           `bun:"end_minute,notnull" json:"-"`
	DurationMinutes       int           `bun:"duration_minutes,notnull" json:"durationMinutes"`
	Status                BookingStatus `bun:"status,notnull" json:"status"`
	PaymentStatus         PaymentStatus `bun:"payment_status,notnull" json:"paymentStatus"`
	PaymentMethod         PaymentMethod `bun:"payment_method,notnull" json:"paymentMethod"`
	PaymentReference      string        `bun:"payment_reference,nullzero" json:"paymentReference,omitempty"`
	PayerType             PayerType     `bun:"payer_type,notnull" json:"payerType"`
	PayerMembershipNumber string        `bun:"payer_membership_number,nullzero" json:"payerMembershipNumber,omitempty"`
	UserID                string        `bun:"user_id,nullzero" json:"userId,omitempty"`
	BasePrice             int64         `bun:"base_price,notnull" json:"basePrice"`
	Discount              int64         `bun:"discount,notnull" json:"discount"`
	AddOnTotal            int64         `bun:"add_on_total,notnull" json:"addOnTotal"`
	TotalPrice            int64         `bun:"total_price,notnull" json:"totalPrice"`
	AddOns                []BookedAddOn `bun:"add_ons,type:jsonb" json:"addOns"`
	StatusReason          string        `bun:"status_reason,nullzero" json:"statusReason,omitempty"`
	CreatedAt             time.Time     `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt             time.Time     `bun:"updated_at,notnull" json:"updatedAt"`
	ConfirmedAt           time.Time     `bun:"confirmed_at,nullzero" json:"confirmedAt,omitempty"`
	CancelledAt           time.Time     `bun:"cancelled_at,nullzero" json:"cancelledAt,omitempty"`
}

// BookedAddOn is the priced snapshot of an add-on at booking time.
type BookedAddOn struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int64  `json:"quantity"`
}

// AddOnLine is a resolved add-on fed into pricing.
type AddOnLine struct {
	ID        string
	Name      string
	UnitPrice int64
	Quantity  int64
}

type AddOnRequest struct {
	ID       string `json:"id"`
	Quantity int64  `json:"quantity"`
}

// CreateBookingRequest is the public request body for placing a booking.
// FacilityID accepts either the facility id or its slug.
type CreateBookingRequest struct {
	FacilityID            string         `json:"facilityId"`
	ResourceID            int            `json:"resourceId"`
	Date                  string         `json:"date"`
	StartTime             string         `json:"startTime"`
	EndTime               string         `json:"endTime"`
	DurationMinutes       int            `json:"durationMinutes"`
	PaymentMethod         PaymentMethod  `json:"paymentMethod"`
	PayerType             PayerType      `json:"payerType"`
	PayerMembershipNumber string         `json:"payerMembershipNumber,omitempty"`
	BasePrice             *int64         `json:"basePrice,omitempty"`
	AddOns                []AddOnRequest `json:"addOns,omitempty"`
}

// BookingRequest is the fully resolved input of the booking engine.
type BookingRequest struct {
	FacilityID            string
	ResourceCount         int
	ResourceID            int
	Date                  string
	StartTime             string
	EndTime               string
	DurationMinutes       int
	PaymentMethod         PaymentMethod
	PayerType             PayerType
	PayerMembershipNumber string
	BasePrice             int64
	AddOns                []AddOnLine
	UserID                string
}

// StatusChange is a compare-and-set update of a booking's state.
type StatusChange struct {
	FromStatus       BookingStatus
	FromPayment      PaymentStatus
	Status           BookingStatus
	PaymentStatus    PaymentStatus
	PaymentReference string
	Reason           string
	At               time.Time
}

type BookingFilter struct {
	FacilityID string
	Date       string
	UserID     string
	Status     BookingStatus
	Limit      int
	Offset     int
}

// ResourceSchedule lists the booked windows of one resource on one day.
type ResourceSchedule struct {
	ResourceID int            `json:"resourceId"`
	Booked     []BookedWindow `json:"booked"`
}

type BookedWindow struct {
	BookingID string        `json:"bookingId"`
	StartTime string        `json:"startTime"`
	EndTime   string        `json:"endTime"`
	Status    BookingStatus `json:"status"`
}

type AvailabilityResponse struct {
	FacilityID string `json:"facilityId"`
	ResourceID int    `json:"resourceId"`
	Date       string `json:"date"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	Available  bool   `json:"available"`
}

type PriceBreakdown struct {
	BasePrice  int64 `json:"basePrice"`
	Discount   int64 `json:"discount"`
	AddOnTotal int64 `json:"addOnTotal"`
	TotalPrice int64 `json:"totalPrice"`
}

// Apply copies the target state of c onto b, stamping the lifecycle timestamps.
func (c StatusChange) Apply(b *Booking) {
	if c.Status != b.Status {
		switch c.Status {
		case BookingConfirmed:
			b.ConfirmedAt = c.At
		case BookingCancelled:
			b.CancelledAt = c.At
		}
	}
	b.Status = c.Status
	b.PaymentStatus = c.PaymentStatus
	if c.PaymentReference != "" {
		b.PaymentReference = c.PaymentReference
	}
	if c.Reason != "" {
		b.StatusReason = c.Reason
	}
	b.UpdatedAt = c.At
}
