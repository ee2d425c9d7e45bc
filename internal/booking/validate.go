package booking

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"quarterdeck-booking/internal/models"
	"quarterdeck-booking/internal/utils"
)

var membershipNumberPattern = regexp.MustCompile(`^QD-\d{4}$`)

// ValidMembershipNumber reports whether n has the QD-NNNN shape.
func ValidMembershipNumber(n string) bool {
	return membershipNumberPattern.MatchString(n)
}

// window is a parsed same-day [start, end) interval in minutes after midnight.
type window struct {
	day   time.Time
	start int
	end   int
}

func (w window) overlaps(start, end int) bool {
	return start < w.end && end > w.start
}

func parseWindow(date, startTime, endTime string, loc *time.Location) (window, error) {
	day, err := utils.ParseDate(date, loc)
	if err != nil {
		return window{}, invalid("date", err.Error())
	}
	start, err := utils.ClockMinutes(startTime)
	if err != nil {
		return window{}, invalid("startTime", err.Error())
	}
	end, err := utils.ClockMinutes(endTime)
	if err != nil {
		return window{}, invalid("endTime", err.Error())
	}
	if end <= start {
		return window{}, invalid("endTime", "must be after startTime on the same day")
	}
	return window{day: day, start: start, end: end}, nil
}

// validateRequest checks every structural field of a resolved request. It touches no
// collaborator, so malformed requests never reach persistence.
func validateRequest(req models.BookingRequest, loc *time.Location) (window, error) {
	if strings.TrimSpace(req.FacilityID) == "" {
		return window{}, invalid("facilityId", "is required")
	}
	if req.ResourceCount < 1 {
		return window{}, invalid("facilityId", "facility has no bookable resources")
	}
	if req.ResourceID < 1 || req.ResourceID > req.ResourceCount {
		return window{}, invalid("resourceId", fmt.Sprintf("must be between 1 and %d", req.ResourceCount))
	}

	w, err := parseWindow(req.Date, req.StartTime, req.EndTime, loc)
	if err != nil {
		return window{}, err
	}
	if req.DurationMinutes <= 0 {
		return window{}, invalid("durationMinutes", "must be positive")
	}
	if req.DurationMinutes != w.end-w.start {
		return window{}, invalid("durationMinutes", fmt.Sprintf("must equal the window length (%d)", w.end-w.start))
	}

	switch req.PaymentMethod {
	case models.PaymentCash, models.PaymentBankTransfer:
	case "":
		return window{}, invalid("paymentMethod", "is required")
	default:
		return window{}, invalid("paymentMethod", fmt.Sprintf("unsupported method %q", req.PaymentMethod))
	}

	switch req.PayerType {
	case models.PayerSelf:
	case models.PayerMember:
		if !ValidMembershipNumber(req.PayerMembershipNumber) {
			return window{}, invalid("payerMembershipNumber", "must match QD-NNNN")
		}
	case "":
		return window{}, invalid("payerType", "is required")
	default:
		return window{}, invalid("payerType", fmt.Sprintf("unsupported payer type %q", req.PayerType))
	}

	if req.BasePrice < 0 {
		return window{}, invalid("basePrice", "must not be negative")
	}
	for _, a := range req.AddOns {
		if a.ID == "" {
			return window{}, invalid("addOns", "id is required")
		}
		if a.UnitPrice < 0 || a.Quantity < 0 {
			return window{}, invalid("addOns", fmt.Sprintf("add-on %q has a negative price or quantity", a.ID))
		}
	}
	return w, nil
}

// checkAdvanceWindow rejects slots that already started or lie beyond the booking horizon.
func checkAdvanceWindow(w window, now time.Time, advanceDays int) error {
	now = now.In(w.day.Location())
	ahead := utils.DayIndex(now, w.day)
	if ahead < 0 {
		return invalid("date", "is in the past")
	}
	if ahead == 0 && w.start < now.Hour()*60+now.Minute() {
		return invalid("startTime", "has already passed")
	}
	if ahead > advanceDays {
		return invalid("date", fmt.Sprintf("can be booked at most %d days ahead", advanceDays))
	}
	return nil
}
