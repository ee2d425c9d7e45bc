package booking

import "quarterdeck-booking/internal/models"

// ComputePrice applies a pre-resolved discount percent to the base price only and
// adds the add-on lines on top. Integer division truncates.
func ComputePrice(basePrice int64, discountPercent int, addOns []models.AddOnLine) models.PriceBreakdown {
	discount := basePrice * int64(discountPercent) / 100

	var addOnTotal int64
	for _, a := range addOns {
		addOnTotal += a.UnitPrice * a.Quantity
	}

	net := basePrice - discount
	if net < 0 {
		net = 0
	}

	return models.PriceBreakdown{
		BasePrice:  basePrice,
		Discount:   discount,
		AddOnTotal: addOnTotal,
		TotalPrice: net + addOnTotal,
	}
}

// HourlyBasePrice prices a window of durationMinutes at hourlyRate, truncated.
func HourlyBasePrice(hourlyRate int64, durationMinutes int) int64 {
	return hourlyRate * int64(durationMinutes) / 60
}
