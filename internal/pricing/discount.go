// Package pricing computes per-seat and total ticket prices from a screen's
// base price and flat-amount discounts.
package pricing

import (
	"strings"
	"time"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// DefaultAccessibilityMarker is the name fragment identifying the discount
// reserved for accessible seats.
const DefaultAccessibilityMarker = "PMR"

// Applicable reports whether d applies at now: it must be active and either
// recurrent or inside its [start, end] window.  A windowed discount with a
// missing bound never applies.
func Applicable(d model.Discount, now time.Time) bool {
	if !d.Active {
		return false
	}
	if d.Recurrent {
		return true
	}
	if d.StartDate == nil || d.EndDate == nil {
		return false
	}
	return !now.Before(*d.StartDate) && !now.After(*d.EndDate)
}

// ApplicableDiscounts filters all down to those applicable at now,
// preserving order.
func ApplicableDiscounts(all []model.Discount, now time.Time) []model.Discount {
	out := make([]model.Discount, 0, len(all))
	for _, d := range all {
		if Applicable(d, now) {
			out = append(out, d)
		}
	}
	return out
}

// isAccessibility matches the marker case-insensitively.
func isAccessibility(d model.Discount, marker string) bool {
	if marker == "" {
		return false
	}
	return strings.Contains(strings.ToUpper(d.Name), strings.ToUpper(marker))
}
