package goldapi

import "gold-monitor/internal/models"

// resolveDate picks the point to answer a historical request for target:
// the exact date, else the latest date on or before target, else the oldest date.
// Order of dates does not matter. Returns -1 only for an empty slice.
func resolveDate(dates []models.Date, target models.Date) int {
	exact, onOrBefore, oldest := -1, -1, -1
	for i, d := range dates {
		if d.Equal(target) {
			exact = i
		}
		if !target.Before(d) && (onOrBefore < 0 || dates[onOrBefore].Before(d)) {
			onOrBefore = i
		}
		if oldest < 0 || d.Before(dates[oldest]) {
			oldest = i
		}
	}
	switch {
	case exact >= 0:
		return exact
	case onOrBefore >= 0:
		return onOrBefore
	default:
		return oldest
	}
}
