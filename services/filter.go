package services

import "rental-digest/models"

// Matches reports whether a listing satisfies the numeric bounds of c.
// Bounds are inclusive and a zero bound is ignored. An area that cannot be
// parsed never causes rejection. Locality is checked earlier and not here.
func Matches(l *models.Listing, c models.FilterCriteria) bool {
	if c.MaxPrice > 0 && l.Price > c.MaxPrice {
		return false
	}
	if c.MinRooms > 0 && l.Rooms < c.MinRooms {
		return false
	}
	if c.MinArea > 0 {
		if area, ok := AreaValue(l.Area); ok && area < c.MinArea {
			return false
		}
	}
	return true
}
