package services

import (
	"strings"

	"rental-digest/models"
	"rental-digest/utils"
)

// LocalityValidator drops listings whose address does not mention both the
// searched neighborhood and the city. Providers mix suggested and sponsored
// cards from other areas into result pages.
type LocalityValidator struct{}

// NewLocalityValidator returns a LocalityValidator.
func NewLocalityValidator() *LocalityValidator {
	return &LocalityValidator{}
}

// Validate compares slugs by substring containment. An empty slug argument
// places no constraint on that dimension.
func (v *LocalityValidator) Validate(l *models.Listing, neighborhoodSlug, citySlug string) bool {
	addr := utils.Slugify(l.Address)
	if addr == "" {
		return false
	}
	return strings.Contains(addr, neighborhoodSlug) && strings.Contains(addr, citySlug)
}
