package services

import (
	"math"
	"net/url"
	"strings"
	"time"
	"unicode"

	"rental-digest/models"
	"rental-digest/utils"
)

// Normalizer transforms provider RawListings into canonical Listings.
type Normalizer struct {
	logger *utils.Logger
	now    func() time.Time
}

// NewNormalizer creates a Normalizer. A nil clock defaults to time.Now.
func NewNormalizer(logger *utils.Logger, now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{logger: logger, now: now}
}

// Normalize converts one raw record. Only structural problems (no source, no
// usable detail link) are errors; missing optional fields get defaults.
func (n *Normalizer) Normalize(raw *models.RawListing, requestedNeighborhood string) (*models.Listing, error) {
	source := normaliseText(raw.Source)
	if source == "" {
		return nil, &models.ValidationError{Source: "?", Field: "source", Reason: "is missing"}
	}

	id, err := canonicalLink(raw.Link)
	if err != nil {
		return nil, &models.ValidationError{Source: source, Field: "link", Reason: err.Error()}
	}

	neighborhood := normaliseText(raw.Neighborhood)
	if neighborhood == "" {
		neighborhood = normaliseText(requestedNeighborhood)
	}

	area := normaliseText(raw.Area)
	if area == "" {
		n.logger.Debug("[normalizer] %s: no area for %s, using placeholder", source, id)
		area = models.AreaUnavailable
	}

	ts := n.now().UTC()
	return &models.Listing{
		ID:            id,
		Source:        source,
		Neighborhood:  neighborhood,
		Address:       normaliseText(raw.Address),
		Price:         utils.ParseNumber(raw.Price),
		Area:          area,
		Rooms:         count(raw.Rooms),
		ParkingSpaces: count(raw.ParkingSpaces),
		DetailURL:     id,
		FirstSeenAt:   ts,
		LastUpdatedAt: ts,
	}, nil
}

type linkError string

func (e linkError) Error() string { return string(e) }

const (
	errLinkMissing     = linkError("is missing")
	errLinkNotAbsolute = linkError("is not an absolute http(s) URL")
)

// canonicalLink validates the detail URL and strips its fragment; the result
// doubles as the listing's natural key.
func canonicalLink(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errLinkMissing
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", errLinkNotAbsolute
	}
	u.Fragment = ""
	return u.String(), nil
}

// AreaValue parses a stored area string. ok is false for the placeholder or
// anything that does not yield a positive number.
func AreaValue(area string) (value float64, ok bool) {
	if area == "" || area == models.AreaUnavailable {
		return 0, false
	}
	v := utils.ParseNumber(area)
	return v, v > 0
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
// count parses a room or parking figure. Values that cannot be a count, such
// as a phone number scraped into the wrong slot, fall back to 0.
func count(raw string) int {
	v := utils.ParseNumber(raw)
	if math.IsNaN(v) || v < 0 || v > math.MaxInt32 {
		return 0
	}
	return int(v)
}

func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}
