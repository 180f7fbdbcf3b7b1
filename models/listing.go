package models

import "time"

// AreaUnavailable is stored when a provider does not expose the floor area.
const AreaUnavailable = "-"

// TimestampLayout is the fixed-width UTC ISO-8601 layout used wherever
// timestamps are persisted as strings, so lexical and chronological order agree.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// RawListing holds unprocessed card data exactly as a provider scraped it.
// Every field is text; the normalizer is responsible for imposing types.
type RawListing struct {
	Source                string
	RequestedNeighborhood string
	Neighborhood          string
	Address               string
	Price                 string
	Area                  string
	Rooms                 string
	ParkingSpaces         string
	Link                  string
	ScrapedAt             time.Time
}

// Listing is the canonical, validated record stored exactly once per ID.
type Listing struct {
	ID            string
	Source        string
	Neighborhood  string
	Address       string
	Price         float64
	Area          string
	Rooms         int
	ParkingSpaces int
	DetailURL     string
	FirstSeenAt   time.Time
	LastUpdatedAt time.Time
}

// FilterCriteria describes what a search is looking for. Zero-valued bounds
// are unbounded.
type FilterCriteria struct {
	City             string   `yaml:"city"`
	PropertyType     string   `yaml:"property_type"`
	Neighborhoods    []string `yaml:"neighborhoods"`
	MaxPrice         float64  `yaml:"max_price"`
	MinArea          float64  `yaml:"min_area"`
	MinRooms         int      `yaml:"min_rooms"`
	CondoFeeIncluded bool     `yaml:"condo_fee_included"`
}

// InsertOutcome is the non-error result of a conditional insert.
type InsertOutcome int

const (
	Inserted InsertOutcome = iota + 1
	AlreadyExists
)

func (o InsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// FailedInsert pairs a listing with the persistence error it produced.
type FailedInsert struct {
	Listing *Listing
	Err     error
}

// IngestResult summarises one batch pushed through the store gateway.
type IngestResult struct {
	Inserted   int
	Duplicates int
	Errors     []FailedInsert
}

// RunSummary is what an ingest run reports back to its caller.
type RunSummary struct {
	RunID            string
	Fetched          int
	Dropped          int
	Inserted         int
	Duplicates       int
	Errors           int
	ProviderFailures int
}

// Report is a rendered digest, ready for a notification sink.
type Report struct {
	Subject     string
	GeneratedAt time.Time
	Window      time.Duration
	Listings    []*Listing
	Text        string
	HTML        string
}

// Count returns the number of listings in the digest.
func (r *Report) Count() int {
	return len(r.Listings)
}

// ReportSummary is what a report run reports back to its caller.
type ReportSummary struct {
	RunID     string
	Listings  int
	Delivered bool
}
