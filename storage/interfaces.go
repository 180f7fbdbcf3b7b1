package storage

import (
	"context"
	"time"

	"rental-digest/models"
)

// Store is the contract every persistence backend must satisfy. InsertIfAbsent
// must be a single atomic conditional write keyed by Listing.ID.
type Store interface {
	InsertIfAbsent(ctx context.Context, l *models.Listing) (models.InsertOutcome, error)
	ScanSince(ctx context.Context, cutoff time.Time) ([]*models.Listing, error)
	Ping(ctx context.Context) error
	Close() error
}

// RawListingWriter is the interface for persisting unprocessed scraped data.
type RawListingWriter interface {
	WriteRaw(listings []*models.RawListing) error
	Close() error
}
