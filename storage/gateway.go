package storage

import (
	"context"
	"time"

	"rental-digest/models"
	"rental-digest/utils"
)

// Gateway applies insert-only, at-most-once semantics on top of a Store and
// serves the reporting window query.
type Gateway struct {
	store   Store
	workers int
	logger  *utils.Logger
}

// NewGateway wraps store. workers > 1 lets Ingest issue conditional inserts
// concurrently; the store's atomic insert is the only coordination needed.
func NewGateway(store Store, workers int, logger *utils.Logger) *Gateway {
	if workers < 1 {
		workers = 1
	}
	return &Gateway{store: store, workers: workers, logger: logger}
}

// InsertIfAbsent stores l unless its ID is already present. Unexpected store
// failures come back as *models.PersistenceError.
func (g *Gateway) InsertIfAbsent(ctx context.Context, l *models.Listing) (models.InsertOutcome, error) {
	outcome, err := g.store.InsertIfAbsent(ctx, l)
	if err != nil {
		return 0, &models.PersistenceError{ListingID: l.ID, Err: err}
	}
	return outcome, nil
}

// Ingest attempts every listing independently; a failing item never stops
// the rest. The returned error is non-nil only when ctx was cancelled, in
// which case the result covers the items attempted before cancellation.
func (g *Gateway) Ingest(ctx context.Context, listings []*models.Listing) (models.IngestResult, error) {
	outcomes := make([]models.InsertOutcome, len(listings))
	errs := make([]error, len(listings))
	attempted := make([]bool, len(listings))

	if g.workers == 1 {
		for i, l := range listings {
			if ctx.Err() != nil {
				break
			}
			outcomes[i], errs[i] = g.InsertIfAbsent(ctx, l)
			attempted[i] = true
		}
	} else {
		pool := utils.NewWorkerPool(g.workers)
		for i, l := range listings {
			if ctx.Err() != nil {
				break
			}
			attempted[i] = true
			pool.Submit(func() {
				outcomes[i], errs[i] = g.InsertIfAbsent(ctx, l)
			})
		}
		pool.Wait()
	}

	var res models.IngestResult
	for i, l := range listings {
		if !attempted[i] {
			continue
		}
		if errs[i] != nil {
			g.logger.Error("[gateway] %v", errs[i])
			res.Errors = append(res.Errors, models.FailedInsert{Listing: l, Err: errs[i]})
			continue
		}
		switch outcomes[i] {
		case models.Inserted:
			res.Inserted++
		case models.AlreadyExists:
			res.Duplicates++
		}
	}

	g.logger.Info("[gateway] Ingested %d listings: %d new, %d already stored, %d failed",
		len(listings), res.Inserted, res.Duplicates, len(res.Errors))

	return res, ctx.Err()
}

// QueryWindow returns every stored listing with LastUpdatedAt >= since, in
// no particular order.
func (g *Gateway) QueryWindow(ctx context.Context, since time.Time) ([]*models.Listing, error) {
	listings, err := g.store.ScanSince(ctx, since)
	if err != nil {
		return nil, err
	}

	out := listings[:0]
	for _, l := range listings {
		if !l.LastUpdatedAt.Before(since) {
			out = append(out, l)
		}
	}
	return out, nil
}
