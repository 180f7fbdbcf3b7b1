package scraper

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out consecutive searches against one site.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer allows one search per interval. A non-positive interval never waits.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next search may start or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
