package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"rental-digest/models"
	"rental-digest/utils"
)

const (
	galvaoSource   = "Galvão"
	galvaoBaseURL  = "https://www.galvaoimoveis.com.br"
	galvaoCardSel  = "a.list__link"
	galvaoOpenUpTo = 50000
)

// Galvao searches galvaoimoveis.com.br. Its result pages are server
// rendered, so a plain colly collector is enough.
type Galvao struct {
	pacer     *Pacer
	logger    *utils.Logger
	userAgent string
	timeout   time.Duration
	baseURL   string
	now       func() time.Time
}

func NewGalvao(pacer *Pacer, userAgent string, timeout time.Duration, logger *utils.Logger) *Galvao {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Galvao{
		pacer:     pacer,
		logger:    logger,
		userAgent: userAgent,
		timeout:   timeout,
		baseURL:   galvaoBaseURL,
		now:       time.Now,
	}
}

func (g *Galvao) Name() string { return galvaoSource }

// SearchURL encodes every filter in the path, e.g.
// /imoveis/apartamento-locacao-curitiba-batel-2-ou-mais-quartos-de-0-ate-2500-de-60m2-ate-50000m2
// Unset bounds are sent wide open.
func (g *Galvao) SearchURL(c models.FilterCriteria, neighborhood string) string {
	rooms := c.MinRooms
	if rooms <= 0 {
		rooms = 1
	}
	maxPrice := int(c.MaxPrice)
	if maxPrice <= 0 {
		maxPrice = galvaoOpenUpTo
	}
	return fmt.Sprintf("%s/imoveis/%s-locacao-%s-%s-%d-ou-mais-quartos-de-0-ate-%d-de-%dm2-ate-%dm2",
		g.baseURL,
		utils.Slugify(c.PropertyType), utils.Slugify(c.City), utils.Slugify(neighborhood),
		rooms, maxPrice, int(c.MinArea), galvaoOpenUpTo)
}

// Fetch searches each neighborhood in turn with the same failure policy as
// the other providers: skip failed searches, error only if all failed.
func (g *Galvao) Fetch(ctx context.Context, c models.FilterCriteria) ([]*models.RawListing, error) {
	var (
		out      []*models.RawListing
		failures int
		lastErr  error
	)

	for _, n := range c.Neighborhoods {
		if err := g.pacer.Wait(ctx); err != nil {
			return out, err
		}

		searchURL := g.SearchURL(c, n)
		g.logger.Info("[%s] Searching %s: %s", galvaoSource, n, searchURL)

		cards, err := g.scrape(ctx, searchURL, n, c.City)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			g.logger.Warn("[%s] Search for %s failed: %v", galvaoSource, n, err)
			failures++
			lastErr = err
			continue
		}
		g.logger.Info("[%s] %d cards for %s", galvaoSource, len(cards), n)
		out = append(out, cards...)
	}

	if len(c.Neighborhoods) > 0 && failures == len(c.Neighborhoods) {
		return nil, searchFailure(galvaoSource, failures, lastErr)
	}
	return out, nil
}

func (g *Galvao) scrape(ctx context.Context, searchURL, requested, city string) ([]*models.RawListing, error) {
	opts := []colly.CollectorOption{colly.StdlibContext(ctx)}
	if g.userAgent != "" {
		opts = append(opts, colly.UserAgent(g.userAgent))
	}
	col := colly.NewCollector(opts...)
	col.SetRequestTimeout(g.timeout)

	scrapedAt := g.now()
	var (
		cards    []*models.RawListing
		visitErr error
	)
	col.OnHTML(galvaoCardSel, func(e *colly.HTMLElement) {
		cards = append(cards, parseGalvaoCard(e.DOM, g.baseURL, requested, city, scrapedAt))
	})
	col.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
	})

	if err := col.Visit(searchURL); err != nil {
		return nil, err
	}
	col.Wait()
	if visitErr != nil {
		return nil, visitErr
	}
	return cards, nil
}

func parseGalvaoCards(html, baseURL, requested, city string, scrapedAt time.Time) ([]*models.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	var cards []*models.RawListing
	doc.Find(galvaoCardSel).Each(func(_ int, s *goquery.Selection) {
		cards = append(cards, parseGalvaoCard(s, baseURL, requested, city, scrapedAt))
	})
	return cards, nil
}

// parseGalvaoCard reads one result card. Cards carry "Bairro:" and
// sometimes "Cidade:" labels; the searched city fills in when the card has
// none, since the search path is already city-scoped.
func parseGalvaoCard(s *goquery.Selection, baseURL, requested, city string, scrapedAt time.Time) *models.RawListing {
	raw := &models.RawListing{
		Source:                galvaoSource,
		RequestedNeighborhood: requested,
		Link:                  absoluteLink(baseURL, s.AttrOr("href", "")),
		Price:                 cleanText(s.Find(".list__price").First().Text()),
		ScrapedAt:             scrapedAt,
	}

	cardCity := city
	s.Find("strong").Each(func(_ int, label *goquery.Selection) {
		key := strings.ToLower(cleanText(label.Text()))
		value := cleanText(strings.Replace(label.Parent().Text(), label.Text(), "", 1))
		switch {
		case strings.HasPrefix(key, "bairro"):
			raw.Neighborhood = value
		case strings.HasPrefix(key, "cidade"):
			cardCity = value
		}
	})
	if raw.Neighborhood != "" {
		raw.Address = raw.Neighborhood + ", " + cardCity
	}

	s.Find(".list__item").Each(func(_ int, item *goquery.Selection) {
		text := cleanText(item.Text())
		lower := strings.ToLower(text)
		switch {
		case strings.Contains(lower, "m²") || strings.Contains(lower, "m2"):
			// "m2" would otherwise leak its digit into the parsed area
			raw.Area = strings.ReplaceAll(text, "m2", "m²")
		case strings.Contains(lower, "quarto"):
			raw.Rooms = text
		case strings.Contains(lower, "vaga"):
			raw.ParkingSpaces = text
		}
	})
	return raw
}
