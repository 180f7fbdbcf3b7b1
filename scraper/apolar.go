package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"rental-digest/models"
	"rental-digest/utils"
)

const (
	apolarSource   = "Apolar"
	apolarBaseURL  = "https://www.apolar.com.br"
	apolarCardWait = ".property-component"
)

// Apolar searches apolar.com.br. Result pages are rendered client-side, so
// every search goes through the browser.
type Apolar struct {
	renderer PageRenderer
	pacer    *Pacer
	logger   *utils.Logger
	money    *utils.MoneyFormatter
	now      func() time.Time
}

func NewApolar(renderer PageRenderer, pacer *Pacer, logger *utils.Logger) *Apolar {
	return &Apolar{
		renderer: renderer,
		pacer:    pacer,
		logger:   logger,
		money:    brazilianMoney(),
		now:      time.Now,
	}
}

func (a *Apolar) Name() string { return apolarSource }

// SearchURL builds the listing search for one neighborhood, e.g.
// /alugar/apartamento/curitiba/batel/2-quartos?price_max=R$ 2.500,00&...
func (a *Apolar) SearchURL(c models.FilterCriteria, neighborhood string) string {
	path := fmt.Sprintf("/alugar/%s/%s/%s",
		utils.Slugify(c.PropertyType), utils.Slugify(c.City), utils.Slugify(neighborhood))
	if c.MinRooms > 0 {
		path += fmt.Sprintf("/%d-quartos", c.MinRooms)
	}

	q := url.Values{}
	q.Set("mensal", "")
	q.Set("country", "Brasil")
	if c.MaxPrice > 0 {
		q.Set("price_max", a.money.Format(c.MaxPrice))
	}
	if c.MinArea > 0 {
		q.Set("area_min", a.money.Decimal(c.MinArea)+" m²")
	}
	if c.CondoFeeIncluded {
		q.Set("price_condominium_included", "true")
	}
	return apolarBaseURL + path + "?" + q.Encode()
}

// Fetch searches each neighborhood in turn. A failed search is logged and
// skipped; only a provider whose every search failed reports an error.
func (a *Apolar) Fetch(ctx context.Context, c models.FilterCriteria) ([]*models.RawListing, error) {
	var (
		out      []*models.RawListing
		failures int
		lastErr  error
	)

	for _, n := range c.Neighborhoods {
		if err := a.pacer.Wait(ctx); err != nil {
			return out, err
		}

		searchURL := a.SearchURL(c, n)
		a.logger.Info("[%s] Searching %s: %s", apolarSource, n, searchURL)

		html, err := a.renderer.Render(ctx, searchURL, apolarCardWait)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			a.logger.Warn("[%s] Search for %s failed: %v", apolarSource, n, err)
			failures++
			lastErr = err
			continue
		}

		cards, err := parseApolarCards(html, n, a.now())
		if err != nil {
			a.logger.Warn("[%s] Could not parse results for %s: %v", apolarSource, n, err)
			failures++
			lastErr = err
			continue
		}
		a.logger.Info("[%s] %d cards for %s", apolarSource, len(cards), n)
		out = append(out, cards...)
	}

	if len(c.Neighborhoods) > 0 && failures == len(c.Neighborhoods) {
		return nil, searchFailure(apolarSource, failures, lastErr)
	}
	return out, nil
}

func parseApolarCards(html, requested string, scrapedAt time.Time) ([]*models.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var cards []*models.RawListing
	doc.Find(apolarCardWait).Each(func(_ int, card *goquery.Selection) {
		href, _ := card.Find("a[href]").First().Attr("href")
		cards = append(cards, &models.RawListing{
			Source:                apolarSource,
			RequestedNeighborhood: requested,
			Neighborhood:          requested,
			Address:               cleanText(card.Find(".property-address-others").First().Text()),
			Price:                 cleanText(card.Find(".property-current-price").First().Text()),
			Area:                  cleanText(card.Find(".feature.ruler").First().Text()),
			Rooms:                 cleanText(card.Find(".feature.bed").First().Text()),
			ParkingSpaces:         cleanText(card.Find(".feature.car").First().Text()),
			Link:                  absoluteLink(apolarBaseURL, href),
			ScrapedAt:             scrapedAt,
		})
	})
	return cards, nil
}

// absoluteLink resolves href against base; unparseable hrefs are returned
// untouched so the normalizer can reject them.
func absoluteLink(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

func brazilianMoney() *utils.MoneyFormatter {
	m, err := utils.NewMoneyFormatter("pt-BR", "R$")
	if err != nil {
		panic(err)
	}
	return m
}
