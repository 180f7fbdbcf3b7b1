package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"rental-digest/models"
	"rental-digest/utils"
)

const (
	zapSource   = "Zap Imóveis"
	zapBaseURL  = "https://www.zapimoveis.com.br"
	zapCardSel  = `li[data-cy="rp-property-cd"]`
	zapMaxRooms = 4
)

// zapTypes maps a property type slug to Zap's path segment and search type.
var zapTypes = map[string][2]string{
	"apartamento": {"apartamentos", "apartamento_residencial"},
	"casa":        {"casas", "casa_residencial"},
	"sobrado":     {"sobrados", "sobrado_residencial"},
	"kitnet":      {"kitnets", "kitnet_residencial"},
}

// ZapImoveis searches zapimoveis.com.br through the browser. Zap keys its
// location filter on the state, so the adapter carries one.
type ZapImoveis struct {
	renderer  PageRenderer
	pacer     *Pacer
	logger    *utils.Logger
	stateCode string
	stateName string
	title     cases.Caser
	now       func() time.Time
}

func NewZapImoveis(renderer PageRenderer, pacer *Pacer, stateCode, stateName string, logger *utils.Logger) *ZapImoveis {
	if stateCode == "" {
		stateCode = "pr"
	}
	if stateName == "" {
		stateName = "Paraná"
	}
	return &ZapImoveis{
		renderer:  renderer,
		pacer:     pacer,
		logger:    logger,
		stateCode: strings.ToLower(stateCode),
		stateName: stateName,
		title:     cases.Title(language.BrazilianPortuguese),
		now:       time.Now,
	}
}

func (z *ZapImoveis) Name() string { return zapSource }

// displayName title-cases a neighborhood the way Zap spells it, keeping
// Portuguese connectives lowercase: "alto da xv" becomes "Alto da Xv".
func (z *ZapImoveis) displayName(s string) string {
	t := z.title.String(strings.TrimSpace(s))
	for _, w := range []string{"Da", "De", "Do", "Das", "Dos"} {
		t = strings.ReplaceAll(t, " "+w+" ", " "+strings.ToLower(w)+" ")
	}
	return t
}

// SearchURL builds e.g.
// /aluguel/apartamentos/pr+curitiba++batel/2-quartos/?onde=...&quartos=2,3,4
func (z *ZapImoveis) SearchURL(c models.FilterCriteria, neighborhood string) string {
	kind, ok := zapTypes[utils.Slugify(c.PropertyType)]
	if !ok {
		kind = zapTypes["apartamento"]
	}

	citySlug := utils.Slugify(c.City)
	path := fmt.Sprintf("/aluguel/%s/%s+%s++%s/", kind[0], z.stateCode, citySlug, utils.Slugify(neighborhood))
	if c.MinRooms > 0 {
		path += fmt.Sprintf("%d-quartos/", c.MinRooms)
	}

	city := z.displayName(c.City)
	hood := z.displayName(neighborhood)
	q := url.Values{}
	q.Set("transacao", "aluguel")
	q.Set("tipos", kind[1])
	q.Set("onde", fmt.Sprintf(",%s,%s,,%s,,,neighborhood,BR>%s>NULL>%s>Barrios>%s,,",
		z.stateName, city, hood, utils.Slugify(z.stateName), city, hood))
	if c.MinRooms > 0 {
		var rooms []string
		for n := c.MinRooms; n <= zapMaxRooms; n++ {
			rooms = append(rooms, strconv.Itoa(n))
		}
		if len(rooms) == 0 {
			rooms = []string{strconv.Itoa(c.MinRooms)}
		}
		q.Set("quartos", strings.Join(rooms, ","))
	}
	if c.MaxPrice > 0 {
		q.Set("precoMaximo", strconv.Itoa(int(c.MaxPrice)))
	}
	if c.MinArea > 0 {
		q.Set("areaMinima", strconv.Itoa(int(c.MinArea)))
	}
	return zapBaseURL + path + "?" + q.Encode()
}

func (z *ZapImoveis) Fetch(ctx context.Context, c models.FilterCriteria) ([]*models.RawListing, error) {
	var (
		out      []*models.RawListing
		failures int
		lastErr  error
	)

	for _, n := range c.Neighborhoods {
		if err := z.pacer.Wait(ctx); err != nil {
			return out, err
		}

		searchURL := z.SearchURL(c, n)
		z.logger.Info("[%s] Searching %s: %s", zapSource, n, searchURL)

		html, err := z.renderer.Render(ctx, searchURL, zapCardSel)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			z.logger.Warn("[%s] Search for %s failed: %v", zapSource, n, err)
			failures++
			lastErr = err
			continue
		}

		cards, err := parseZapCards(html, z.displayName(n), z.displayName(c.City), z.now())
		if err != nil {
			z.logger.Warn("[%s] Could not parse results for %s: %v", zapSource, n, err)
			failures++
			lastErr = err
			continue
		}
		z.logger.Info("[%s] %d cards for %s", zapSource, len(cards), n)
		out = append(out, cards...)
	}

	if len(c.Neighborhoods) > 0 && failures == len(c.Neighborhoods) {
		return nil, searchFailure(zapSource, failures, lastErr)
	}
	return out, nil
}

// parseZapCards reads result cards. Cards without a detail link are
// advertising slots and are skipped.
func parseZapCards(html, requested, city string, scrapedAt time.Time) ([]*models.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var cards []*models.RawListing
	doc.Find(zapCardSel).Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find("a[href]").First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}

		address := cleanText(card.Find(`[data-cy="rp-cardProperty-location-txt"]`).First().Text())
		if address == "" {
			address = requested + ", " + city
		}

		cards = append(cards, &models.RawListing{
			Source:                zapSource,
			RequestedNeighborhood: requested,
			Neighborhood:          requested,
			Address:               address,
			Price:                 cleanText(card.Find(`[data-cy="rp-cardProperty-price-txt"] p`).First().Text()),
			Area:                  cleanText(card.Find(`[data-cy="rp-cardProperty-propertyArea-txt"]`).First().Text()),
			Rooms:                 cleanText(card.Find(`[data-cy="rp-cardProperty-bedroomQuantity-txt"]`).First().Text()),
			ParkingSpaces:         cleanText(card.Find(`[data-cy="rp-cardProperty-parkingSpacesQuantity-txt"]`).First().Text()),
			Link:                  absoluteLink(zapBaseURL, href),
			ScrapedAt:             scrapedAt,
		})
	})
	return cards, nil
}
