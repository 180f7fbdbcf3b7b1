package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rental-digest/models"
	"rental-digest/utils"
)

// Provider is one real-estate source. Fetch runs the criteria's searches and
// returns raw cards; it never parses or validates values itself.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, criteria models.FilterCriteria) ([]*models.RawListing, error)
}

// Deps carries what provider constructors need.
type Deps struct {
	Renderer       PageRenderer
	Logger         *utils.Logger
	Delay          time.Duration
	RequestTimeout time.Duration
	UserAgent      string
	StateCode      string
	StateName      string
}

// Known provider names.
const (
	ApolarName = "apolar"
	GalvaoName = "galvao"
	ZapName    = "zapimoveis"
)

// NeedsBrowser reports whether any of the named providers renders pages
// through a headless browser.
func NeedsBrowser(names []string) bool {
	for _, n := range names {
		switch canonicalName(n) {
		case ApolarName, ZapName:
			return true
		}
	}
	return false
}

// Known reports whether name resolves to a registered provider.
func Known(name string) bool {
	switch canonicalName(name) {
	case ApolarName, GalvaoName, ZapName:
		return true
	}
	return false
}

// New builds the provider registered under name.
func New(name string, d Deps) (Provider, error) {
	switch canonicalName(name) {
	case ApolarName:
		if d.Renderer == nil {
			return nil, fmt.Errorf("provider %q needs a page renderer", name)
		}
		return NewApolar(d.Renderer, NewPacer(d.Delay), d.Logger), nil
	case GalvaoName:
		return NewGalvao(NewPacer(d.Delay), d.UserAgent, d.RequestTimeout, d.Logger), nil
	case ZapName:
		if d.Renderer == nil {
			return nil, fmt.Errorf("provider %q needs a page renderer", name)
		}
		return NewZapImoveis(d.Renderer, NewPacer(d.Delay), d.StateCode, d.StateName, d.Logger), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}

// NewAll builds every named provider, in order.
func NewAll(names []string, d Deps) ([]Provider, error) {
	providers := make([]Provider, 0, len(names))
	for _, n := range names {
		p, err := New(n, d)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}

func canonicalName(name string) string {
	switch n := utils.Slugify(name); n {
	case "zap", "zap-imoveis", "zapimoveis":
		return ZapName
	default:
		return n
	}
}

// searchFailure is returned by a provider when every neighborhood search failed.
func searchFailure(provider string, attempts int, last error) error {
	return fmt.Errorf("%w: %s: all %d searches failed, last: %v", models.ErrProviderFailure, provider, attempts, last)
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
