package services

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"rental-digest/models"
	"rental-digest/utils"
)

// DigestComposer renders a listing set as a human-readable report. It has no
// knowledge of how the report is delivered.
type DigestComposer struct {
	title    string
	money    *utils.MoneyFormatter
	location *time.Location
}

// NewDigestComposer builds a composer. title prefixes the subject line, e.g.
// "Imóveis Curitiba"; timestamps are rendered in loc.
func NewDigestComposer(title string, money *utils.MoneyFormatter, loc *time.Location) *DigestComposer {
	if loc == nil {
		loc = time.UTC
	}
	return &DigestComposer{title: title, money: money, location: loc}
}

// Compose sorts listings by ascending price and renders text and HTML bodies.
// An empty input yields models.ErrNothingToReport instead of an empty report.
func (c *DigestComposer) Compose(listings []*models.Listing, window time.Duration, generatedAt time.Time) (*models.Report, error) {
	if len(listings) == 0 {
		return nil, models.ErrNothingToReport
	}

	sorted := make([]*models.Listing, len(listings))
	copy(sorted, listings)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Price != sorted[j].Price {
			return sorted[i].Price < sorted[j].Price
		}
		return sorted[i].ID < sorted[j].ID
	})

	r := &models.Report{
		Subject:     fmt.Sprintf("%s: %d new listings", c.title, len(sorted)),
		GeneratedAt: generatedAt,
		Window:      window,
		Listings:    sorted,
	}
	r.Text = c.renderText(r)

	html, err := c.renderHTML(r)
	if err != nil {
		return nil, fmt.Errorf("digest: render html: %w", err)
	}
	r.HTML = html
	return r, nil
}

func (c *DigestComposer) header(r *models.Report) string {
	return fmt.Sprintf("%d listings | generated %s | window %s",
		r.Count(), r.GeneratedAt.In(c.location).Format("2006-01-02 15:04"), r.Window)
}

func (c *DigestComposer) renderText(r *models.Report) string {
	t := table.NewWriter()
	t.SetTitle(c.header(r))
	t.AppendHeader(table.Row{"#", "Neighborhood", "Price", "Area", "Rooms", "Source", "Link"})
	for i, l := range r.Listings {
		t.AppendRow(table.Row{i + 1, l.Neighborhood, c.money.Format(l.Price), l.Area, l.Rooms, l.Source, l.DetailURL})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	t.SetStyle(table.StyleLight)
	return t.Render()
}

var digestHTML = template.Must(template.New("digest").Parse(`<html>
<body>
<h2>{{.Title}}</h2>
<p><b>{{.Count}}</b> listings updated in the last {{.Window}}. Generated {{.Generated}}.</p>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Neighborhood</th><th>Price</th><th>Area</th><th>Rooms</th><th>Source</th><th>Link</th></tr>
{{range .Rows}}<tr><td>{{.Neighborhood}}</td><td align="right">{{.Price}}</td><td>{{.Area}}</td><td align="right">{{.Rooms}}</td><td>{{.Source}}</td><td><a href="{{.URL}}">open</a></td></tr>
{{end}}</table>
<hr>
<p><small>Automatic alert. The spreadsheet attachment holds the same listings.</small></p>
</body>
</html>`))

type htmlRow struct {
	Neighborhood string
	Price        string
	Area         string
	Rooms        string
	Source       string
	URL          string
}

func (c *DigestComposer) renderHTML(r *models.Report) (string, error) {
	rows := make([]htmlRow, len(r.Listings))
	for i, l := range r.Listings {
		rows[i] = htmlRow{
			Neighborhood: l.Neighborhood,
			Price:        c.money.Format(l.Price),
			Area:         l.Area,
			Rooms:        strconv.Itoa(l.Rooms),
			Source:       l.Source,
			URL:          l.DetailURL,
		}
	}

	var buf bytes.Buffer
	err := digestHTML.Execute(&buf, map[string]any{
		"Title":     c.title,
		"Count":     r.Count(),
		"Window":    r.Window.String(),
		"Generated": r.GeneratedAt.In(c.location).Format("2006-01-02 15:04"),
		"Rows":      rows,
	})
	return buf.String(), err
}
