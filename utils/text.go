package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonSlugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns free text into a comparison key: accents stripped,
// lower-cased, every run of non-alphanumerics collapsed into one hyphen.
//
//	"Água Verde, Curitiba" → "agua-verde-curitiba"
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(removeAccents(s)))
	s = nonSlugRegexp.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func removeAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

// ParseNumber extracts a non-negative decimal from provider text such as
// "R$ 2.100,00", "1,234.56" or "65 m²". Anything unparseable yields 0.
//
// Only ASCII digits and the two separators survive cleaning. When both
// separators are present the right-most one is the decimal mark. A lone comma
// is a decimal mark; repeated commas are grouping. Dots alone are grouping
// unless there is exactly one followed by at most two digits.
//
// "1,234.56" therefore reads as 1234.56, not 1.23456: a comma is only taken
// as the decimal mark when no dot follows it (DESIGN.md, decision 3).
func ParseNumber(raw string) float64 {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' {
			b.WriteRune(r)
		}
	}
	s := strings.Trim(b.String(), ".,")
	if s == "" {
		return 0
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 || len(s)-lastDot-1 > 2 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	// mixed separators can still leave several dots, e.g. "1,2,3.4.5"
	if strings.Count(s, ".") > 1 {
		return 0
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// MoneyFormatter renders amounts with locale grouping, two decimals and a
// currency symbol prefix.
type MoneyFormatter struct {
	printer *message.Printer
	symbol  string
}

// NewMoneyFormatter builds a formatter for a BCP 47 locale such as "pt-BR".
func NewMoneyFormatter(locale, symbol string) (*MoneyFormatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("money: invalid locale %q: %w", locale, err)
	}
	return &MoneyFormatter{printer: message.NewPrinter(tag), symbol: symbol}, nil
}

// Format returns e.g. "R$ 2.100,00" for 2100 in pt-BR.
func (f *MoneyFormatter) Format(amount float64) string {
	n := f.printer.Sprintf("%.2f", amount)
	if f.symbol == "" {
		return n
	}
	return f.symbol + " " + n
}

// Decimal returns the grouped two-decimal number without a symbol.
func (f *MoneyFormatter) Decimal(amount float64) string {
	return f.printer.Sprintf("%.2f", amount)
}
