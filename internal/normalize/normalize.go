// Package normalize maps raw extracted course records into the canonical
// record shape.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"course-harvest/internal/domain"
)

// ErrMalformedRecord marks a raw record that cannot become a canonical one.
var ErrMalformedRecord = errors.New("normalize: malformed record")

// Normalizer is stateless; the zero value is ready to use.
type Normalizer struct{}

// New returns a Normalizer.
func New() *Normalizer { return &Normalizer{} }

// Normalize converts raw into a CanonicalRecord. ordinal is the record's
// position within its provider's results and ts the run timestamp; together
// with the provider slug they form the generated id.
func (n *Normalizer) Normalize(raw domain.RawRecord, p domain.ProviderDescriptor, ordinal int, ts time.Time) (domain.CanonicalRecord, error) {
	title := collapseSpace(raw.Title)
	if title == "" {
		return domain.CanonicalRecord{}, fmt.Errorf("%w: empty title (provider=%s ordinal=%d)", ErrMalformedRecord, p.Slug, ordinal)
	}

	id := strings.TrimSpace(raw.ID)
	if id == "" {
		id = BuildID(p.Slug, ordinal, ts)
	}

	priceText := strings.TrimSpace(string(raw.Price))
	format := strings.TrimSpace(raw.Format)

	return domain.CanonicalRecord{
		ID:             id,
		Title:          title,
		ProviderName:   firstNonEmpty(raw.Provider, p.Name),
		ProviderSlug:   p.Slug,
		Category:       InferCategory(raw.Category, title),
		Region:         InferRegion(raw.Region, raw.Location),
		Location:       strings.TrimSpace(raw.Location),
		Description:    strings.TrimSpace(raw.Description),
		Duration:       strings.TrimSpace(raw.Duration),
		PriceText:      priceText,
		Price:          ParsePrice(priceText),
		Format:         format,
		Online:         bool(raw.Online) || looksOnline(format),
		UpcomingDates:  copyList(raw.UpcomingDates),
		Accreditations: copyList(raw.Accreditations),
		ContactEmail:   strings.TrimSpace(raw.ContactEmail),
		ContactPhone:   strings.TrimSpace(raw.ContactPhone),
		ExternalURL:    firstNonEmpty(raw.URL, p.URL),
		Source:         p.Slug,
	}, nil
}

// BuildID is slug + ordinal + millisecond timestamp.
func BuildID(slug string, ordinal int, ts time.Time) string {
	return fmt.Sprintf("%s-%d-%d", strings.TrimSpace(slug), ordinal, ts.UnixMilli())
}

var priceNumber = regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`)

// ParsePrice extracts the first number in text regardless of currency.
// It returns nil when text holds no digits, so "unknown" never reads as zero.
func ParsePrice(text string) *decimal.Decimal {
	m := priceNumber.FindString(text)
	if m == "" {
		return nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return nil
	}
	return &d
}

// InferCategory passes an explicit category through, otherwise applies the
// ordered keyword rules to the title.
func InferCategory(explicit, title string) string {
	if c := strings.TrimSpace(explicit); c != "" {
		return c
	}
	t := " " + strings.ToLower(title) + " "
	for _, r := range categoryRules {
		for _, kw := range r.keywords {
			if strings.Contains(t, kw) {
				return r.category
			}
		}
	}
	return DefaultCategory
}

// InferRegion passes an explicit region through, otherwise maps the place
// name that appears first in location, matched as whole words, to its region
// group. When two names start at the same offset the longer one wins.
func InferRegion(explicit, location string) string {
	if r := strings.TrimSpace(explicit); r != "" {
		return r
	}
	loc := strings.ToLower(location)
	if strings.TrimSpace(loc) == "" {
		return DefaultRegion
	}
	region, at := DefaultRegion, -1
	for _, m := range placeMatchers {
		idx := m.re.FindStringIndex(loc)
		if idx != nil && (at < 0 || idx[0] < at) {
			region, at = m.region, idx[0]
		}
	}
	return region
}

func looksOnline(format string) bool {
	f := strings.ToLower(format)
	for _, kw := range []string{"online", "virtual", "remote", "e-learning", "elearning"} {
		if strings.Contains(f, kw) {
			return true
		}
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func copyList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return append([]string(nil), in...)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}
