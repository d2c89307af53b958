// Package fallback synthesizes placeholder course records for a batch when
// live extraction is unavailable.
package fallback

import (
	"fmt"
	"time"

	"course-harvest/internal/domain"
	"course-harvest/internal/normalize"
)

// DefaultPerProvider is how many records each provider receives.
const DefaultPerProvider = 3

const (
	minPerProvider = 2
	maxPerProvider = 4
)

type template struct {
	title         string
	category      string
	duration      string
	priceText     string
	format        string
	online        bool
	accreditation string
	firstDateDays int
}

var templates = []template{
	{"18th Edition Wiring Regulations (BS 7671:2018+A2)", "18th Edition", "3 days", "£395 + VAT", "Classroom", false, "City & Guilds 2382-22", 14},
	{"Initial and Periodic Inspection and Testing (2391-52)", "Inspection & Testing", "5 days", "£895 + VAT", "Classroom", false, "City & Guilds 2391-52", 21},
	{"EV Charging Point Installation (2921-34)", "EV Charging", "2 days", "£450 + VAT", "Blended", false, "City & Guilds 2921-34", 10},
	{"Solar PV Installation and Maintenance", "Renewable Energy", "3 days", "£595 + VAT", "Classroom", false, "LCL Awards", 28},
	{"Fire Alarm Systems Foundation (BS 5839)", "Fire Alarm Systems", "2 days", "£375 + VAT", "Online", true, "FIA", 7},
}

// Generator never performs I/O; Now only feeds the placeholder dates.
type Generator struct {
	PerProvider int
	Now         func() time.Time
}

// New returns a Generator with the default record count.
func New() *Generator {
	return &Generator{PerProvider: DefaultPerProvider, Now: time.Now}
}

// Generate returns placeholder records for every provider in batch, each
// tagged domain.SourceFallback. It cannot fail.
func (g *Generator) Generate(batch domain.SourceBatch) []domain.CanonicalRecord {
	per := g.perProvider()
	now := time.Now()
	if g.Now != nil {
		now = g.Now()
	}
	region := normalize.InferRegion("", batch.Name)

	out := make([]domain.CanonicalRecord, 0, per*len(batch.Providers))
	for pi, p := range batch.Providers {
		for i := 0; i < per; i++ {
			// rotate templates so neighbouring providers don't look identical
			tpl := templates[(pi+i)%len(templates)]
			first := now.AddDate(0, 0, tpl.firstDateDays)
			out = append(out, domain.CanonicalRecord{
				ID:             fmt.Sprintf("%s-fallback-%d", p.Slug, i),
				Title:          tpl.title,
				ProviderName:   p.Name,
				ProviderSlug:   p.Slug,
				Category:       tpl.category,
				Region:         region,
				Location:       batch.Name,
				Description:    fmt.Sprintf("%s delivered by %s. Contact the provider to confirm current dates and pricing.", tpl.title, p.Name),
				Duration:       tpl.duration,
				PriceText:      tpl.priceText,
				Price:          normalize.ParsePrice(tpl.priceText),
				Format:         tpl.format,
				Online:         tpl.online,
				UpcomingDates:  []string{first.Format("2006-01-02"), first.AddDate(0, 1, 0).Format("2006-01-02")},
				Accreditations: []string{tpl.accreditation},
				ExternalURL:    p.URL,
				Source:         domain.SourceFallback,
			})
		}
	}
	return out
}

func (g *Generator) perProvider() int {
	switch {
	case g.PerProvider <= 0:
		return DefaultPerProvider
	case g.PerProvider < minPerProvider:
		return minPerProvider
	case g.PerProvider > maxPerProvider:
		return maxPerProvider
	}
	return g.PerProvider
}
