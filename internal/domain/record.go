package domain

import "github.com/shopspring/decimal"

// SourceFallback tags records synthesized when live extraction failed.
const SourceFallback = "fallback"

// Provenance values carried on a CacheEntry.
const (
	ProvenanceLive     = "live"
	ProvenanceFallback = "fallback"
)

// CanonicalRecord is the normalized course listing shared by the cache,
// the merged store and every export.
type CanonicalRecord struct {
	ID           string `json:"id" msgpack:"id"`
	Title        string `json:"title" msgpack:"title"`
	ProviderName string `json:"providerName" msgpack:"provider_name"`
	ProviderSlug string `json:"providerSlug" msgpack:"provider_slug"`
	Category     string `json:"category" msgpack:"category"`
	Region       string `json:"region" msgpack:"region"`
	Location     string `json:"location,omitempty" msgpack:"location"`
	Description  string `json:"description,omitempty" msgpack:"description"`
	Duration     string `json:"duration,omitempty" msgpack:"duration"`
	PriceText    string `json:"priceText,omitempty" msgpack:"price_text"`

	// Price is nil when no number could be read from PriceText.
	Price *decimal.Decimal `json:"price,omitempty" msgpack:"price"`

	Format         string   `json:"format,omitempty" msgpack:"format"`
	Online         bool     `json:"online" msgpack:"online"`
	UpcomingDates  []string `json:"upcomingDates,omitempty" msgpack:"upcoming_dates"`
	Accreditations []string `json:"accreditations,omitempty" msgpack:"accreditations"`
	ContactEmail   string   `json:"contactEmail,omitempty" msgpack:"contact_email"`
	ContactPhone   string   `json:"contactPhone,omitempty" msgpack:"contact_phone"`
	ExternalURL    string   `json:"externalUrl,omitempty" msgpack:"external_url"`

	// Source is the provider slug for live data and SourceFallback otherwise.
	Source string `json:"source" msgpack:"source"`
}

// IsFallback reports whether the record was synthesized.
func (r CanonicalRecord) IsFallback() bool { return r.Source == SourceFallback }
