package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"course-harvest/internal/domain"
)

// Column order is part of the published file format.
var recordsHeader = []string{
	"ID",
	"TITLE",
	"PROVIDER",
	"PROVIDER_SLUG",
	"CATEGORY",
	"REGION",
	"LOCATION",
	"DESCRIPTION",
	"DURATION",
	"PRICE",
	"PRICE_TEXT",
	"FORMAT",
	"ONLINE",
	"UPCOMING_DATES",
	"ACCREDITATIONS",
	"CONTACT_EMAIL",
	"CONTACT_PHONE",
	"URL",
	"SOURCE",
}

// WriteRecordsCSV writes canonical records, one per row, after a header.
func WriteRecordsCSV(w io.Writer, recs []domain.CanonicalRecord) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(recordsHeader); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for _, r := range recs {
		if err := cw.Write(toRow(r)); err != nil {
			return fmt.Errorf("export: write record %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FileName is the dated name used for published exports.
func FileName(now time.Time) string {
	return "courses-" + now.UTC().Format("20060102-150405") + ".csv"
}

func toRow(r domain.CanonicalRecord) []string {
	// Unknown price stays empty so it is not read as free.
	price := ""
	if r.Price != nil {
		price = r.Price.StringFixed(2)
	}

	return []string{
		r.ID,                         // ID
		oneLine(r.Title),             // TITLE
		oneLine(r.ProviderName),      // PROVIDER
		r.ProviderSlug,               // PROVIDER_SLUG
		r.Category,                   // CATEGORY
		r.Region,                     // REGION
		oneLine(r.Location),          // LOCATION
		oneLine(r.Description),       // DESCRIPTION
		oneLine(r.Duration),          // DURATION
		price,                        // PRICE
		oneLine(r.PriceText),         // PRICE_TEXT
		r.Format,                     // FORMAT
		strconv.FormatBool(r.Online), // ONLINE
		joinList(r.UpcomingDates),    // UPCOMING_DATES
		joinList(r.Accreditations),   // ACCREDITATIONS
		r.ContactEmail,               // CONTACT_EMAIL
		r.ContactPhone,               // CONTACT_PHONE
		r.ExternalURL,                // URL
		r.Source,                     // SOURCE
	}
}

func joinList(in []string) string {
	return strings.Join(cleanStrings(in), " | ")
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = oneLine(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
