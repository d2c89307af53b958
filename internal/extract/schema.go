package extract

// DefaultPrompt steers the extractor towards course listings.
const DefaultPrompt = `Extract every electrical training course listed on this page.
For each course return the title, provider, category if stated, location,
description, duration, price exactly as written, delivery format, whether it
is online, upcoming start dates, accreditations, contact email and phone, and
the course page URL.`

// CourseSchema is the JSON schema sent with each batch submission.
func CourseSchema() map[string]any {
	str := map[string]any{"type": "string"}
	strList := map[string]any{"type": "array", "items": str}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"courses": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":          str,
						"provider":       str,
						"category":       str,
						"location":       str,
						"description":    str,
						"duration":       str,
						"price":          str,
						"format":         str,
						"online":         map[string]any{"type": "boolean"},
						"upcoming_dates": strList,
						"accreditations": strList,
						"contact_email":  str,
						"contact_phone":  str,
						"url":            str,
					},
					"required": []string{"title"},
				},
			},
		},
		"required": []string{"courses"},
	}
}
