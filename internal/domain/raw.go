package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// RawRecord is one course as returned by the extraction backend, before
// normalization. Extracted JSON is loosely typed, so several fields accept
// more than one shape.
type RawRecord struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Provider       string     `json:"provider"`
	Category       string     `json:"category"`
	Region         string     `json:"region"`
	Location       string     `json:"location"`
	Description    string     `json:"description"`
	Duration       string     `json:"duration"`
	Price          LooseText  `json:"price"`
	Format         string     `json:"format"`
	Online         LooseBool  `json:"online"`
	UpcomingDates  StringList `json:"upcoming_dates"`
	Accreditations StringList `json:"accreditations"`
	ContactEmail   string     `json:"contact_email"`
	ContactPhone   string     `json:"contact_phone"`
	URL            string     `json:"url"`
}

// LooseText can come as:
// - "£450 + VAT" (string)
// - 450 (number)
// Any other shape decodes to "".
type LooseText string

func (t *LooseText) UnmarshalJSON(b []byte) error {
	*t = ""
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			*t = LooseText(strings.TrimSpace(s))
		}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*t = LooseText(n.String())
		return nil
	}
	*t = ""
	return nil
}

// LooseBool can come as true/false, "yes"/"no", "true"/"false" or 1/0.
type LooseBool bool

func (v *LooseBool) UnmarshalJSON(b []byte) error {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(string(b)), `"`))
	switch s {
	case "true", "yes", "y", "1", "online":
		*v = true
	default:
		if parsed, err := strconv.ParseBool(s); err == nil {
			*v = LooseBool(parsed)
			return nil
		}
		*v = false
	}
	return nil
}

// StringList can come as:
// - "12 May 2025" (string)
// - ["12 May", "3 June"] (array of strings)
// - [{"date": "12 May"}] (array of objects)
// - [20250101] (array of numbers)
// Elements of any other shape are dropped.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	*l = nil
	if len(b) == 0 || string(b) == "null" {
		return nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			*l = cleanList([]string{s})
		}
	case '[':
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		var items []any
		if err := dec.Decode(&items); err != nil {
			return nil
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			out = append(out, listItem(it))
		}
		*l = cleanList(out)
	}
	return nil
}

func listItem(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case map[string]any:
		for _, k := range []string{"date", "name", "title", "value"} {
			if s, ok := x[k].(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return ""
}

func cleanList(in []string) StringList {
	out := make(StringList, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
