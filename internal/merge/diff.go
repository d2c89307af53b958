package merge

import (
	"strings"

	"course-harvest/internal/domain"
)

// Changes compares the merged store before and after a merge.
type Changes struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
}

// Diff counts records in next that are new or changed relative to prev,
// and records in prev whose Key is gone from next.
func Diff(prev, next []domain.CanonicalRecord) Changes {
	prevByKey := make(map[string]domain.CanonicalRecord, len(prev))
	for _, r := range prev {
		prevByKey[Key(r)] = r
	}

	var c Changes
	nextKeys := make(map[string]struct{}, len(next))
	for _, r := range next {
		k := Key(r)
		nextKeys[k] = struct{}{}
		old, ok := prevByKey[k]
		if !ok {
			c.Added++
			continue
		}
		if needsUpdate(old, r) {
			c.Updated++
		}
	}
	for k := range prevByKey {
		if _, ok := nextKeys[k]; !ok {
			c.Removed++
		}
	}
	return c
}

// needsUpdate ignores ids, which are regenerated on every live run.
func needsUpdate(old, cur domain.CanonicalRecord) bool {
	if norm(old.Category) != norm(cur.Category) ||
		norm(old.Region) != norm(cur.Region) ||
		norm(old.Location) != norm(cur.Location) ||
		norm(old.Description) != norm(cur.Description) ||
		norm(old.Duration) != norm(cur.Duration) ||
		norm(old.ExternalURL) != norm(cur.ExternalURL) ||
		old.Source != cur.Source ||
		old.Online != cur.Online {
		return true
	}

	// Price: nil and zero are different answers.
	switch {
	case old.Price == nil && cur.Price == nil:
	case old.Price == nil || cur.Price == nil:
		return true
	case !old.Price.Equal(*cur.Price):
		return true
	}

	return !sameList(old.UpcomingDates, cur.UpcomingDates)
}

func sameList(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if norm(a[i]) != norm(b[i]) {
			return false
		}
	}
	return true
}

func norm(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}
