package order

import (
	"sort"
	"strings"
)

// Vendor is one vendor option from a search source.
type Vendor struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Rating     *float64 `json:"rating,omitempty"`
	PriceLevel string   `json:"price_level,omitempty"`
	Address    string   `json:"address,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Source     string   `json:"source,omitempty"`
}

// NormalizeName returns the key used to deduplicate vendors across sources.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// MergeVendors merges vendor lists from independent sources, deduplicating
// on normalized name (first source wins) and ranking by rating descending
// with unrated vendors last. Ties order by name so results are stable. At
// most limit vendors are returned (limit <= 0 means no limit).
func MergeVendors(lists [][]Vendor, limit int) []Vendor {
	seen := map[string]bool{}
	var merged []Vendor
	for _, list := range lists {
		for _, vendor := range list {
			key := NormalizeName(vendor.Name)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, vendor)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		ri, rj := merged[i].Rating, merged[j].Rating
		switch {
		case ri == nil && rj == nil:
			return merged[i].Name < merged[j].Name
		case ri == nil:
			return false
		case rj == nil:
			return true
		case *ri != *rj:
			return *ri > *rj
		default:
			return merged[i].Name < merged[j].Name
		}
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
