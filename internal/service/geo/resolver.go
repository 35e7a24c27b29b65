// internal/service/geo/resolver.go

package geo

import (
	"sort"
	"strings"
	"unicode/utf8"

	"civicpulse/internal/domain/geo"
)

// nameIndex pairs a lowercase match key with the entry it resolves to
type nameIndex struct {
	key   string
	entry geo.LocationEntry
}

// regionIndex pairs a lowercase keyword with its region
type regionIndex struct {
	key    string
	region string
}

// Resolver resolves free text against a gazetteer.
//
// Matching is plain substring search over the lowercased text in three
// stages: canonical names (0.9), alternate names (0.8), region keywords
// (0.6). Within each stage the candidates are scanned longest key first,
// then by key, then by canonical name, and the first hit wins. The scan
// order is fixed when the Resolver is built, so results never depend on
// the order the gazetteer hands its entries out. A Resolver is immutable
// and safe for concurrent use.
type Resolver struct {
	canonical  []nameIndex
	alternates []nameIndex
	regions    []regionIndex
}

// NewResolver builds a resolver over the gazetteer. A nil regions slice
// selects DefaultRegionKeywords.
func NewResolver(gazetteer geo.Gazetteer, regions []RegionKeywords) *Resolver {
	if regions == nil {
		regions = DefaultRegionKeywords()
	}

	r := &Resolver{}

	for _, e := range gazetteer.Entries() {
		if key := normalizeKey(e.Name); key != "" {
			r.canonical = append(r.canonical, nameIndex{key: key, entry: e})
		}

		seen := make(map[string]struct{}, len(e.AlternateNames))
		for _, alt := range e.AlternateNames {
			key := normalizeKey(alt)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			r.alternates = append(r.alternates, nameIndex{key: key, entry: e})
		}
	}

	for _, rk := range regions {
		for _, kw := range rk.Keywords {
			if key := normalizeKey(kw); key != "" {
				r.regions = append(r.regions, regionIndex{key: key, region: rk.Region})
			}
		}
	}

	sortNames(r.canonical)
	sortNames(r.alternates)
	sort.SliceStable(r.regions, func(i, j int) bool {
		a, b := r.regions[i], r.regions[j]
		if la, lb := utf8.RuneCountInString(a.key), utf8.RuneCountInString(b.key); la != lb {
			return la > lb
		}
		if a.key != b.key {
			return a.key < b.key
		}
		return a.region < b.region
	})

	return r
}

// Resolve returns the best-effort location for text. It never fails.
func (r *Resolver) Resolve(text string) geo.LocationResult {
	normalized := strings.ToLower(text)

	for _, n := range r.canonical {
		if strings.Contains(normalized, n.key) {
			return resultFor(n.entry, geo.ConfidenceCanonical)
		}
	}

	for _, n := range r.alternates {
		if strings.Contains(normalized, n.key) {
			return resultFor(n.entry, geo.ConfidenceAlternate)
		}
	}

	for _, rk := range r.regions {
		if strings.Contains(normalized, rk.key) {
			return geo.LocationResult{
				Region:     rk.region,
				City:       geo.Unknown,
				Confidence: geo.ConfidenceRegion,
			}
		}
	}

	return geo.UnknownLocation()
}

func resultFor(e geo.LocationEntry, confidence float64) geo.LocationResult {
	return geo.LocationResult{
		Region:      e.Region,
		City:        e.Name,
		Division:    e.Division,
		Subdivision: e.Subdivision,
		Confidence:  confidence,
	}
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func sortNames(names []nameIndex) {
	sort.SliceStable(names, func(i, j int) bool {
		a, b := names[i], names[j]
		if la, lb := utf8.RuneCountInString(a.key), utf8.RuneCountInString(b.key); la != lb {
			return la > lb
		}
		if a.key != b.key {
			return a.key < b.key
		}
		return a.entry.Name < b.entry.Name
	})
}
