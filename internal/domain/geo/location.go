// internal/domain/geo/location.go

package geo

import (
	"context"
	"errors"
)

// Confidence tiers attached to a resolution, one per matching stage.
const (
	ConfidenceCanonical = 0.9
	ConfidenceAlternate = 0.8
	ConfidenceRegion    = 0.6
	ConfidenceUnknown   = 0.1
)

// LowConfidenceThreshold marks results downstream consumers should treat cautiously.
const LowConfidenceThreshold = 0.6

// Unknown is used for region and city when nothing could be resolved.
const Unknown = "Unknown"

// Settings reported in gazetteer metadata.
const (
	SettingUrban = "urban"
	SettingRural = "rural"
)

// ErrNotFound is returned when a gazetteer lookup has no entry.
var ErrNotFound = errors.New("locality not found")

// Coordinates is an optional point attached to a gazetteer entry
type Coordinates struct {
	Latitude  float64 `json:"lat" yaml:"lat"`
	Longitude float64 `json:"lng" yaml:"lng"`
}

// Metadata is the descriptive data carried by a gazetteer entry
type Metadata struct {
	Population  int64  `json:"population" yaml:"population"`
	IsMajorCity bool   `json:"is_major_city" yaml:"is_major_city"`
	Setting     string `json:"setting" yaml:"setting"`
}

// LocationEntry is one known locality in the gazetteer
type LocationEntry struct {
	Name           string       `json:"name" yaml:"name"`
	Region         string       `json:"region" yaml:"region"`
	Division       string       `json:"division,omitempty" yaml:"division"`
	Subdivision    string       `json:"subdivision,omitempty" yaml:"subdivision"`
	Coordinates    *Coordinates `json:"coordinates,omitempty" yaml:"coordinates"`
	AlternateNames []string     `json:"alternate_names,omitempty" yaml:"alternate_names"`
	Metadata       Metadata     `json:"metadata" yaml:"metadata"`
}

// LocationResult is the outcome of resolving a piece of text
type LocationResult struct {
	Region      string  `json:"region"`
	City        string  `json:"city"`
	Division    string  `json:"division,omitempty"`
	Subdivision string  `json:"subdivision,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// IsLowConfidence reports whether the result came from a region-level or empty match.
func (r LocationResult) IsLowConfidence() bool {
	return r.Confidence <= LowConfidenceThreshold
}

// UnknownLocation is the fallback result when no stage matches.
func UnknownLocation() LocationResult {
	return LocationResult{
		Region:     Unknown,
		City:       Unknown,
		Confidence: ConfidenceUnknown,
	}
}

// Gazetteer is the read-only dictionary of known localities
type Gazetteer interface {
	// Entries returns every entry. Callers must not depend on the order.
	Entries() []LocationEntry

	// Lookup returns metadata for a city within a region, or ErrNotFound
	Lookup(ctx context.Context, city, region string) (Metadata, error)
}

// Resolver maps free text to a location
type Resolver interface {
	// Resolve never fails; the worst case is UnknownLocation()
	Resolve(text string) LocationResult
}
