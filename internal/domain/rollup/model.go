// internal/domain/rollup/model.go

package rollup

import (
	"errors"
	"fmt"
	"time"

	"civicpulse/internal/domain/geo"
)

// ThreatIndicator is the per-record coarse threat flag
type ThreatIndicator string

// Threat indicators set by upstream tagging
const (
	IndicatorNone   ThreatIndicator = "none"
	IndicatorLow    ThreatIndicator = "low"
	IndicatorMedium ThreatIndicator = "medium"
	IndicatorHigh   ThreatIndicator = "high"
)

// IsThreat reports whether the indicator counts towards the threat ratio.
// An empty indicator is treated as none.
func (t ThreatIndicator) IsThreat() bool {
	return t != "" && t != IndicatorNone
}

// ThreatLevel is the locality-level classification
type ThreatLevel string

// Threat levels produced by the classifier
const (
	ThreatLow    ThreatLevel = "low"
	ThreatMedium ThreatLevel = "medium"
	ThreatHigh   ThreatLevel = "high"
)

// Ranked list sizes
const (
	TopEmotions = 5
	TopConcerns = 3
	TopTags     = 5
)

var (
	// ErrNotFound is returned when a rollup does not exist
	ErrNotFound = errors.New("rollup not found")

	// ErrDataFetch wraps failures of the windowed record fetch
	ErrDataFetch = errors.New("record fetch failed")

	// ErrInvalidWindow is returned when the window end is not after its start
	ErrInvalidWindow = errors.New("invalid aggregation window")
)

// RawContentRecord is a tagged piece of civic content
type RawContentRecord struct {
	ID              string          `json:"id"`
	Text            string          `json:"text"`
	CreatedAt       time.Time       `json:"created_at"`
	SentimentScore  float64         `json:"sentiment_score"`
	Emotions        []string        `json:"emotions"`
	Keywords        []string        `json:"keywords"`
	Hashtags        []string        `json:"hashtags"`
	ThreatIndicator ThreatIndicator `json:"threat_indicator"`

	// Resolved location, nil until resolution runs
	ResolvedRegion      *string  `json:"resolved_region,omitempty"`
	ResolvedCity        *string  `json:"resolved_city,omitempty"`
	ResolvedDivision    *string  `json:"resolved_division,omitempty"`
	ResolvedSubdivision *string  `json:"resolved_subdivision,omitempty"`
	LocationConfidence  *float64 `json:"location_confidence,omitempty"`
}

// IsResolved reports whether the record carries a resolved city
func (r *RawContentRecord) IsResolved() bool {
	return r.ResolvedCity != nil
}

// ApplyResolution copies a resolution result onto the record
func (r *RawContentRecord) ApplyResolution(res geo.LocationResult) {
	region, city := res.Region, res.City
	confidence := res.Confidence
	r.ResolvedRegion = &region
	r.ResolvedCity = &city
	r.ResolvedDivision = optional(res.Division)
	r.ResolvedSubdivision = optional(res.Subdivision)
	r.LocationConfidence = &confidence
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Window is a half-open time interval [Start, End)
type Window struct {
	Start time.Time `json:"window_start"`
	End   time.Time `json:"window_end"`
}

// Validate checks that End is after Start
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("%w: both bounds are required", ErrInvalidWindow)
	}
	if !w.End.After(w.Start) {
		return fmt.Errorf("%w: end %s is not after start %s", ErrInvalidWindow,
			w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Day returns the calendar day (UTC) the window's rollups are keyed under
func (w Window) Day() time.Time {
	return DayOf(w.Start)
}

// DayWindow returns the window covering one UTC calendar day
func DayWindow(day time.Time) Window {
	start := DayOf(day)
	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}

// DayOf truncates t to midnight UTC of its calendar day
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// LocalityKey identifies a rollup row
type LocalityKey struct {
	City   string    `json:"city"`
	Region string    `json:"region"`
	Date   time.Time `json:"date"`
}

// String renders the key as region/city/date
func (k LocalityKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Region, k.City, k.Date.Format(time.DateOnly))
}

// SentimentBreakdown counts records per sentiment bucket
type SentimentBreakdown struct {
	Positive int     `json:"positive"`
	Negative int     `json:"negative"`
	Neutral  int     `json:"neutral"`
	Average  float64 `json:"average"`
}

// Total returns the number of records counted
func (s SentimentBreakdown) Total() int {
	return s.Positive + s.Negative + s.Neutral
}

// LocalityRollup is the daily aggregate for one locality
type LocalityRollup struct {
	City             string             `json:"city"`
	Region           string             `json:"region"`
	Date             time.Time          `json:"date"`
	Volume           int                `json:"volume"`
	Sentiment        SentimentBreakdown `json:"sentiment"`
	DominantEmotions []string           `json:"dominant_emotions"`
	TopConcerns      []string           `json:"top_concerns"`
	TrendingTags     []string           `json:"trending_tags"`
	ThreatLevel      ThreatLevel        `json:"threat_level"`

	// Gazetteer pass-through, nil when the locality is unknown
	Metadata *geo.Metadata `json:"metadata"`
}

// Key returns the rollup's composite key
func (r LocalityRollup) Key() LocalityKey {
	return LocalityKey{City: r.City, Region: r.Region, Date: r.Date}
}

// RunSummary reports the outcome of one aggregation run
type RunSummary struct {
	RunID            string        `json:"run_id"`
	Window           Window        `json:"window"`
	CitiesProcessed  int           `json:"cities_processed"`
	RecordsAnalyzed  int           `json:"records_analyzed"`
	FailedLocalities []LocalityKey `json:"failed_localities"`
	StartedAt        time.Time     `json:"started_at"`
	FinishedAt       time.Time     `json:"finished_at"`
}

// PartialFailure reports whether any locality failed to persist
func (s RunSummary) PartialFailure() bool {
	return len(s.FailedLocalities) > 0
}
