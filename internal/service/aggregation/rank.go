// internal/service/aggregation/rank.go

package aggregation

import (
	"sort"

	"civicpulse/internal/domain/rollup"
)

// Sentiment bucket thresholds, exclusive on both sides
const (
	PositiveThreshold = 0.1
	NegativeThreshold = -0.1
)

// Threat ratio thresholds, exclusive
const (
	HighThreatRatio   = 0.3
	MediumThreatRatio = 0.15
)

// TopN returns the n most frequent items, most frequent first. Equal counts
// are ordered by ascending item. Empty strings are not counted.
func TopN(items []string, n int) []string {
	if n <= 0 {
		return []string{}
	}

	counts := make(map[string]int, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		counts[item]++
	}

	ranked := make([]string, 0, len(counts))
	for item := range counts {
		ranked = append(ranked, item)
	}

	sort.Slice(ranked, func(i, j int) bool {
		ci, cj := counts[ranked[i]], counts[ranked[j]]
		if ci != cj {
			return ci > cj
		}
		return ranked[i] < ranked[j]
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// ClassifyThreat maps the share of flagged records to a threat level
func ClassifyThreat(ratio float64) rollup.ThreatLevel {
	switch {
	case ratio > HighThreatRatio:
		return rollup.ThreatHigh
	case ratio > MediumThreatRatio:
		return rollup.ThreatMedium
	default:
		return rollup.ThreatLow
	}
}

// Breakdown buckets sentiment scores and averages them in the given order
func Breakdown(scores []float64) rollup.SentimentBreakdown {
	var b rollup.SentimentBreakdown
	if len(scores) == 0 {
		return b
	}

	var sum float64
	for _, s := range scores {
		switch {
		case s > PositiveThreshold:
			b.Positive++
		case s < NegativeThreshold:
			b.Negative++
		default:
			b.Neutral++
		}
		sum += s
	}
	b.Average = sum / float64(len(scores))

	return b
}
