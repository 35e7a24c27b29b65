// internal/domain/rollup/store.go

package rollup

import (
	"context"
	"time"
)

// RecordSource reads tagged records
type RecordSource interface {
	// FetchWindow returns resolved records created within the window,
	// ordered by creation time then id
	FetchWindow(ctx context.Context, window Window) ([]RawContentRecord, error)
}

// Writer persists rollups
type Writer interface {
	// Upsert replaces the full row keyed by (city, region, date)
	Upsert(ctx context.Context, r LocalityRollup) error
}

// Reader reads persisted rollups
type Reader interface {
	// Get returns one rollup or ErrNotFound
	Get(ctx context.Context, key LocalityKey) (LocalityRollup, error)

	// List returns the rollups of a day, optionally restricted to a region
	List(ctx context.Context, date time.Time, region string) ([]LocalityRollup, error)
}

// Store is the full rollup persistence contract
type Store interface {
	Writer
	Reader
}

// Publisher announces aggregation results to other services
type Publisher interface {
	PublishRollup(ctx context.Context, r LocalityRollup) error
	PublishRunSummary(ctx context.Context, s RunSummary) error
}

// Aggregator runs windowed aggregations
type Aggregator interface {
	RunAggregation(ctx context.Context, window Window) (RunSummary, error)
}
