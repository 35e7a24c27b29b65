// internal/service/geo/tagger.go

package geo

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"civicpulse/internal/domain/geo"
	"civicpulse/internal/domain/rollup"
)

// PendingSource reads records whose location has not been resolved yet
type PendingSource interface {
	FetchUnresolved(ctx context.Context, limit int) ([]rollup.RawContentRecord, error)
}

// ResolutionWriter stores a resolution. Implementations must only write
// records that are still unresolved.
type ResolutionWriter interface {
	SaveResolution(ctx context.Context, recordID string, result geo.LocationResult) error
}

// Tagger attaches resolved locations to content records
type Tagger struct {
	resolver geo.Resolver
	source   PendingSource
	writer   ResolutionWriter
	logger   *zap.Logger
}

// NewTagger creates a new tagger. source and writer may be nil when only Tag is used.
func NewTagger(resolver geo.Resolver, source PendingSource, writer ResolutionWriter, logger *zap.Logger) *Tagger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tagger{
		resolver: resolver,
		source:   source,
		writer:   writer,
		logger:   logger,
	}
}

// Tag resolves an unresolved record in place and reports whether it changed it
func (t *Tagger) Tag(record *rollup.RawContentRecord) bool {
	if record.IsResolved() {
		return false
	}
	record.ApplyResolution(t.resolver.Resolve(record.Text))
	return true
}

// TagPending resolves up to limit unresolved records and persists the results.
// It returns how many records were written.
func (t *Tagger) TagPending(ctx context.Context, limit int) (int, error) {
	if t.source == nil || t.writer == nil {
		return 0, fmt.Errorf("tagger has no record store")
	}

	records, err := t.source.FetchUnresolved(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("error fetching unresolved records: %w", err)
	}

	tagged := 0
	for i := range records {
		if err := ctx.Err(); err != nil {
			return tagged, err
		}

		res := t.resolver.Resolve(records[i].Text)
		if err := t.writer.SaveResolution(ctx, records[i].ID, res); err != nil {
			t.logger.Warn("Failed to save resolution",
				zap.String("record_id", records[i].ID),
				zap.Error(err))
			continue
		}

		if res.IsLowConfidence() {
			t.logger.Debug("Low confidence resolution",
				zap.String("record_id", records[i].ID),
				zap.String("region", res.Region),
				zap.Float64("confidence", res.Confidence))
		}
		tagged++
	}

	t.logger.Info("Tagged pending records",
		zap.Int("fetched", len(records)),
		zap.Int("tagged", tagged))

	return tagged, nil
}
