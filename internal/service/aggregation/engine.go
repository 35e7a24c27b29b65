// internal/service/aggregation/engine.go

package aggregation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"civicpulse/internal/domain/geo"
	"civicpulse/internal/domain/rollup"
)

// EngineConfig contains configuration for the aggregation engine
type EngineConfig struct {
	Workers       int
	FetchTimeout  time.Duration
	UpsertTimeout time.Duration
}

// DefaultEngineConfig returns the defaults used when a field is left zero
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Workers:       4,
		FetchTimeout:  30 * time.Second,
		UpsertTimeout: 10 * time.Second,
	}
}

// Engine rolls tagged records up into per-locality daily summaries
type Engine struct {
	source    rollup.RecordSource
	store     rollup.Writer
	gazetteer geo.Gazetteer
	publisher rollup.Publisher
	config    EngineConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngine creates a new aggregation engine. publisher may be nil.
func NewEngine(
	source rollup.RecordSource,
	store rollup.Writer,
	gazetteer geo.Gazetteer,
	publisher rollup.Publisher,
	config EngineConfig,
	logger *zap.Logger,
) *Engine {
	defaults := DefaultEngineConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = defaults.FetchTimeout
	}
	if config.UpsertTimeout <= 0 {
		config.UpsertTimeout = defaults.UpsertTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		source:    source,
		store:     store,
		gazetteer: gazetteer,
		publisher: publisher,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// group accumulates the records of one locality
type group struct {
	city     string
	region   string
	scores   []float64
	emotions []string
	concerns []string
	tags     []string
	threats  int
}

func (g *group) add(r *rollup.RawContentRecord) {
	g.scores = append(g.scores, r.SentimentScore)
	g.emotions = append(g.emotions, r.Emotions...)
	g.concerns = append(g.concerns, r.Keywords...)
	g.tags = append(g.tags, r.Hashtags...)
	if r.ThreatIndicator.IsThreat() {
		g.threats++
	}
}

func (g *group) volume() int {
	return len(g.scores)
}

// RunAggregation computes and upserts rollups for every locality with
// records in the window. A failed fetch aborts the run with an error
// wrapping rollup.ErrDataFetch; a failed upsert only marks its locality
// in the summary.
func (e *Engine) RunAggregation(ctx context.Context, window rollup.Window) (rollup.RunSummary, error) {
	summary := rollup.RunSummary{
		RunID:            uuid.New().String(),
		Window:           window,
		FailedLocalities: []rollup.LocalityKey{},
		StartedAt:        e.now().UTC(),
	}

	if err := window.Validate(); err != nil {
		return summary, err
	}

	log := e.logger.With(
		zap.String("run_id", summary.RunID),
		zap.Time("window_start", window.Start),
		zap.Time("window_end", window.End),
	)

	fetchCtx, cancel := context.WithTimeout(ctx, e.config.FetchTimeout)
	records, err := e.source.FetchWindow(fetchCtx, window)
	cancel()
	if err != nil {
		log.Error("Aborting aggregation run", zap.Error(err))
		return summary, fmt.Errorf("%w: %w", rollup.ErrDataFetch, err)
	}

	groups := groupRecords(records, window)
	for _, g := range groups {
		summary.RecordsAnalyzed += g.volume()
	}

	log.Info("Aggregating localities",
		zap.Int("records", summary.RecordsAnalyzed),
		zap.Int("localities", len(groups)))

	day := window.Day()

	var (
		mu        sync.Mutex
		processed int
		failed    []rollup.LocalityKey
	)

	var eg errgroup.Group
	eg.SetLimit(e.config.Workers)

	for _, g := range groups {
		g := g
		eg.Go(func() error {
			r := e.buildRollup(ctx, g, day, log)

			if err := e.upsert(ctx, r); err != nil {
				log.Warn("Failed to upsert rollup",
					zap.String("city", r.City),
					zap.String("region", r.Region),
					zap.Error(err))

				mu.Lock()
				failed = append(failed, r.Key())
				mu.Unlock()
				return nil
			}

			mu.Lock()
			processed++
			mu.Unlock()

			if e.publisher != nil {
				if err := e.publisher.PublishRollup(ctx, r); err != nil {
					log.Warn("Failed to publish rollup event",
						zap.String("city", r.City),
						zap.String("region", r.Region),
						zap.Error(err))
				}
			}
			return nil
		})
	}

	// Workers never return errors; failures are collected above
	_ = eg.Wait()

	sortKeys(failed)
	summary.CitiesProcessed = processed
	if failed != nil {
		summary.FailedLocalities = failed
	}
	summary.FinishedAt = e.now().UTC()

	log.Info("Aggregation run finished",
		zap.Int("cities_processed", summary.CitiesProcessed),
		zap.Int("records", summary.RecordsAnalyzed),
		zap.Int("failed", len(summary.FailedLocalities)),
		zap.Duration("took", summary.FinishedAt.Sub(summary.StartedAt)))

	if e.publisher != nil {
		if err := e.publisher.PublishRunSummary(ctx, summary); err != nil {
			log.Warn("Failed to publish run summary", zap.Error(err))
		}
	}

	return summary, nil
}

// RunDay aggregates the UTC calendar day containing day
func (e *Engine) RunDay(ctx context.Context, day time.Time) (rollup.RunSummary, error) {
	return e.RunAggregation(ctx, rollup.DayWindow(day))
}

func (e *Engine) upsert(ctx context.Context, r rollup.LocalityRollup) error {
	upsertCtx, cancel := context.WithTimeout(ctx, e.config.UpsertTimeout)
	defer cancel()
	return e.store.Upsert(upsertCtx, r)
}

// buildRollup computes the rollup of one group and enriches it with
// gazetteer metadata when the locality is known
func (e *Engine) buildRollup(ctx context.Context, g *group, day time.Time, log *zap.Logger) rollup.LocalityRollup {
	r := summarize(g, day)
	r.Metadata = e.lookupMetadata(ctx, g.city, g.region, log)
	return r
}

func (e *Engine) lookupMetadata(ctx context.Context, city, region string, log *zap.Logger) *geo.Metadata {
	if e.gazetteer == nil || city == geo.Unknown {
		return nil
	}

	md, err := e.gazetteer.Lookup(ctx, city, region)
	if err != nil {
		if !errors.Is(err, geo.ErrNotFound) {
			log.Warn("Gazetteer lookup failed",
				zap.String("city", city),
				zap.String("region", region),
				zap.Error(err))
		}
		return nil
	}
	return &md
}

// summarize computes the statistics of a group, without metadata
func summarize(g *group, day time.Time) rollup.LocalityRollup {
	volume := g.volume()

	var ratio float64
	if volume > 0 {
		ratio = float64(g.threats) / float64(volume)
	}

	return rollup.LocalityRollup{
		City:             g.city,
		Region:           g.region,
		Date:             rollup.DayOf(day),
		Volume:           volume,
		Sentiment:        Breakdown(g.scores),
		DominantEmotions: TopN(g.emotions, rollup.TopEmotions),
		TopConcerns:      TopN(g.concerns, rollup.TopConcerns),
		TrendingTags:     TopN(g.tags, rollup.TopTags),
		ThreatLevel:      ClassifyThreat(ratio),
	}
}

// groupRecords groups resolved in-window records by (city, region),
// preserving record order within a group. Groups come back sorted by
// region then city.
func groupRecords(records []rollup.RawContentRecord, window rollup.Window) []*group {
	byKey := make(map[[2]string]*group)
	for i := range records {
		r := &records[i]
		if r.ResolvedCity == nil || !window.Contains(r.CreatedAt) {
			continue
		}

		var region string
		if r.ResolvedRegion != nil {
			region = *r.ResolvedRegion
		}

		key := [2]string{*r.ResolvedCity, region}
		g, ok := byKey[key]
		if !ok {
			g = &group{city: key[0], region: key[1]}
			byKey[key] = g
		}
		g.add(r)
	}

	groups := make([]*group, 0, len(byKey))
	for _, g := range byKey {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].region != groups[j].region {
			return groups[i].region < groups[j].region
		}
		return groups[i].city < groups[j].city
	})

	return groups
}

func sortKeys(keys []rollup.LocalityKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Region != keys[j].Region {
			return keys[i].Region < keys[j].Region
		}
		return keys[i].City < keys[j].City
	})
}
