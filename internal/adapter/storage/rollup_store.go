// internal/adapter/storage/rollup_store.go

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"civicpulse/internal/domain/geo"
	"civicpulse/internal/domain/rollup"
)

const rollupColumns = `
	city, region, date, volume,
	positive_count, negative_count, neutral_count, average_sentiment,
	dominant_emotions, top_concerns, trending_tags, threat_level,
	population, is_major_city, setting`

// RollupStore implements storage for locality rollups
type RollupStore struct {
	db *pgxpool.Pool
}

// NewRollupStore creates a new rollup store
func NewRollupStore(db *pgxpool.Pool) *RollupStore {
	return &RollupStore{
		db: db,
	}
}

// Upsert writes a rollup, replacing every column of an existing row with
// the same (city, region, date)
func (s *RollupStore) Upsert(ctx context.Context, r rollup.LocalityRollup) error {
	query := `
		INSERT INTO locality_rollups (` + rollupColumns + `
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12,
			$13, $14, $15
		)
		ON CONFLICT (city, region, date) DO UPDATE
		SET
			volume = EXCLUDED.volume,
			positive_count = EXCLUDED.positive_count,
			negative_count = EXCLUDED.negative_count,
			neutral_count = EXCLUDED.neutral_count,
			average_sentiment = EXCLUDED.average_sentiment,
			dominant_emotions = EXCLUDED.dominant_emotions,
			top_concerns = EXCLUDED.top_concerns,
			trending_tags = EXCLUDED.trending_tags,
			threat_level = EXCLUDED.threat_level,
			population = EXCLUDED.population,
			is_major_city = EXCLUDED.is_major_city,
			setting = EXCLUDED.setting
	`

	// Nullable metadata columns
	var population *int64
	var isMajorCity *bool
	var setting *string
	if r.Metadata != nil {
		population = &r.Metadata.Population
		isMajorCity = &r.Metadata.IsMajorCity
		setting = &r.Metadata.Setting
	}

	_, err := s.db.Exec(
		ctx,
		query,
		r.City,
		r.Region,
		rollup.DayOf(r.Date),
		r.Volume,
		r.Sentiment.Positive,
		r.Sentiment.Negative,
		r.Sentiment.Neutral,
		r.Sentiment.Average,
		nonNil(r.DominantEmotions),
		nonNil(r.TopConcerns),
		nonNil(r.TrendingTags),
		string(r.ThreatLevel),
		population,
		isMajorCity,
		setting,
	)
	if err != nil {
		return fmt.Errorf("error upserting rollup %s: %w", r.Key(), err)
	}

	return nil
}

// Get retrieves one rollup by key
func (s *RollupStore) Get(ctx context.Context, key rollup.LocalityKey) (rollup.LocalityRollup, error) {
	query := `SELECT` + rollupColumns + `
		FROM locality_rollups
		WHERE city = $1 AND region = $2 AND date = $3
	`

	r, err := scanRollup(s.db.QueryRow(ctx, query, key.City, key.Region, rollup.DayOf(key.Date)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rollup.LocalityRollup{}, fmt.Errorf("%s: %w", key, rollup.ErrNotFound)
		}
		return rollup.LocalityRollup{}, fmt.Errorf("error querying rollup: %w", err)
	}

	return r, nil
}

// List returns the rollups of a day ordered by volume, optionally filtered by region
func (s *RollupStore) List(ctx context.Context, date time.Time, region string) ([]rollup.LocalityRollup, error) {
	query := `SELECT` + rollupColumns + `
		FROM locality_rollups
		WHERE date = $1
	`
	args := []interface{}{rollup.DayOf(date)}

	if region != "" {
		query += " AND region = $2"
		args = append(args, region)
	}

	query += " ORDER BY volume DESC, city ASC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	rollups := []rollup.LocalityRollup{}
	for rows.Next() {
		r, err := scanRollup(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning rollup: %w", err)
		}
		rollups = append(rollups, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rollups: %w", err)
	}

	return rollups, nil
}

func scanRollup(row pgx.Row) (rollup.LocalityRollup, error) {
	var r rollup.LocalityRollup
	var threat string
	var population *int64
	var isMajorCity *bool
	var setting *string

	err := row.Scan(
		&r.City,
		&r.Region,
		&r.Date,
		&r.Volume,
		&r.Sentiment.Positive,
		&r.Sentiment.Negative,
		&r.Sentiment.Neutral,
		&r.Sentiment.Average,
		&r.DominantEmotions,
		&r.TopConcerns,
		&r.TrendingTags,
		&threat,
		&population,
		&isMajorCity,
		&setting,
	)
	if err != nil {
		return rollup.LocalityRollup{}, err
	}

	r.ThreatLevel = rollup.ThreatLevel(threat)
	r.Date = rollup.DayOf(r.Date)

	// Metadata is written all-or-nothing
	if population != nil {
		md := geo.Metadata{Population: *population}
		if isMajorCity != nil {
			md.IsMajorCity = *isMajorCity
		}
		if setting != nil {
			md.Setting = *setting
		}
		r.Metadata = &md
	}

	return r, nil
}
