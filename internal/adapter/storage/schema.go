// internal/adapter/storage/schema.go

package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

// schema creates the tables used by the record and rollup stores
const schema = `
CREATE TABLE IF NOT EXISTS content_records (
	id                   TEXT PRIMARY KEY,
	text                 TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMPTZ NOT NULL,
	sentiment_score      DOUBLE PRECISION NOT NULL DEFAULT 0,
	emotions             TEXT[] NOT NULL DEFAULT '{}',
	keywords             TEXT[] NOT NULL DEFAULT '{}',
	hashtags             TEXT[] NOT NULL DEFAULT '{}',
	threat_indicator     TEXT NOT NULL DEFAULT 'none',
	resolved_region      TEXT,
	resolved_city        TEXT,
	resolved_division    TEXT,
	resolved_subdivision TEXT,
	location_confidence  DOUBLE PRECISION
);

CREATE INDEX IF NOT EXISTS content_records_created_at_idx
	ON content_records (created_at)
	WHERE resolved_city IS NOT NULL;

CREATE INDEX IF NOT EXISTS content_records_unresolved_idx
	ON content_records (created_at)
	WHERE resolved_city IS NULL;

CREATE TABLE IF NOT EXISTS locality_rollups (
	city              TEXT NOT NULL,
	region            TEXT NOT NULL,
	date              DATE NOT NULL,
	volume            INTEGER NOT NULL,
	positive_count    INTEGER NOT NULL,
	negative_count    INTEGER NOT NULL,
	neutral_count     INTEGER NOT NULL,
	average_sentiment DOUBLE PRECISION NOT NULL,
	dominant_emotions TEXT[] NOT NULL,
	top_concerns      TEXT[] NOT NULL,
	trending_tags     TEXT[] NOT NULL,
	threat_level      TEXT NOT NULL,
	population        BIGINT,
	is_major_city     BOOLEAN,
	setting           TEXT,
	PRIMARY KEY (city, region, date),
	CHECK (positive_count + negative_count + neutral_count = volume)
);
`

// EnsureSchema creates the tables when they do not exist
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("error creating schema: %w", err)
	}
	return nil
}
