// internal/adapter/storage/record_store.go

package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"civicpulse/internal/domain/geo"
	"civicpulse/internal/domain/rollup"
)

const recordColumns = `
	id, text, created_at, sentiment_score, emotions, keywords, hashtags,
	threat_indicator, resolved_region, resolved_city, resolved_division,
	resolved_subdivision, location_confidence`

// RecordStore reads and tags content records
type RecordStore struct {
	db *pgxpool.Pool
}

// NewRecordStore creates a new record store
func NewRecordStore(db *pgxpool.Pool) *RecordStore {
	return &RecordStore{
		db: db,
	}
}

// FetchWindow returns resolved records with created_at in [start, end)
func (s *RecordStore) FetchWindow(ctx context.Context, window rollup.Window) ([]rollup.RawContentRecord, error) {
	query := `SELECT` + recordColumns + `
		FROM content_records
		WHERE created_at >= $1
		AND created_at < $2
		AND resolved_city IS NOT NULL
		ORDER BY created_at, id
	`

	rows, err := s.db.Query(ctx, query, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// FetchUnresolved returns up to limit records that have no resolved city
func (s *RecordStore) FetchUnresolved(ctx context.Context, limit int) ([]rollup.RawContentRecord, error) {
	query := `SELECT` + recordColumns + `
		FROM content_records
		WHERE resolved_city IS NULL
		ORDER BY created_at, id
		LIMIT $1
	`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// SaveResolution writes a resolution onto a record that is still unresolved.
// Already resolved records are left untouched.
func (s *RecordStore) SaveResolution(ctx context.Context, recordID string, result geo.LocationResult) error {
	query := `
		UPDATE content_records
		SET
			resolved_region = $2,
			resolved_city = $3,
			resolved_division = NULLIF($4, ''),
			resolved_subdivision = NULLIF($5, ''),
			location_confidence = $6
		WHERE id = $1
		AND resolved_city IS NULL
	`

	_, err := s.db.Exec(
		ctx,
		query,
		recordID,
		result.Region,
		result.City,
		result.Division,
		result.Subdivision,
		result.Confidence,
	)
	if err != nil {
		return fmt.Errorf("error executing query: %w", err)
	}

	return nil
}

// SaveRecord inserts a record, replacing one with the same id
func (s *RecordStore) SaveRecord(ctx context.Context, r rollup.RawContentRecord) error {
	query := `
		INSERT INTO content_records (` + recordColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13
		)
		ON CONFLICT (id) DO UPDATE
		SET
			text = $2,
			created_at = $3,
			sentiment_score = $4,
			emotions = $5,
			keywords = $6,
			hashtags = $7,
			threat_indicator = $8,
			resolved_region = $9,
			resolved_city = $10,
			resolved_division = $11,
			resolved_subdivision = $12,
			location_confidence = $13
	`

	threat := r.ThreatIndicator
	if threat == "" {
		threat = rollup.IndicatorNone
	}

	_, err := s.db.Exec(
		ctx,
		query,
		r.ID,
		r.Text,
		r.CreatedAt,
		r.SentimentScore,
		nonNil(r.Emotions),
		nonNil(r.Keywords),
		nonNil(r.Hashtags),
		string(threat),
		r.ResolvedRegion,
		r.ResolvedCity,
		r.ResolvedDivision,
		r.ResolvedSubdivision,
		r.LocationConfidence,
	)
	if err != nil {
		return fmt.Errorf("error executing query: %w", err)
	}

	return nil
}

func scanRecords(rows pgx.Rows) ([]rollup.RawContentRecord, error) {
	var records []rollup.RawContentRecord
	for rows.Next() {
		var r rollup.RawContentRecord
		var threat string

		err := rows.Scan(
			&r.ID,
			&r.Text,
			&r.CreatedAt,
			&r.SentimentScore,
			&r.Emotions,
			&r.Keywords,
			&r.Hashtags,
			&threat,
			&r.ResolvedRegion,
			&r.ResolvedCity,
			&r.ResolvedDivision,
			&r.ResolvedSubdivision,
			&r.LocationConfidence,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning record: %w", err)
		}

		r.ThreatIndicator = rollup.ThreatIndicator(threat)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
