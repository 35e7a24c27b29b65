package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicpulse/internal/domain/geo"
	"civicpulse/internal/domain/rollup"
)

// testPool connects to the database named by CIVICPULSE_TEST_DATABASE_URL
// and skips the test when it is unset
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("CIVICPULSE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CIVICPULSE_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := pgxpool.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, EnsureSchema(ctx, db))
	// Running twice must be harmless
	require.NoError(t, EnsureSchema(ctx, db))

	return db
}

func str(s string) *string { return &s }

func TestRecordStore_FetchWindowAndResolution(t *testing.T) {
	db := testPool(t)
	ctx := context.Background()
	store := NewRecordStore(db)

	// Isolate this run in a far-off day
	day := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(time.Now().UnixNano()%10000))
	window := rollup.DayWindow(day)

	resolvedID := uuid.NewString()
	pendingID := uuid.NewString()
	outsideID := uuid.NewString()

	require.NoError(t, store.SaveRecord(ctx, rollup.RawContentRecord{
		ID:             resolvedID,
		Text:           "flooding in douala",
		CreatedAt:      day.Add(2 * time.Hour),
		SentimentScore: -0.4,
		Emotions:       []string{"fear"},
		Keywords:       []string{"flooding"},
		ResolvedRegion: str("Littoral"),
		ResolvedCity:   str("Douala"),
	}))
	require.NoError(t, store.SaveRecord(ctx, rollup.RawContentRecord{
		ID:        pendingID,
		Text:      "power cut in bamenda",
		CreatedAt: day.Add(3 * time.Hour),
	}))
	require.NoError(t, store.SaveRecord(ctx, rollup.RawContentRecord{
		ID:             outsideID,
		Text:           "next day",
		CreatedAt:      window.End,
		ResolvedRegion: str("Littoral"),
		ResolvedCity:   str("Douala"),
	}))

	records, err := store.FetchWindow(ctx, window)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, resolvedID, records[0].ID)
	assert.Equal(t, rollup.IndicatorNone, records[0].ThreatIndicator)
	assert.Equal(t, []string{"fear"}, records[0].Emotions)
	assert.Empty(t, records[0].Hashtags)

	res := geo.LocationResult{Region: "Northwest", City: "Bamenda", Division: "Mezam", Confidence: geo.ConfidenceCanonical}
	require.NoError(t, store.SaveResolution(ctx, pendingID, res))

	// A second resolution does not overwrite the first
	require.NoError(t, store.SaveResolution(ctx, pendingID, geo.UnknownLocation()))

	records, err = store.FetchWindow(ctx, window)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, pendingID, records[1].ID)
	require.NotNil(t, records[1].ResolvedCity)
	assert.Equal(t, "Bamenda", *records[1].ResolvedCity)
	require.NotNil(t, records[1].ResolvedDivision)
	assert.Equal(t, "Mezam", *records[1].ResolvedDivision)
	assert.Nil(t, records[1].ResolvedSubdivision)
}

func TestRollupStore_UpsertGetList(t *testing.T) {
	db := testPool(t)
	ctx := context.Background()
	store := NewRollupStore(db)

	day := time.Date(2002, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(time.Now().UnixNano()%10000))
	region := "Region-" + uuid.NewString()

	douala := rollup.LocalityRollup{
		City:             "Douala",
		Region:           region,
		Date:             day,
		Volume:           3,
		Sentiment:        rollup.SentimentBreakdown{Positive: 1, Negative: 1, Neutral: 1, Average: 0.02},
		DominantEmotions: []string{"anger", "fear"},
		TopConcerns:      []string{"flooding"},
		TrendingTags:     []string{},
		ThreatLevel:      rollup.ThreatMedium,
		Metadata:         &geo.Metadata{Population: 3663000, IsMajorCity: true, Setting: geo.SettingUrban},
	}
	unknown := rollup.LocalityRollup{
		City:             geo.Unknown,
		Region:           region,
		Date:             day,
		Volume:           5,
		Sentiment:        rollup.SentimentBreakdown{Neutral: 5},
		DominantEmotions: []string{},
		TopConcerns:      []string{},
		TrendingTags:     []string{},
		ThreatLevel:      rollup.ThreatLow,
	}

	require.NoError(t, store.Upsert(ctx, douala))
	require.NoError(t, store.Upsert(ctx, unknown))

	got, err := store.Get(ctx, douala.Key())
	require.NoError(t, err)
	assert.Equal(t, douala.Key(), got.Key())
	assert.Equal(t, douala.Sentiment, got.Sentiment)
	assert.Equal(t, douala.DominantEmotions, got.DominantEmotions)
	assert.Equal(t, douala.TopConcerns, got.TopConcerns)
	assert.Empty(t, got.TrendingTags)
	assert.Equal(t, rollup.ThreatMedium, got.ThreatLevel)
	assert.Equal(t, douala.Metadata, got.Metadata)

	// Upsert replaces the whole row
	douala.Volume = 4
	douala.Sentiment.Neutral = 2
	douala.Metadata = nil
	require.NoError(t, store.Upsert(ctx, douala))

	got, err = store.Get(ctx, douala.Key())
	require.NoError(t, err)
	assert.Equal(t, 4, got.Volume)
	assert.Nil(t, got.Metadata)

	list, err := store.List(ctx, day, region)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, geo.Unknown, list[0].City)
	assert.Equal(t, "Douala", list[1].City)

	_, err = store.Get(ctx, rollup.LocalityKey{City: "Nowhere", Region: region, Date: day})
	assert.ErrorIs(t, err, rollup.ErrNotFound)
}
