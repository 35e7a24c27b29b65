package geo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicpulse/internal/domain/geo"
	"civicpulse/internal/domain/rollup"
)

type fakePending struct {
	records []rollup.RawContentRecord
	err     error
	limit   int
}

func (f *fakePending) FetchUnresolved(ctx context.Context, limit int) ([]rollup.RawContentRecord, error) {
	f.limit = limit
	return f.records, f.err
}

type fakeWriter struct {
	saved map[string]geo.LocationResult
	fail  map[string]bool
}

func (f *fakeWriter) SaveResolution(ctx context.Context, id string, res geo.LocationResult) error {
	if f.fail[id] {
		return errors.New("write failed")
	}
	if f.saved == nil {
		f.saved = make(map[string]geo.LocationResult)
	}
	f.saved[id] = res
	return nil
}

func TestTagger_Tag(t *testing.T) {
	tagger := NewTagger(NewResolver(fixtureGazetteer(t), nil), nil, nil, nil)

	rec := rollup.RawContentRecord{ID: "1", Text: "water shortage in Buea"}
	require.True(t, tagger.Tag(&rec))
	assert.Equal(t, "Buea", *rec.ResolvedCity)
	assert.Equal(t, "Southwest", *rec.ResolvedRegion)
	assert.Equal(t, "Fako", *rec.ResolvedDivision)
	assert.Equal(t, "Buea", *rec.ResolvedSubdivision)

	// Resolved fields are written once
	rec.Text = "now in douala"
	assert.False(t, tagger.Tag(&rec))
	assert.Equal(t, "Buea", *rec.ResolvedCity)
}

func TestTagger_TagPending(t *testing.T) {
	source := &fakePending{records: []rollup.RawContentRecord{
		{ID: "a", Text: "douala traffic"},
		{ID: "b", Text: "nothing here"},
		{ID: "c", Text: "yde blackout"},
	}}
	writer := &fakeWriter{fail: map[string]bool{"b": true}}
	tagger := NewTagger(NewResolver(fixtureGazetteer(t), nil), source, writer, nil)

	n, err := tagger.TagPending(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, 10, source.limit)
	assert.Equal(t, "Douala", writer.saved["a"].City)
	assert.Equal(t, geo.ConfidenceAlternate, writer.saved["c"].Confidence)
	assert.NotContains(t, writer.saved, "b")
}

func TestTagger_TagPendingFetchError(t *testing.T) {
	source := &fakePending{err: errors.New("db down")}
	tagger := NewTagger(NewResolver(fixtureGazetteer(t), nil), source, &fakeWriter{}, nil)

	_, err := tagger.TagPending(context.Background(), 10)
	assert.Error(t, err)
}

func TestTagger_TagPendingWithoutStore(t *testing.T) {
	tagger := NewTagger(NewResolver(fixtureGazetteer(t), nil), nil, nil, nil)

	_, err := tagger.TagPending(context.Background(), 10)
	assert.Error(t, err)
}
