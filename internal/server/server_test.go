package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicpulse/internal/adapter/events"
	"civicpulse/internal/config"
	"civicpulse/internal/domain/geo"
	"civicpulse/internal/domain/rollup"
)

type stubResolver struct{}

func (stubResolver) Resolve(text string) geo.LocationResult {
	if strings.Contains(strings.ToLower(text), "douala") {
		return geo.LocationResult{Region: "Littoral", City: "Douala", Division: "Wouri", Confidence: geo.ConfidenceCanonical}
	}
	return geo.UnknownLocation()
}

type stubAggregator struct {
	windows []rollup.Window
	summary rollup.RunSummary
	err     error
}

func (s *stubAggregator) RunAggregation(ctx context.Context, window rollup.Window) (rollup.RunSummary, error) {
	s.windows = append(s.windows, window)
	if s.err != nil {
		return rollup.RunSummary{}, s.err
	}
	summary := s.summary
	summary.Window = window
	return summary, nil
}

type stubRollups struct {
	rows    []rollup.LocalityRollup
	regions []string
	err     error
}

func (s *stubRollups) Get(ctx context.Context, key rollup.LocalityKey) (rollup.LocalityRollup, error) {
	for _, r := range s.rows {
		if r.City == key.City && r.Region == key.Region && r.Date.Equal(key.Date) {
			return r, nil
		}
	}
	return rollup.LocalityRollup{}, fmt.Errorf("%s: %w", key, rollup.ErrNotFound)
}

func (s *stubRollups) List(ctx context.Context, date time.Time, region string) ([]rollup.LocalityRollup, error) {
	s.regions = append(s.regions, region)
	if s.err != nil {
		return nil, s.err
	}
	out := []rollup.LocalityRollup{}
	for _, r := range s.rows {
		if r.Date.Equal(date) && (region == "" || r.Region == region) {
			out = append(out, r)
		}
	}
	return out, nil
}

var day = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, agg *stubAggregator, rollups *stubRollups, feed *fakeFeed) http.Handler {
	t.Helper()
	deps := Dependencies{
		Resolver:   stubResolver{},
		Aggregator: agg,
		Rollups:    rollups,
	}
	if feed != nil {
		deps.Feed = feed
	}
	return NewServer(config.ServerConfig{CorsOrigins: []string{"*"}}, deps, nil).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, &stubAggregator{}, &stubRollups{}, nil)
	rec := do(t, h, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestResolveLocation(t *testing.T) {
	h := newTestServer(t, &stubAggregator{}, &stubRollups{}, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/locations/resolve", `{"text":"Heavy rain in DOUALA tonight"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "Douala", body["city"])
	assert.Equal(t, "Littoral", body["region"])
	assert.Equal(t, false, body["low_confidence"])

	rec = do(t, h, http.MethodPost, "/api/v1/locations/resolve", `{"text":"nothing here"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &body)
	assert.Equal(t, geo.Unknown, body["city"])
	assert.Equal(t, true, body["low_confidence"])

	rec = do(t, h, http.MethodPost, "/api/v1/locations/resolve", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunAggregation(t *testing.T) {
	agg := &stubAggregator{summary: rollup.RunSummary{
		RunID:            "run-1",
		CitiesProcessed:  2,
		RecordsAnalyzed:  9,
		FailedLocalities: []rollup.LocalityKey{{City: "Buea", Region: "Southwest", Date: day}},
	}}
	h := newTestServer(t, agg, &stubRollups{}, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/aggregations", `{"date":"2024-03-01"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "run-1", body["run_id"])
	assert.Equal(t, true, body["partial_failure"])
	require.Len(t, agg.windows, 1)
	assert.Equal(t, rollup.DayWindow(day), agg.windows[0])

	rec = do(t, h, http.MethodPost, "/api/v1/aggregations",
		`{"window_start":"2024-03-01T06:00:00Z","window_end":"2024-03-01T18:00:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, agg.windows, 2)
	assert.True(t, agg.windows[1].Start.Equal(day.Add(6*time.Hour)))
	assert.True(t, agg.windows[1].End.Equal(day.Add(18*time.Hour)))
}

func TestRunAggregation_Errors(t *testing.T) {
	tests := map[string]struct {
		body string
		err  error
		want int
	}{
		"bad json":        {body: `{`, want: http.StatusBadRequest},
		"no window":       {body: `{}`, want: http.StatusBadRequest},
		"bad date":        {body: `{"date":"01/03/2024"}`, want: http.StatusBadRequest},
		"invalid window":  {body: `{"date":"2024-03-01"}`, err: rollup.ErrInvalidWindow, want: http.StatusBadRequest},
		"fetch failure":   {body: `{"date":"2024-03-01"}`, err: fmt.Errorf("%w: timeout", rollup.ErrDataFetch), want: http.StatusBadGateway},
		"unexpected fail": {body: `{"date":"2024-03-01"}`, err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			h := newTestServer(t, &stubAggregator{err: tt.err}, &stubRollups{}, nil)
			rec := do(t, h, http.MethodPost, "/api/v1/aggregations", tt.body)
			assert.Equal(t, tt.want, rec.Code)

			var body map[string]string
			decode(t, rec, &body)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRollupRoutes(t *testing.T) {
	rollups := &stubRollups{rows: []rollup.LocalityRollup{
		{City: "Douala", Region: "Littoral", Date: day, Volume: 3, ThreatLevel: rollup.ThreatMedium},
		{City: "Bamenda", Region: "Northwest", Date: day, Volume: 2, ThreatLevel: rollup.ThreatLow},
	}}
	h := newTestServer(t, &stubAggregator{}, rollups, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/rollups?date=2024-03-01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []rollup.LocalityRollup
	decode(t, rec, &list)
	assert.Len(t, list, 2)

	rec = do(t, h, http.MethodGet, "/api/v1/rollups?date=2024-03-01&region=Northwest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Bamenda", list[0].City)
	assert.Equal(t, []string{"", "Northwest"}, rollups.regions)

	rec = do(t, h, http.MethodGet, "/api/v1/rollups?date=2024-03-02", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/v1/rollups", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/rollups/Littoral/Douala/2024-03-01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var one rollup.LocalityRollup
	decode(t, rec, &one)
	assert.Equal(t, 3, one.Volume)
	assert.Equal(t, rollup.ThreatMedium, one.ThreatLevel)

	rec = do(t, h, http.MethodGet, "/api/v1/rollups/Littoral/Edea/2024-03-01", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/rollups/Littoral/Douala/yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRollups_StoreError(t *testing.T) {
	h := newTestServer(t, &stubAggregator{}, &stubRollups{err: errors.New("connection reset")}, nil)
	rec := do(t, h, http.MethodGet, "/api/v1/rollups?date=2024-03-01", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type fakeFeed struct {
	mu         sync.Mutex
	handlers   []nats.MsgHandler
	subscribed chan struct{}
}

func (f *fakeFeed) Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error) {
	f.mu.Lock()
	f.handlers = append(f.handlers, cb)
	f.mu.Unlock()
	f.subscribed <- struct{}{}
	return nil, nil
}

func (f *fakeFeed) publish(t *testing.T, r rollup.LocalityRollup) {
	t.Helper()
	data, err := json.Marshal(events.RollupEvent{Type: "rollup_upserted", Rollup: r})
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.handlers {
		h(&nats.Msg{Subject: events.SubjectRollupUpserted, Data: data})
	}
}

func TestRollupFeed(t *testing.T) {
	feed := &fakeFeed{subscribed: make(chan struct{}, 1)}
	srv := httptest.NewServer(newTestServer(t, &stubAggregator{}, &stubRollups{}, feed))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/rollups?region=Littoral"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-feed.subscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("feed never subscribed")
	}

	feed.publish(t, rollup.LocalityRollup{City: "Bamenda", Region: "Northwest", Date: day})
	feed.publish(t, rollup.LocalityRollup{City: "Douala", Region: "Littoral", Date: day, Volume: 3})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event events.RollupEvent
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, "Douala", event.Rollup.City)
	assert.Equal(t, 3, event.Rollup.Volume)
}

func TestRollupFeed_NotMountedWithoutSubscriber(t *testing.T) {
	h := newTestServer(t, &stubAggregator{}, &stubRollups{}, nil)
	rec := do(t, h, http.MethodGet, "/ws/rollups", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
