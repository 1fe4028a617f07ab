package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kl8-predictor/internal/api"
	"kl8-predictor/internal/cache"
	"kl8-predictor/internal/config"
	"kl8-predictor/internal/database"
	"kl8-predictor/internal/draw"
	"kl8-predictor/internal/report"
	"kl8-predictor/internal/testutil"
)

type fakeSource struct {
	records []draw.Record
	err     error
	since   []string
}

func (f *fakeSource) FetchDraws(_ context.Context, startDate string) ([]draw.Record, error) {
	f.since = append(f.since, startDate)
	return f.records, f.err
}

type memoryStore struct {
	set *draw.Set
}

func (s *memoryStore) Load() (*draw.Set, error) { return s.set, nil }

func (s *memoryStore) Save(records []draw.Record) error {
	s.set, _ = s.set.Merge(records)
	return nil
}

type fakeLedger struct {
	saved   []*database.Prediction
	pending []database.Prediction
	updates map[int64]int
}

func (l *fakeLedger) SavePrediction(p *database.Prediction) error {
	l.saved = append(l.saved, p)
	return nil
}

func (l *fakeLedger) GetPendingPredictions(time.Time) ([]database.Prediction, error) {
	return l.pending, nil
}

func (l *fakeLedger) UpdatePredictionResult(id int64, _ draw.Record, hits int) error {
	l.updates[id] = hits
	return nil
}

type fakeBroadcaster struct {
	reports []*report.PredictionReport
}

func (b *fakeBroadcaster) Broadcast(r *report.PredictionReport) error {
	b.reports = append(b.reports, r)
	return nil
}

func newTestApp(t *testing.T, source *fakeSource) (*App, *memoryStore, *fakeLedger, *fakeBroadcaster) {
	t.Helper()

	cfg := config.Default()
	cfg.Predictor.Groups = 2

	store := &memoryStore{set: testutil.ConsecutiveDays(10)}
	cm := cache.NewCacheManager(store, time.Hour)
	t.Cleanup(func() { cm.Close() })

	ledger := &fakeLedger{updates: make(map[int64]int)}
	bc := &fakeBroadcaster{}
	app := &App{
		config:       cfg,
		closeStore:   func() error { return nil },
		cacheManager: cm,
		source:       source,
		ledger:       ledger,
		broadcaster:  bc,
		now:          func() time.Time { return time.Date(2024, 3, 11, 22, 0, 0, 0, time.UTC) },
		stopChannel:  make(chan struct{}),
	}
	return app, store, ledger, bc
}

func TestApp_ProcessDataUpdate(t *testing.T) {
	t.Parallel()

	newDraw := testutil.MustRecord(2024011, testutil.BaseDate.AddDate(0, 0, 10), testutil.SyntheticNumbers(10))
	existing := testutil.ConsecutiveDays(10).At(0)
	source := &fakeSource{records: []draw.Record{newDraw, existing}}

	app, store, ledger, bc := newTestApp(t, source)
	picked := testutil.Range(1, 10)
	ledger.pending = []database.Prediction{
		{ID: 7, TargetDate: newDraw.Date, PredictedNum: draw.FormatNumbers(picked)},
		{ID: 8, TargetDate: newDraw.Date.AddDate(0, 0, 1), PredictedNum: draw.FormatNumbers(picked)},
	}

	require.NoError(t, app.processDataUpdate(context.Background()))

	assert.Equal(t, []string{"2024-03-10"}, source.since)
	assert.Equal(t, 11, store.set.Len())
	assert.Equal(t, map[int64]int{7: draw.Hits(picked, newDraw)}, ledger.updates, "only drawn dates are verified")

	require.Len(t, bc.reports, 1)
	r := bc.reports[0]
	assert.Equal(t, 2024011, r.LastIssue)
	require.Len(t, ledger.saved, 2)
	for i, p := range ledger.saved {
		assert.Equal(t, r.NextDrawDate, p.TargetDate)
		assert.Equal(t, draw.FormatNumbers(r.Groups[i]), p.PredictedNum)
	}

	latest, ok := app.cacheManager.LatestReport()
	require.True(t, ok)
	assert.Same(t, r, latest)

	// 没有新开奖时不重复推送
	require.NoError(t, app.processDataUpdate(context.Background()))
	assert.Equal(t, []string{"2024-03-10", "2024-03-11"}, source.since)
	assert.Len(t, bc.reports, 1)
}

func TestApp_ProcessDataUpdateSourceError(t *testing.T) {
	t.Parallel()

	app, store, _, bc := newTestApp(t, &fakeSource{err: errors.New("upstream down")})

	err := app.processDataUpdate(context.Background())
	assert.ErrorContains(t, err, "upstream down")
	assert.Equal(t, "upstream down", app.lastAPIError)
	assert.Equal(t, 10, store.set.Len())
	assert.Empty(t, bc.reports)
}

func TestApp_StartStop(t *testing.T) {
	t.Parallel()

	app, _, _, _ := newTestApp(t, &fakeSource{})
	app.config.App.PollingInterval = time.Hour

	require.NoError(t, app.Start(context.Background()))
	require.NoError(t, app.Stop())
}

func TestApp_HealthCheck(t *testing.T) {
	t.Parallel()

	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `cb({"data":[],"pages":0,"total":0})`)
	}))
	t.Cleanup(ok.Close)
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(down.Close)

	tests := []struct {
		name       string
		url        string
		wantStatus string
	}{
		{name: "api reachable", url: ok.URL, wantStatus: "ok"},
		{name: "api down", url: down.URL, wantStatus: "degraded"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, _, _, _ := newTestApp(t, &fakeSource{})
			cfg := app.config.API
			cfg.URL = tt.url
			cfg.RetryCount = 0
			app.source = api.NewClient(&cfg)

			health := app.HealthCheck(context.Background())
			assert.Equal(t, tt.wantStatus, health["status"])
			require.Contains(t, health, "api")
			assert.Equal(t, tt.wantStatus == "ok", health["api"].(map[string]interface{})["status"] == "ok")
			assert.Contains(t, health, "cache")
			assert.NotContains(t, health, "telegram")
		})
	}

	app, _, _, _ := newTestApp(t, &fakeSource{})
	health := app.HealthCheck(context.Background())
	assert.Equal(t, "ok", health["status"])
	assert.NotContains(t, health, "api", "only the HTTP client is probed")
}
