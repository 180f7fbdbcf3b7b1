package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"rental-digest/metrics"
	"rental-digest/models"
	"rental-digest/storage"
	"rental-digest/utils"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func memoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("NOTIFY_SINK", "log")
	t.Setenv("PROVIDERS", "galvao")
	t.Setenv("CRITERIA_FILE", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("RAW_CSV_PATH", "")
}

func TestNewAppWithMemoryBackend(t *testing.T) {
	memoryEnv(t)

	a, err := newApp(context.Background())
	require.NoError(t, err)
	defer a.Close()

	pipeline, cleanup, err := a.newPipeline()
	require.NoError(t, err)
	assert.NotNil(t, pipeline)
	cleanup()

	reporter, err := a.newReporter(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.NotNil(t, reporter)
}

func TestNewAppRejectsBadConfiguration(t *testing.T) {
	memoryEnv(t)
	t.Setenv("STORE_BACKEND", "dynamodb")
	t.Setenv("DYNAMODB_TABLE", "")

	_, err := newApp(context.Background())
	assert.ErrorIs(t, err, models.ErrFatalConfiguration)
}

func TestNewAppRejectsUnknownProvider(t *testing.T) {
	memoryEnv(t)
	t.Setenv("PROVIDERS", "galvao,olx")

	_, err := newApp(context.Background())
	assert.ErrorIs(t, err, models.ErrFatalConfiguration)
}

func TestServeRefusesUnknownProviderBeforeScheduling(t *testing.T) {
	memoryEnv(t)
	t.Setenv("PROVIDERS", "foo")
	t.Setenv("HTTP_ADDR", "127.0.0.1:0")

	rootCmd.SetArgs([]string{"serve"})
	defer rootCmd.SetArgs(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := rootCmd.ExecuteContext(ctx)
	assert.ErrorIs(t, err, models.ErrFatalConfiguration)
}

func TestReportCommandNothingNew(t *testing.T) {
	memoryEnv(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"report", "--window", "2h"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "nothing new in the last 2h0m0s")
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T) (*server, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	gw := storage.NewGateway(store, 1, utils.NewNopLogger())
	for i, price := range []float64{3000, 1200} {
		_, err := gw.InsertIfAbsent(context.Background(), &models.Listing{
			ID:            "https://x/" + string(rune('a'+i)),
			Source:        "Apolar",
			Price:         price,
			LastUpdatedAt: now.Add(-time.Hour),
			FirstSeenAt:   now.Add(-time.Hour),
		})
		require.NoError(t, err)
	}
	return &server{
		store:         store,
		listings:      gw,
		gatherer:      metrics.New().Registry,
		defaultWindow: 8 * time.Hour,
		now:           func() time.Time { return now },
		logger:        utils.NewNopLogger(),
	}, store
}

func TestServerHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	srv.store = downStore{}
	rec = httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServerRecentListings(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/listings/recent", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count    int           `json:"count"`
		Listings []listingJSON `json:"listings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, 1200.0, body.Listings[0].Price)
	assert.Equal(t, "2024-03-01T11:00:00.000000Z", body.Listings[0].LastUpdatedAt)

	rec = httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/listings/recent?window=30m", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 0, body.Count)

	rec = httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/listings/recent?window=soon", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestCronLoggerRecordsRecoveredPanics(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := cronLogger{utils.FromZap(zap.New(core))}

	job := cron.NewChain(cron.Recover(log)).Then(cron.FuncJob(func() { panic("provider exploded") }))
	require.NotPanics(t, job.Run)

	entries := logs.FilterMessageSnippet("[cron] panic").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.ErrorLevel, entries[0].Level)
	assert.Contains(t, entries[0].Message, "provider exploded")
}

func TestCronLoggerReportsSkippedRuns(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := cronLogger{utils.FromZap(zap.New(core))}

	release := make(chan struct{})
	started := make(chan struct{})
	job := cron.NewChain(cron.SkipIfStillRunning(log)).Then(cron.FuncJob(func() {
		close(started)
		<-release
	}))

	go job.Run()
	<-started
	job.Run()
	close(release)

	assert.Equal(t, 1, logs.FilterMessageSnippet("[cron] skip").Len())
}
