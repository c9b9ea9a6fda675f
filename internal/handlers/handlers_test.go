package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialpulse/pulse/internal/aggregation"
	"github.com/socialpulse/pulse/internal/cache"
	"github.com/socialpulse/pulse/internal/kpi"
	"github.com/socialpulse/pulse/internal/predict"
	"github.com/socialpulse/pulse/internal/scheduler"
	"github.com/socialpulse/pulse/internal/store"
	"github.com/socialpulse/pulse/pkg/api/pulse"
	"github.com/socialpulse/pulse/pkg/logging"
	"github.com/socialpulse/pulse/pkg/models"
	"github.com/socialpulse/pulse/pkg/testutil"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *testutil.MemorySampleStore, *testutil.MemoryBucketStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	samplesStore := testutil.NewMemorySampleStore()
	bucketsStore := testutil.NewMemoryBucketStore()
	logger := logging.NewLogger()
	cacheStore := cache.NewMemoryStore(1000, cache.MetricsHooks{})

	aggEngine := aggregation.NewEngine(samplesStore, bucketsStore, cacheStore, logger)
	Init(samplesStore, bucketsStore,
		kpi.NewEngine(samplesStore, nil, logger),
		predict.NewEngine(samplesStore, testutil.NewMemoryModelStore(), nil, logger),
		scheduler.NewScheduler(aggEngine, logger, nil),
		cacheStore, logger, nil)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if ws := c.GetHeader("X-Workspace-ID"); ws != "" {
			c.Set("workspace_id", ws)
		}
		c.Next()
	})

	api := router.Group("/api/v1")
	{
		api.GET("/kpis/overview", GetOverviewKPIs)
		api.GET("/kpis/engagement", GetEngagementBreakdown)
		api.GET("/kpis/platforms", GetPlatformBreakdown)
		api.GET("/kpis/top-posts", GetTopPosts)
		api.GET("/series", GetTimeSeries)
		api.GET("/series/followers", GetFollowerGrowth)
		api.GET("/accounts", GetActiveAccounts)
		api.GET("/aggregates/:period", GetAggregatedBuckets)
		api.GET("/predict/trends", PredictTrends)
		api.GET("/predict/anomalies", DetectAnomalies)
		api.GET("/predict/forecast", ForecastReach)
		api.GET("/predict/insights", GenerateInsights)
		api.POST("/predict/engagement", PredictEngagement)
		api.POST("/samples", StoreSample)
		api.POST("/aggregate/:period", TriggerAggregation)
		api.POST("/cache/invalidate", InvalidateCache)
	}

	return router, samplesStore, bucketsStore
}

func doRequest(router *gin.Engine, method, path string, body []byte, workspace string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if workspace != "" {
		req.Header.Set("X-Workspace-ID", workspace)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func sampleWindow(workspace string, around time.Time) store.SampleQuery {
	return store.SampleQuery{
		WorkspaceID: workspace,
		From:        around.Add(-time.Hour),
		To:          around.Add(time.Hour),
	}
}

func seedWindow(t *testing.T, samples *testutil.MemorySampleStore, workspace string, ts time.Time) {
	t.Helper()
	require.NoError(t, samples.InsertSamples(context.Background(), []models.Sample{
		testutil.AccountSample(workspace, "acc-1", "instagram", ts, 1000),
		testutil.PostSample(workspace, "acc-1", "instagram", "p-1", ts.Add(time.Hour),
			models.MetricCounts{Likes: 80, Comments: 15, Shares: 5, Reach: 2000}),
		testutil.AccountSample(workspace, "acc-1", "instagram", ts.Add(2*time.Hour), 1050),
	}))
}

func TestOverviewRequiresWorkspace(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/kpis/overview", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOverviewReturnsKPIs(t *testing.T) {
	router, samples, _ := setupTestRouter(t)

	ts := time.Now().UTC().Add(-24 * time.Hour)
	seedWindow(t, samples, "ws-1", ts)

	w := doRequest(router, http.MethodGet, "/api/v1/kpis/overview", nil, "ws-1")
	require.Equal(t, http.StatusOK, w.Code)

	var kpis pulse.OverviewKPIs
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &kpis))
	assert.Equal(t, "ws-1", kpis.WorkspaceID)
	assert.Equal(t, int64(1050), kpis.TotalFollowers)
	assert.Equal(t, int64(100), kpis.TotalEngagement)
	assert.Equal(t, 1, kpis.PostCount)
}

func TestOverviewRejectsBadDates(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/kpis/overview?start_time=not-a-date", nil, "ws-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodGet,
		"/api/v1/kpis/overview?start_time=2025-08-10T00:00:00Z&end_time=2025-08-01T00:00:00Z", nil, "ws-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTopPostsRejectsUnknownSortKey(t *testing.T) {
	router, samples, _ := setupTestRouter(t)
	seedWindow(t, samples, "ws-1", time.Now().UTC().Add(-24*time.Hour))

	w := doRequest(router, http.MethodGet, "/api/v1/kpis/top-posts?sort_by=sentiment", nil, "ws-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimeSeriesRejectsUnknownGranularity(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/series?granularity=fortnightly", nil, "ws-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimeSeriesReturnsBuckets(t *testing.T) {
	router, samples, _ := setupTestRouter(t)

	ts := time.Now().UTC().Add(-24 * time.Hour)
	seedWindow(t, samples, "ws-1", ts)

	w := doRequest(router, http.MethodGet, "/api/v1/series?granularity=daily", nil, "ws-1")
	require.Equal(t, http.StatusOK, w.Code)

	var series pulse.TimeSeriesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &series))
	assert.Equal(t, models.GranularityDaily, series.Granularity)
	assert.NotEmpty(t, series.Points)
}

func TestStoreSampleRoundTrip(t *testing.T) {
	router, samples, _ := setupTestRouter(t)

	ts := time.Now().UTC().Add(-time.Hour)
	body, err := json.Marshal(pulse.StoreSampleRequest{
		AccountID: "acc-1",
		Platform:  "tiktok",
		Kind:      models.SampleKindAccount,
		Timestamp: ts,
		Metrics:   models.MetricCounts{Followers: 4200},
	})
	require.NoError(t, err)

	w := doRequest(router, http.MethodPost, "/api/v1/samples", body, "ws-1")
	require.Equal(t, http.StatusCreated, w.Code)

	var stored models.Sample
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))
	assert.NotEmpty(t, stored.SampleID)
	assert.Equal(t, "ws-1", stored.WorkspaceID)

	listed, err := samples.ListSamples(context.Background(), sampleWindow("ws-1", ts))
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestStoreSampleRejectsInvalidKind(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	body, err := json.Marshal(pulse.StoreSampleRequest{
		AccountID: "acc-1",
		Platform:  "tiktok",
		Kind:      "story",
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)

	w := doRequest(router, http.MethodPost, "/api/v1/samples", body, "ws-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriggerAggregationWritesBuckets(t *testing.T) {
	router, samples, buckets := setupTestRouter(t)

	ts := time.Date(2025, 8, 13, 9, 0, 0, 0, time.UTC)
	seedWindow(t, samples, "ws-1", ts)

	w := doRequest(router, http.MethodPost,
		"/api/v1/aggregate/daily?reference=2025-08-13T15:00:00Z", nil, "ws-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, buckets.Len())

	w = doRequest(router, http.MethodPost, "/api/v1/aggregate/quarterly", nil, "ws-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriggerAggregationSweepsAllWorkspaces(t *testing.T) {
	router, samples, buckets := setupTestRouter(t)

	ts := time.Date(2025, 8, 13, 9, 0, 0, 0, time.UTC)
	seedWindow(t, samples, "ws-1", ts)
	seedWindow(t, samples, "ws-2", ts)

	w := doRequest(router, http.MethodPost,
		"/api/v1/aggregate/daily?scope=all&reference=2025-08-13T15:00:00Z", nil, "ws-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, buckets.Len())

	var resp pulse.AggregateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "all", resp.Scope)
	assert.Empty(t, resp.WorkspaceID)

	w = doRequest(router, http.MethodPost, "/api/v1/aggregate/daily?scope=planet", nil, "ws-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAggregatedBucketsReadBack(t *testing.T) {
	router, samples, _ := setupTestRouter(t)

	ts := time.Date(2025, 8, 13, 9, 0, 0, 0, time.UTC)
	seedWindow(t, samples, "ws-1", ts)

	w := doRequest(router, http.MethodPost,
		"/api/v1/aggregate/daily?reference=2025-08-13T15:00:00Z", nil, "ws-1")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet,
		"/api/v1/aggregates/daily?start_time=2025-08-01T00:00:00Z&end_time=2025-08-20T00:00:00Z", nil, "ws-1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp pulse.AggregatedBucketsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.PeriodDaily, resp.Period)
	require.Len(t, resp.Buckets, 1)
	assert.Equal(t, "acc-1", resp.Buckets[0].AccountID)
	assert.Equal(t, 1, resp.Buckets[0].PostCount)
	assert.Equal(t, int64(50), resp.Buckets[0].FollowerGrowth)

	w = doRequest(router, http.MethodGet, "/api/v1/aggregates/quarterly", nil, "ws-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActiveAccountsListing(t *testing.T) {
	router, samples, _ := setupTestRouter(t)

	ts := time.Now().UTC().Add(-24 * time.Hour)
	seedWindow(t, samples, "ws-1", ts)
	require.NoError(t, samples.InsertSamples(context.Background(), []models.Sample{
		testutil.AccountSample("ws-1", "acc-2", "tiktok", ts, 500),
	}))

	w := doRequest(router, http.MethodGet, "/api/v1/accounts", nil, "ws-1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp pulse.AccountsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 30, resp.LookbackDays)
	require.Len(t, resp.Accounts, 2)
	assert.Equal(t, pulse.AccountInfo{AccountID: "acc-1", Platform: "instagram"}, resp.Accounts[0])
	assert.Equal(t, pulse.AccountInfo{AccountID: "acc-2", Platform: "tiktok"}, resp.Accounts[1])

	w = doRequest(router, http.MethodGet, "/api/v1/accounts?lookback_days=0", nil, "ws-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvalidateCacheReportsDropped(t *testing.T) {
	router, samples, _ := setupTestRouter(t)
	seedWindow(t, samples, "ws-1", time.Now().UTC().Add(-24*time.Hour))

	// Warm the cache, then drop it
	w := doRequest(router, http.MethodGet, "/api/v1/kpis/overview", nil, "ws-1")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodPost, "/api/v1/cache/invalidate", nil, "ws-1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp pulse.InvalidateCacheResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, cache.KeyPrefix("ws-1"), resp.Scope)
	assert.GreaterOrEqual(t, resp.Dropped, 1)
}

func TestPredictEngagementUntrainedModel(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	body, err := json.Marshal(pulse.PredictEngagementRequest{
		Platform: "instagram",
		Features: models.EngagementFeatures{TimeOfDay: 12, DayOfWeek: 3},
	})
	require.NoError(t, err)

	w := doRequest(router, http.MethodPost, "/api/v1/predict/engagement", body, "ws-1")
	require.Equal(t, http.StatusOK, w.Code)

	var prediction models.EngagementPrediction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &prediction))
	assert.Equal(t, 0.0, prediction.Confidence)
	assert.Equal(t, int64(0), prediction.Likes)
}

func TestForecastRejectsBadDaysAhead(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/predict/forecast?days_ahead=365", nil, "ws-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnomaliesEchoSensitivity(t *testing.T) {
	router, samples, _ := setupTestRouter(t)
	seedWindow(t, samples, "ws-1", time.Now().UTC().Add(-24*time.Hour))

	w := doRequest(router, http.MethodGet, "/api/v1/predict/anomalies?sensitivity=3.0", nil, "ws-1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp pulse.AnomaliesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3.0, resp.Sensitivity)
}
