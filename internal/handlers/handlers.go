package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/socialpulse/pulse/internal/cache"
	"github.com/socialpulse/pulse/internal/kpi"
	"github.com/socialpulse/pulse/internal/metrics"
	"github.com/socialpulse/pulse/internal/predict"
	"github.com/socialpulse/pulse/internal/scheduler"
	"github.com/socialpulse/pulse/internal/store"
	"github.com/socialpulse/pulse/pkg/api/pulse"
	"github.com/socialpulse/pulse/pkg/logging"
	"github.com/socialpulse/pulse/pkg/models"
	"github.com/socialpulse/pulse/pkg/validation"
)

var (
	samples        store.SampleStore
	buckets        store.BucketStore
	kpiEngine      *kpi.Engine
	predictEngine  *predict.Engine
	sched          *scheduler.Scheduler
	cacheStore     cache.Store
	validator      *validation.SampleValidator
	logger         logging.Logger
	serviceMetrics *metrics.Metrics
)

// Init initializes the handlers package with engines and shared infrastructure
func Init(s store.SampleStore, b store.BucketStore, k *kpi.Engine, p *predict.Engine, sc *scheduler.Scheduler, c cache.Store, log logging.Logger, m *metrics.Metrics) {
	samples = s
	buckets = b
	kpiEngine = k
	predictEngine = p
	sched = sc
	cacheStore = c
	validator = validation.NewSampleValidator()
	logger = log
	serviceMetrics = m
}

// observeQuery records one served query against the metrics registry
func observeQuery(queryType, status string, start time.Time) {
	if serviceMetrics == nil {
		return
	}
	serviceMetrics.ObserveQuery(queryType, status, time.Since(start).Seconds())
}

// requireWorkspace pulls the workspace scope set by the workspace middleware
func requireWorkspace(c *gin.Context) (string, bool) {
	workspaceID := c.GetString("workspace_id")
	if workspaceID == "" {
		c.JSON(http.StatusBadRequest, pulse.ErrorResponse{Error: "Workspace context required"})
		return "", false
	}
	return workspaceID, true
}

// parseDateRange parses start_time/end_time query params, defaulting to the
// last 30 days, and validates ordering and span.
func parseDateRange(c *gin.Context) (time.Time, time.Time, bool) {
	now := time.Now().UTC()
	startRaw := c.DefaultQuery("start_time", now.AddDate(0, 0, -30).Format(time.RFC3339))
	endRaw := c.DefaultQuery("end_time", now.Format(time.RFC3339))

	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		c.JSON(http.StatusBadRequest, pulse.ErrorResponse{Error: "Invalid start_time format"})
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, endRaw)
	if err != nil {
		c.JSON(http.StatusBadRequest, pulse.ErrorResponse{Error: "Invalid end_time format"})
		return time.Time{}, time.Time{}, false
	}

	if err := validation.ValidateDateRange(start, end); err != nil {
		c.JSON(http.StatusBadRequest, pulse.ErrorResponse{Error: err.Error()})
		return time.Time{}, time.Time{}, false
	}
	return start.UTC(), end.UTC(), true
}

// csvParam splits a comma-separated query parameter into non-empty values
func csvParam(c *gin.Context, name string) []string {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func kpiQuery(c *gin.Context, workspaceID string, start, end time.Time) kpi.Query {
	return kpi.Query{
		WorkspaceID: workspaceID,
		Start:       start,
		End:         end,
		Platforms:   csvParam(c, "platforms"),
		AccountIDs:  csvParam(c, "accounts"),
	}
}

// queryCacheKey builds a cache key covering every parameter that changes the
// response, so filtered and unfiltered queries never collide.
func queryCacheKey(workspaceID, endpoint string, start, end time.Time, extra ...string) string {
	parts := append([]string{
		endpoint,
		strconv.FormatInt(start.Unix(), 10),
		strconv.FormatInt(end.Unix(), 10),
	}, extra...)
	return cache.Key(workspaceID, parts...)
}

// GetOverviewKPIs returns headline KPIs with period-over-period deltas (workspace-scoped)
func GetOverviewKPIs(c *gin.Context) {
	startedAt := time.Now()

	workspaceID, ok := requireWorkspace(c)
	if !ok {
		observeQuery("overview", "error", startedAt)
		return
	}
	start, end, ok := parseDateRange(c)
	if !ok {
		observeQuery("overview", "error", startedAt)
		return
	}
	q := kpiQuery(c, workspaceID, start, end)

	key := queryCacheKey(workspaceID, "overview", start, end,
		strings.Join(q.Platforms, ","), strings.Join(q.AccountIDs, ","))

	var response pulse.OverviewKPIs
	err := cache.GetOrLoad(c.Request.Context(), cacheStore, key, cache.ShortTTL, &response,
		func(ctx context.Context) (interface{}, error) {
			return kpiEngine.Overview(ctx, q)
		})
	if err != nil {
		logger.WithError(err).WithField("workspace_id", workspaceID).Error("Failed to compute overview KPIs")
		observeQuery("overview", "error", startedAt)
		c.JSON(http.StatusInternalServerError, pulse.ErrorResponse{Error: "Failed to compute overview"})
		return
	}

	observeQuery("overview", "success", startedAt)
	c.JSON(http.StatusOK, response)
}

// GetEngagementBreakdown returns engagement split by component (workspace-scoped)
func GetEngagementBreakdown(c *gin.Context) {
	startedAt := time.Now()

	workspaceID, ok := requireWorkspace(c)
	if !ok {
		observeQuery("engagement_breakdown", "error", startedAt)
		return
	}
	start, end, ok := parseDateRange(c)
	if !ok {
		observeQuery("engagement_breakdown", "error", startedAt)
		return
	}
	q := kpiQuery(c, workspaceID, start, end)

	key := queryCacheKey(workspaceID, "engagement", start, end,
		strings.Join(q.Platforms, ","), strings.Join(q.AccountIDs, ","))

	var response pulse.EngagementBreakdown
	err := cache.GetOrLoad(c.Request.Context(), cacheStore, key, cache.ShortTTL, &response,
		func(ctx context.Context) (interface{}, error) {
			return kpiEngine.EngagementBreakdown(ctx, q)
		})
	if err != nil {
		logger.WithError(err).WithField("workspace_id", workspaceID).Error("Failed to compute engagement breakdown")
		observeQuery("engagement_breakdown", "error", startedAt)
		c.JSON(http.StatusInternalServerError, pulse.ErrorResponse{Error: "Failed to compute engagement breakdown"})
		return
	}

	observeQuery("engagement_breakdown", "success", startedAt)
	c.JSON(http.StatusOK, response)
}

// GetPlatformBreakdown returns per-platform totals sorted by reach (workspace-scoped)
func GetPlatformBreakdown(c *gin.Context) {
	startedAt := time.Now()

	workspaceID, ok := requireWorkspace(c)
	if !ok {
		observeQuery("platform_breakdown", "error", startedAt)
		return
	}
	start, end, ok := parseDateRange(c)
	if !ok {
		observeQuery("platform_breakdown", "error", startedAt)
		return
	}
	q := kpiQuery(c, workspaceID, start, end)

	key := queryCacheKey(workspaceID, "platforms", start, end, strings.Join(q.AccountIDs, ","))

	var response pulse.PlatformBreakdownResponse
	err := cache.GetOrLoad(c.Request.Context(), cacheStore, key, cache.ShortTTL, &response,
		func(ctx context.Context) (interface{}, error) {
			return kpiEngine.PlatformBreakdown(ctx, q)
		})
	if err != nil {
		logger.WithError(err).WithField("workspace_id", workspaceID).Error("Failed to compute platform breakdown")
		observeQuery("platform_breakdown", "error", startedAt)
		c.JSON(http.StatusInternalServerError, pulse.ErrorResponse{Error: "Failed to compute platform breakdown"})
		return
	}

	observeQuery("platform_breakdown", "success", startedAt)
	c.JSON(http.StatusOK, response)
}

// GetTopPosts returns ranked posts for the window (workspace-scoped)
func GetTopPosts(c *gin.Context) {
	startedAt := time.Now()

	workspaceID, ok := requireWorkspace(c)
	if !ok {
		observeQuery("top_posts", "error", startedAt)
		return
	}
	start, end, ok := parseDateRange(c)
	if !ok {
		observeQuery("top_posts", "error", startedAt)
		return
	}
	q := kpiQuery(c, workspaceID, start, end)

	sortBy := c.DefaultQuery("sort_by", "engagement")
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, pulse.ErrorResponse{Error: "Invalid limit"})
			observeQuery("top_posts", "error", startedAt)
			return
		}
		limit = parsed
	}

	key := queryCacheKey(workspaceID, "top_posts", start, end,
		sortBy, strconv.Itoa(limit), strings.Join(q.Platforms, ","), strings.Join(q.AccountIDs, ","))

	var response pulse.TopPostsResponse
	err := cache.GetOrLoad(c.Request.Context(), cacheStore, key, cache.ShortTTL, &response,
		func(ctx context.Context) (interface{}, error) {
			return kpiEngine.TopPosts(ctx, q, sortBy, limit)
		})
	if err != nil {
		if strings.Contains(err.Error(), "unsupported sort key") {
			observeQuery("top_posts", "error", startedAt)
			c.JSON(http.StatusBadRequest, pulse.ErrorResponse{Error: err.Error()})
			return
		}
		logger.WithError(err).WithField("workspace_id", workspaceID).Error("Failed to rank top posts")
		observeQuery("top_posts", "error", startedAt)
		c.JSON(http.StatusInternalServerError, pulse.ErrorResponse{Error: "Failed to rank posts"})
		return
	}

	observeQuery("top_posts", "success", startedAt)
	c.JSON(http.StatusOK, response)
}

// GetTimeSeries returns bucketed metric series (workspace-scoped)
func GetTimeSeries(c *gin.Context) {
	startedAt := time.Now()

	workspaceID, ok := requireWorkspace(c)
	if !ok {
		observeQuery("time_series", "error", startedAt)
		return
	}
	start, end, ok := parseDateRange(c)
	if !ok {
		observeQuery("time_series", "error", startedAt)
		return
	}
	q := kpiQuery(c, workspaceID, start, end)

	granularity := models.Granularity(c.DefaultQuery("granularity", string(models.GranularityDaily)))
	if !models.ValidGranularity(granularity) {
		observeQuery("time_series", "error", startedAt)
		c.JSON(http.StatusBadRequest, pulse.ErrorResponse{Error: fmt.Sprintf("Unsupported granularity %q", granularity)})
		return
	}

	key := queryCacheKey(workspaceID, "series", start, end,
		string(granularity), strings.Join(q.Platforms, ","), strings.Join(q.AccountIDs, ","))

	var response pulse.TimeSeriesResponse
	err := cache.GetOrLoad(c.Request.Context(), cacheStore, key, cache.ShortTTL, &response,
		func(ctx context.Context) (interface{}, error) {
			return kpiEngine.TimeSeries(ctx, q, granularity)
		})
	if err != nil {
		logger.WithError(err).WithField("workspace_id", workspaceID).Error("Failed to build time series")
		observeQuery("time_series", "error", startedAt)
		c.JSON(http.StatusInternalServerError, pulse.ErrorResponse{Error: "Failed to build time series"})
		return
	}

	observeQuery("time_series", "success", startedAt)
	c.JSON(http.StatusOK, response)
}

// GetFollowerGrowth returns the bucketed follower growth series (workspace-scoped)
func GetFollowerGrowth(c *gin.Context) {
	startedAt := time.Now()

	workspaceID, ok := requireWorkspace(c)
	if !ok {
		observeQuery("follower_growth", "error", startedAt)
		return
	}
	start, end, ok := parseDateRange(c)
	if !ok {
		observeQuery("follower_growth", "error", startedAt)
		return
	}
	q := kpiQuery(c, workspaceID, start, end)

	granularity := models.Granularity(c.DefaultQuery("granularity", string(models.GranularityDaily)))
	if !models.ValidGranularity(granularity) {
		observeQuery("follower_growth", "error", startedAt)
		c.JSON(http.StatusBadRequest, pulse.ErrorResponse{Error: fmt.Sprintf("Unsupported granularity %q", granularity)})
		return
	}

	key := queryCacheKey(workspaceID, "follower_growth", start, end,
		string(granularity), strings.Join(q.Platforms, ","), strings.Join(q.AccountIDs, ","))

	var response pulse.FollowerGrowthResponse
	err := cache.GetOrLoad(c.Request.Context(), cacheStore, key, cache.ShortTTL, &response,
		func(ctx context.Context) (interface{}, error) {
			return kpiEngine.FollowerGrowth(ctx, q, granularity)
		})
	if err != nil {
		logger.WithError(err).WithField("workspace_id", workspaceID).Error("Failed to build follower growth series")
		observeQuery("follower_growth", "error", startedAt)
		c.JSON(http.StatusInternalServerError, pulse.ErrorResponse{Error: "Failed to build follower growth"})
		return
	}

	observeQuery("follower_growth", "success", startedAt)
	c.JSON(http.StatusOK, response)
}

// PredictTrends returns fitted trend directions for the requested metrics (workspace-scoped)
func PredictTrends(c *gin.Context) {
	startedAt := time.Now()

	workspaceID, ok := requireWorkspace(c)
	if !ok {
		observeQuery("predict_trends", "error", startedAt)
		return
	}

	platform := c.Query("platform")
	requested := csvParam(c, "metrics")

	key := cache.Key(workspaceID, "trends", platform, strings.Join(requested, ","))

	var response pulse.TrendsResponse
	err := cache.GetOrLoad(c.Request.Context(), cacheStore, key, cache.LongTTL, &response,
		func(ctx context.Context) (interface{}, error) {
			return predictEngine.PredictTrends(ctx, workspaceID, platform, requested)
		})
	if err != nil {
		if strings.Contains(err.Error(), "unsupported metric") {
			observeQuery("predict_trends", "error", startedAt)
			c.JSON(http.StatusBadRequest, pulse.ErrorResponse{Error: err.Error()})
			return
		}
		logger.WithError(err).WithField("workspace_id", workspaceID).Error("Failed to fit trends")
		observeQuery("predict_trends", "error", startedAt)
		c.JSON(http.StatusInternalServerError, pulse.ErrorResponse{Error: "Failed to fit trends"})
		return
	}

	observeQuery("predict_trends", "success", startedAt)
	c.JSON(http.StatusOK, response)
}

// DetectAnomalies returns statistical outliers inside the window (workspace-scoped)
func DetectAnomalies(c *gin.Context) {
	startedAt := time.Now()

	workspaceID, ok := requireWorkspace(c)
	if !ok {
		observeQuery("detect_anomalies", "error", startedAt)
		return
	}
	start, end, ok := parseDateRange(c)
	if !ok {
		observeQuery("detect_anomalies", "error", startedAt)
		return
	}

	platform := c.Query("platform")
	sensitivity := 0.0
	if raw := c.Query("sensitivity"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, pulse.ErrorResponse{Error: "Invalid sensitivity"})
			observeQuery("detect_anomalies", "error", startedAt)
			return
		}
		sensitivity = parsed
	}

	key := queryCacheKey(workspaceID, "anomalies", start, end,
		platform, strconv.FormatFloat(sensitivity, 'f', 2, 64))

	var response pulse.AnomaliesResponse
	err := cache.GetOrLoad(c.Request.Context(), cacheStore, key, cache.LongTTL, &response,
		func(ctx context.Context) (interface{}, error) {
			return predictEngine.DetectAnomalies(ctx, workspaceID, platform, start, end, sensitivity)
		})
	if err != nil {
		logger.WithError(err).WithField("workspace_id", workspaceID).Error("Failed to detect anomalies")
		observeQuery("detect_anomalies", "error", startedAt)
		c.JSON(http.StatusInternalServerError, pulse.ErrorResponse{Error: "Failed to detect anomalies"})
		return
	}

	observeQuery("detect_anomalies", "success", startedAt)
	c.JSON(http.StatusOK, response)
}

// ForecastReach projects daily reach forward (workspace-scoped)
func ForecastReach(c *gin.Context) {
	startedAt := time.Now()

	workspaceID, ok := requireWorkspace(c)
	if !ok {
		observeQuery("forecast_reach", "error", startedAt)
		return
	}

	platform := c.Query("platform")
	daysAhead := 7
	if raw := c.Query("days_ahead"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 90 {
			c.JSON(http.StatusBadRequest, pulse.ErrorResponse{Error: "days_ahead must be between 1 and 90"})
			observeQuery("forecast_reach", "error", startedAt)
			return
		}
		daysAhead = parsed
	}

	key := cache.Key(workspaceID, "forecast", platform, strconv.Itoa(daysAhead))

	var response pulse.ForecastResponse
	err := cache.GetOrLoad(c.Request.Context(), cacheStore, key, cache.LongTTL, &response,
		func(ctx context.Context) (interface{}, error) {
			return predictEngine.ForecastReach(ctx, workspaceID, platform, daysAhead)
		})
	if err != nil {
		logger.WithError(err).WithField("workspace_id", workspaceID).Error("Failed to forecast reach")
		observeQuery("forecast_reach", "error", startedAt)
		c.JSON(http.StatusInternalServerError, pulse.ErrorResponse{Error: "Failed to forecast reach"})
		return
	}

	observeQuery("forecast_reach", "success", startedAt)
	c.JSON(http.StatusOK, response)
}

// GenerateInsights returns up to 5 ranked insights for the window (workspace-scoped)
func GenerateInsights(c *gin.Context) {
	startedAt := time.Now()

	workspaceID, ok := requireWorkspace(c)
	if !ok {
		observeQuery("generate_insights", "error", startedAt)
		return
	}
	start, end, ok := parseDateRange(c)
	if !ok {
		observeQuery("generate_insights", "error", startedAt)
		return
	}

	platform := c.Query("platform")
	key := queryCacheKey(workspaceID, "insights", start, end, platform)

	var response pulse.InsightsResponse
	err := cache.GetOrLoad(c.Request.Context(), cacheStore, key, cache.LongTTL, &response,
		func(ctx context.Context) (interface{}, error) {
			return predictEngine.GenerateInsights(ctx, workspaceID, platform, start, end)
		})
	if err != nil {
		logger.WithError(err).WithField("workspace_id", workspaceID).Error("Failed to generate insights")
		observeQuery("generate_insights", "error", startedAt)
		c.JSON(http.StatusInternalServerError, pulse.ErrorResponse{Error: "Failed to generate insights"})
		return
	}

	observeQuery("generate_insights", "success", startedAt)
	c.JSON(http.StatusOK, response)
}

// PredictEngagement scores a hypothetical post's features (workspace-scoped).
// Predictions are not cached; the model layer owns retrain gating.
func PredictEngagement(c *gin.Context) {
	startedAt := time.Now()

	workspaceID, ok := requireWorkspace(c)
	if !ok {
		observeQuery("predict_engagement", "error", startedAt)
		return
	}

	var req pulse.PredictEngagementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		observeQuery("predict_engagement", "error", startedAt)
		c.JSON(http.StatusBadRequest, pulse.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	prediction, err := predictEngine.PredictEngagement(c.Request.Context(), workspaceID, req.Platform, req.Features)
	if err != nil {
		logger.WithError(err).WithField("workspace_id", workspaceID).Error("Failed to predict engagement")
		observeQuery("predict_engagement", "error", startedAt)
		c.JSON(http.StatusInternalServerError, pulse.ErrorResponse{Error: "Failed to predict engagement"})
		return
	}

	observeQuery("predict_engagement", "success", startedAt)
	c.JSON(http.StatusOK, prediction)
}

// StoreSample accepts one sample over HTTP for collectors that bypass Kafka (workspace-scoped)
func StoreSample(c *gin.Context) {
	startedAt := time.Now()

	workspaceID, ok := requireWorkspace(c)
	if !ok {
		observeQuery("store_sample", "error", startedAt)
		return
	}

	var req pulse.StoreSampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		observeQuery("store_sample", "error", startedAt)
		c.JSON(http.StatusBadRequest, pulse.ErrorResponse{Error: "Invalid request: " + err.Error()})
		return
	}

	sample := models.Sample{
		SampleID:       uuid.New().String(),
		WorkspaceID:    workspaceID,
		AccountID:      req.AccountID,
		Platform:       req.Platform,
		Kind:           req.Kind,
		PostID:         req.PostID,
		PlatformPostID: req.PlatformPostID,
		ContentType:    req.ContentType,
		Timestamp:      req.Timestamp,
		Metrics:        req.Metrics,
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now().UTC()
	}

	if err := validator.ValidateSample(&sample); err != nil {
		observeQuery("store_sample", "error", startedAt)
		c.JSON(http.StatusBadRequest, pulse.ErrorResponse{Error: err.Error()})
		return
	}

	if err := samples.InsertSamples(c.Request.Context(), []models.Sample{sample}); err != nil {
		logger.WithError(err).WithField("workspace_id", workspaceID).Error("Failed to store sample")
		observeQuery("store_sample", "error", startedAt)
		c.JSON(http.StatusInternalServerError, pulse.ErrorResponse{Error: "Failed to store sample"})
		return
	}

	cacheStore.Invalidate(c.Request.Context(), cache.KeyPrefix(workspaceID))

	observeQuery("store_sample", "success", startedAt)
	c.JSON(http.StatusCreated, sample)
}

// TriggerAggregation runs one aggregation pass for the workspace (workspace-scoped)
func TriggerAggregation(c *gin.Context) {
	startedAt := time.Now()

	workspaceID, ok := requireWorkspace(c)
	if !ok {
		observeQuery("aggregate", "error", startedAt)
		return
	}

	period := models.Period(c.Param("period"))
	if !models.ValidPeriod(period) {
		observeQuery("aggregate", "error", startedAt)
		c.JSON(http.StatusBadRequest, pulse.ErrorResponse{Error: fmt.Sprintf("Unsupported period %q", period)})
		return
	}

	ref := time.Now().UTC()
	if raw := c.Query("reference"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, pulse.ErrorResponse{Error: "Invalid reference format"})
			observeQuery("aggregate", "error", startedAt)
			return
		}
		ref = parsed.UTC()
	}

	scope := c.DefaultQuery("scope", "workspace")

	var err error
	switch scope {
	case "workspace":
		err = sched.TriggerWorkspace(c.Request.Context(), workspaceID, period, ref)
	case "all":
		err = sched.TriggerAll(c.Request.Context(), period, ref)
	default:
		observeQuery("aggregate", "error", startedAt)
		c.JSON(http.StatusBadRequest, pulse.ErrorResponse{Error: fmt.Sprintf("Unsupported scope %q", scope)})
		return
	}
	if err != nil {
		logger.WithError(err).WithFields(logging.Fields{
			"workspace_id": workspaceID,
			"period":       period,
			"scope":        scope,
		}).Error("Manual aggregation failed")
		observeQuery("aggregate", "error", startedAt)
		c.JSON(http.StatusInternalServerError, pulse.ErrorResponse{Error: "Aggregation failed"})
		return
	}

	response := pulse.AggregateResponse{
		Scope:     scope,
		Period:    period,
		Reference: ref,
	}
	if scope == "workspace" {
		response.WorkspaceID = workspaceID
	}

	observeQuery("aggregate", "success", startedAt)
	c.JSON(http.StatusOK, response)
}

// GetAggregatedBuckets returns stored period roll-ups for the window (workspace-scoped)
func GetAggregatedBuckets(c *gin.Context) {
	startedAt := time.Now()

	workspaceID, ok := requireWorkspace(c)
	if !ok {
		observeQuery("aggregates", "error", startedAt)
		return
	}

	period := models.Period(c.Param("period"))
	if !models.ValidPeriod(period) {
		observeQuery("aggregates", "error", startedAt)
		c.JSON(http.StatusBadRequest, pulse.ErrorResponse{Error: fmt.Sprintf("Unsupported period %q", period)})
		return
	}

	start, end, ok := parseDateRange(c)
	if !ok {
		observeQuery("aggregates", "error", startedAt)
		return
	}

	accountID := c.Query("account")
	platform := c.Query("platform")

	key := queryCacheKey(workspaceID, "aggregates", start, end, string(period), accountID, platform)

	var response pulse.AggregatedBucketsResponse
	err := cache.GetOrLoad(c.Request.Context(), cacheStore, key, cache.LongTTL, &response,
		func(ctx context.Context) (interface{}, error) {
			rows, err := buckets.ListBuckets(ctx, store.BucketQuery{
				WorkspaceID: workspaceID,
				AccountID:   accountID,
				Platform:    platform,
				Period:      period,
				From:        start,
				To:          end,
			})
			if err != nil {
				return nil, err
			}
			if rows == nil {
				rows = []models.AggregatedBucket{}
			}
			return &pulse.AggregatedBucketsResponse{Period: period, Buckets: rows}, nil
		})
	if err != nil {
		logger.WithError(err).WithField("workspace_id", workspaceID).Error("Failed to list aggregated buckets")
		observeQuery("aggregates", "error", startedAt)
		c.JSON(http.StatusInternalServerError, pulse.ErrorResponse{Error: "Failed to list aggregated buckets"})
		return
	}

	observeQuery("aggregates", "success", startedAt)
	c.JSON(http.StatusOK, response)
}

// GetActiveAccounts lists the account/platform pairs with recent samples (workspace-scoped)
func GetActiveAccounts(c *gin.Context) {
	startedAt := time.Now()

	workspaceID, ok := requireWorkspace(c)
	if !ok {
		observeQuery("accounts", "error", startedAt)
		return
	}

	lookbackDays := 30
	if raw := c.Query("lookback_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 365 {
			c.JSON(http.StatusBadRequest, pulse.ErrorResponse{Error: "lookback_days must be between 1 and 365"})
			observeQuery("accounts", "error", startedAt)
			return
		}
		lookbackDays = parsed
	}

	key := cache.Key(workspaceID, "accounts", strconv.Itoa(lookbackDays))

	var response pulse.AccountsResponse
	err := cache.GetOrLoad(c.Request.Context(), cacheStore, key, cache.ShortTTL, &response,
		func(ctx context.Context) (interface{}, error) {
			refs, err := samples.ActiveAccounts(ctx, workspaceID, time.Duration(lookbackDays)*24*time.Hour)
			if err != nil {
				return nil, err
			}
			resp := &pulse.AccountsResponse{
				LookbackDays: lookbackDays,
				Accounts:     make([]pulse.AccountInfo, 0, len(refs)),
			}
			for _, ref := range refs {
				resp.Accounts = append(resp.Accounts, pulse.AccountInfo{
					AccountID: ref.AccountID,
					Platform:  ref.Platform,
				})
			}
			return resp, nil
		})
	if err != nil {
		logger.WithError(err).WithField("workspace_id", workspaceID).Error("Failed to list active accounts")
		observeQuery("accounts", "error", startedAt)
		c.JSON(http.StatusInternalServerError, pulse.ErrorResponse{Error: "Failed to list accounts"})
		return
	}

	observeQuery("accounts", "success", startedAt)
	c.JSON(http.StatusOK, response)
}

// InvalidateCache drops every cached entry for the workspace (workspace-scoped)
func InvalidateCache(c *gin.Context) {
	startedAt := time.Now()

	workspaceID, ok := requireWorkspace(c)
	if !ok {
		observeQuery("invalidate_cache", "error", startedAt)
		return
	}

	prefix := cache.KeyPrefix(workspaceID)
	dropped := cacheStore.Invalidate(c.Request.Context(), prefix)

	observeQuery("invalidate_cache", "success", startedAt)
	c.JSON(http.StatusOK, pulse.InvalidateCacheResponse{
		Scope:   prefix,
		Dropped: dropped,
	})
}
