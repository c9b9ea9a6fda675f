package main

import (
	"context"
	"strings"

	"github.com/socialpulse/pulse/internal/aggregation"
	"github.com/socialpulse/pulse/internal/cache"
	"github.com/socialpulse/pulse/internal/handlers"
	"github.com/socialpulse/pulse/internal/ingest"
	"github.com/socialpulse/pulse/internal/kpi"
	"github.com/socialpulse/pulse/internal/metrics"
	"github.com/socialpulse/pulse/internal/predict"
	"github.com/socialpulse/pulse/internal/scheduler"
	"github.com/socialpulse/pulse/internal/store"
	"github.com/socialpulse/pulse/pkg/config"
	"github.com/socialpulse/pulse/pkg/database"
	"github.com/socialpulse/pulse/pkg/kafka"
	"github.com/socialpulse/pulse/pkg/logging"
	"github.com/socialpulse/pulse/pkg/middleware"
	"github.com/socialpulse/pulse/pkg/monitoring"
	"github.com/socialpulse/pulse/pkg/redis"
	"github.com/socialpulse/pulse/pkg/server"
	"github.com/socialpulse/pulse/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("pulse")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Pulse (Social Analytics Pipeline)")

	// PostgreSQL holds aggregated buckets, model state and post metadata;
	// raw samples live in ClickHouse exclusively
	dbURL := config.RequireEnv("DATABASE_URL")
	clickhouseHost := config.RequireEnv("CLICKHOUSE_HOST")
	clickhouseDatabase := config.RequireEnv("CLICKHOUSE_DB")
	clickhouseUser := config.RequireEnv("CLICKHOUSE_USER")
	clickhousePassword := config.RequireEnv("CLICKHOUSE_PASSWORD")
	kafkaBrokers := config.GetEnv("KAFKA_BROKERS", "")
	redisAddr := config.GetEnv("REDIS_ADDR", "")

	dbConfig := database.DefaultConfig()
	dbConfig.URL = dbURL
	pgDB := database.MustConnect(dbConfig, logger)
	defer func() { _ = pgDB.Close() }()

	chConfig := database.DefaultClickHouseConfig()
	chConfig.Addr = []string{clickhouseHost}
	chConfig.Database = clickhouseDatabase
	chConfig.Username = clickhouseUser
	chConfig.Password = clickhousePassword
	clickhouseConn := database.MustConnectClickHouse(chConfig, logger)
	defer func() { _ = clickhouseConn.Close() }()
	clickhouseNative := database.MustConnectClickHouseNative(chConfig, logger)
	defer func() { _ = clickhouseNative.Close() }()

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("pulse", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("pulse", version.Version, version.GitCommit)
	serviceMetrics := metrics.New(metricsCollector)

	healthChecker.AddCheck("postgres", monitoring.DatabaseHealthCheck(pgDB))
	healthChecker.AddCheck("clickhouse", monitoring.ClickHouseHealthCheck(clickhouseConn))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL":    dbURL,
		"CLICKHOUSE_HOST": clickhouseHost,
		"CLICKHOUSE_DB":   clickhouseDatabase,
	}))

	// Cache backend: Redis when configured, per-process memory otherwise
	var cacheStore cache.Store
	if redisAddr != "" {
		redisClient, err := redis.NewUniversalClient(context.Background(), redis.Config{
			Mode:     redis.Mode(config.GetEnv("REDIS_MODE", string(redis.ModeSingle))),
			Addrs:    strings.Split(redisAddr, ","),
			Password: config.GetEnv("REDIS_PASSWORD", ""),
			DB:       config.GetEnvInt("REDIS_DB", 0),
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		healthChecker.AddCheck("redis", monitoring.RedisHealthCheck(redisClient))
		cacheStore = cache.NewRedisStore(redisClient, logger, serviceMetrics.CacheHooks())
		logger.WithField("addr", redisAddr).Info("Using Redis cache backend")
	} else {
		cacheStore = cache.NewMemoryStore(config.GetEnvInt("CACHE_MAX_ENTRIES", 10000), serviceMetrics.CacheHooks())
		logger.Info("Using in-memory cache backend")
	}
	defer func() { _ = cacheStore.Close() }()

	// Stores
	sampleStore := store.NewClickHouseSampleStore(clickhouseConn, clickhouseNative, logger)
	bucketStore := store.NewPostgresBucketStore(pgDB, logger)
	modelStore := store.NewPostgresModelStore(pgDB, logger)
	postStore := store.NewPostgresPostStore(pgDB, logger)

	// Engines
	aggEngine := aggregation.NewEngine(sampleStore, bucketStore, cacheStore, logger)
	kpiEngine := kpi.NewEngine(sampleStore, postStore, logger)
	predictEngine := predict.NewEngine(sampleStore, modelStore, postStore, logger)

	// The scheduler owns all aggregation entry points; manual triggers route
	// through it as well
	taskScheduler := scheduler.NewScheduler(aggEngine, logger, serviceMetrics)

	handlers.Init(sampleStore, bucketStore, kpiEngine, predictEngine, taskScheduler, cacheStore, logger, serviceMetrics)

	// Periodic aggregation sweeps
	taskScheduler.Start()
	defer taskScheduler.Stop()

	// Kafka ingestion is optional; without brokers only HTTP ingestion is available
	if kafkaBrokers != "" {
		brokers := strings.Split(kafkaBrokers, ",")
		clusterID := config.GetEnv("KAFKA_CLUSTER_ID", "pulse")
		groupID := config.GetEnv("KAFKA_GROUP_ID", "pulse-ingest")

		producer, err := kafka.NewProducer(brokers, clusterID, "pulse-dlq-producer", logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka producer")
		}
		defer func() { _ = producer.Close() }()

		consumer, err := kafka.NewConsumer(brokers, groupID, clusterID, "pulse-ingest", logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka consumer")
		}
		defer func() { _ = consumer.Close() }()

		ingestHandler := ingest.NewHandler(sampleStore, cacheStore, producer, logger, serviceMetrics)
		consumer.AddHandler(config.GetEnv("KAFKA_SAMPLE_TOPIC", kafka.DefaultSampleTopic), ingestHandler.HandleMessage)

		healthChecker.AddCheck("kafka", monitoring.KafkaConsumerHealthCheck(consumer.GetClient()))

		consumerCtx, cancelConsumer := context.WithCancel(context.Background())
		defer cancelConsumer()
		go func() {
			if err := consumer.Start(consumerCtx); err != nil && consumerCtx.Err() == nil {
				logger.WithError(err).Error("Kafka consumer stopped")
			}
		}()

		logger.WithField("brokers", kafkaBrokers).Info("Kafka ingestion started")
	} else {
		logger.Warn("KAFKA_BROKERS not set; Kafka ingestion disabled")
	}

	// Setup router with unified monitoring and the workspace-scoped API
	router := server.SetupServiceRouter(logger, "pulse", healthChecker, metricsCollector)

	api := router.Group("/api/v1")
	api.Use(middleware.WorkspaceMiddleware())
	{
		api.GET("/kpis/overview", handlers.GetOverviewKPIs)
		api.GET("/kpis/engagement", handlers.GetEngagementBreakdown)
		api.GET("/kpis/platforms", handlers.GetPlatformBreakdown)
		api.GET("/kpis/top-posts", handlers.GetTopPosts)
		api.GET("/series", handlers.GetTimeSeries)
		api.GET("/series/followers", handlers.GetFollowerGrowth)
		api.GET("/accounts", handlers.GetActiveAccounts)
		api.GET("/aggregates/:period", handlers.GetAggregatedBuckets)

		api.GET("/predict/trends", handlers.PredictTrends)
		api.GET("/predict/anomalies", handlers.DetectAnomalies)
		api.GET("/predict/forecast", handlers.ForecastReach)
		api.GET("/predict/insights", handlers.GenerateInsights)
		api.POST("/predict/engagement", handlers.PredictEngagement)

		api.POST("/samples", handlers.StoreSample)
		api.POST("/aggregate/:period", handlers.TriggerAggregation)
		api.POST("/cache/invalidate", handlers.InvalidateCache)
	}

	// Start HTTP server with graceful shutdown
	serverConfig := server.DefaultConfig("pulse", "18080")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
