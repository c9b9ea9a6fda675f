package scheduler

import (
	"context"
	"time"

	"github.com/socialpulse/pulse/internal/aggregation"
	"github.com/socialpulse/pulse/internal/metrics"
	"github.com/socialpulse/pulse/pkg/logging"
	"github.com/socialpulse/pulse/pkg/models"
)

// Sweep intervals. Daily buckets refresh hourly so the current day stays
// warm; weekly and monthly buckets change slowly and refresh daily. Upserts
// are idempotent, so re-running a sweep over the same window is safe.
const (
	dailyInterval      = time.Hour
	longPeriodInterval = 24 * time.Hour
	initialDelay       = 10 * time.Second
	sweepTimeout       = 10 * time.Minute
)

// Scheduler drives periodic aggregation sweeps across all active workspaces.
type Scheduler struct {
	logger      logging.Logger
	engine      *aggregation.Engine
	metrics     *metrics.Metrics
	dailyTicker *time.Ticker
	longTicker  *time.Ticker
	stopChan    chan bool
}

// NewScheduler creates a scheduler around an aggregation engine. m may be nil.
func NewScheduler(engine *aggregation.Engine, logger logging.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		logger:   logger,
		engine:   engine,
		metrics:  m,
		stopChan: make(chan bool),
	}
}

// Start begins the scheduled sweeps.
func (s *Scheduler) Start() {
	s.logger.WithFields(logging.Fields{
		"daily_interval":       dailyInterval,
		"long_period_interval": longPeriodInterval,
	}).Info("Starting aggregation scheduler")

	s.dailyTicker = time.NewTicker(dailyInterval)
	s.longTicker = time.NewTicker(longPeriodInterval)
	go s.run()

	// Initial sweep shortly after startup so a fresh deployment has buckets
	// before the first tick.
	go func() {
		time.Sleep(initialDelay)
		s.sweep(models.PeriodDaily)
		s.sweep(models.PeriodWeekly)
		s.sweep(models.PeriodMonthly)
	}()
}

// Stop stops all scheduled sweeps.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping aggregation scheduler")

	if s.dailyTicker != nil {
		s.dailyTicker.Stop()
	}
	if s.longTicker != nil {
		s.longTicker.Stop()
	}

	close(s.stopChan)
}

func (s *Scheduler) run() {
	for {
		select {
		case <-s.dailyTicker.C:
			s.sweep(models.PeriodDaily)
		case <-s.longTicker.C:
			s.sweep(models.PeriodWeekly)
			s.sweep(models.PeriodMonthly)
		case <-s.stopChan:
			s.logger.Info("Stopping aggregation sweep runner")
			return
		}
	}
}

func (s *Scheduler) sweep(period models.Period) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	err := s.engine.AggregateAll(ctx, period, time.Now().UTC())
	status := "ok"
	if err != nil {
		status = "error"
		s.logger.WithError(err).WithField("period", period).Error("Scheduled aggregation sweep failed")
	}

	if s.metrics != nil {
		s.metrics.ObserveAggregation(string(period), status, time.Since(start).Seconds())
	}
}

// TriggerWorkspace runs one aggregation pass for a single workspace, used by
// the manual trigger endpoints.
func (s *Scheduler) TriggerWorkspace(ctx context.Context, workspaceID string, period models.Period, ref time.Time) error {
	s.logger.WithFields(logging.Fields{
		"workspace_id": workspaceID,
		"period":       period,
	}).Info("Manually triggering aggregation")

	return s.engine.Aggregate(ctx, workspaceID, period, ref)
}

// TriggerAll runs one sweep over every active workspace for the period
// containing ref.
func (s *Scheduler) TriggerAll(ctx context.Context, period models.Period, ref time.Time) error {
	s.logger.WithField("period", period).Info("Manually triggering aggregation sweep")
	return s.engine.AggregateAll(ctx, period, ref)
}
