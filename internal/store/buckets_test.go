package store

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialpulse/pulse/pkg/logging"
	"github.com/socialpulse/pulse/pkg/models"
)

func testBucket() *models.AggregatedBucket {
	return &models.AggregatedBucket{
		WorkspaceID:        "ws-1",
		AccountID:          "acc-1",
		Platform:           "instagram",
		Period:             models.PeriodDaily,
		PeriodStart:        time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:          time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC),
		TotalLikes:         120,
		TotalComments:      14,
		AvgEngagementRate:  3.5,
		PostCount:          4,
		FollowerGrowth:     100,
		FollowerGrowthRate: 10.0,
	}
}

func TestUpsertBucket(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresBucketStore(db, logging.NewLogger())

	mock.ExpectExec("INSERT INTO aggregated_metrics").
		WithArgs("ws-1", "acc-1", "instagram", "daily",
			sqlmock.AnyArg(), sqlmock.AnyArg(),
			int64(120), int64(14), int64(0), int64(0),
			int64(0), int64(0), int64(0),
			3.5, 0.0, 0.0,
			4, int64(100), 10.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.UpsertBucket(context.Background(), testBucket())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBucketIdempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresBucketStore(db, logging.NewLogger())

	// Same identity twice; the second write updates in place.
	mock.ExpectExec("INSERT INTO aggregated_metrics").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO aggregated_metrics").WillReturnResult(sqlmock.NewResult(0, 1))

	bucket := testBucket()
	require.NoError(t, store.UpsertBucket(context.Background(), bucket))
	require.NoError(t, store.UpsertBucket(context.Background(), bucket))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBuckets(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresBucketStore(db, logging.NewLogger())

	periodStart := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"workspace_id", "account_id", "platform", "period", "period_start", "period_end",
		"total_likes", "total_comments", "total_shares", "total_saves",
		"total_impressions", "total_reach", "total_views",
		"avg_engagement_rate", "min_engagement_rate", "max_engagement_rate",
		"post_count", "follower_growth", "follower_growth_rate", "updated_at",
	}).AddRow(
		"ws-1", "acc-1", "instagram", "daily", periodStart, periodStart.AddDate(0, 0, 1),
		120, 14, 0, 0, 0, 0, 0,
		3.5, 0.0, 0.0,
		4, 100, 10.0, time.Now(),
	)

	mock.ExpectQuery("SELECT (.+) FROM aggregated_metrics").
		WithArgs("ws-1", "daily", sqlmock.AnyArg(), sqlmock.AnyArg(), "acc-1").
		WillReturnRows(rows)

	buckets, err := store.ListBuckets(context.Background(), BucketQuery{
		WorkspaceID: "ws-1",
		AccountID:   "acc-1",
		Period:      models.PeriodDaily,
		From:        periodStart.AddDate(0, 0, -7),
		To:          periodStart.AddDate(0, 0, 7),
	})
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, int64(120), buckets[0].TotalLikes)
	assert.Equal(t, models.PeriodDaily, buckets[0].Period)
	assert.NoError(t, mock.ExpectationsWereMet())
}
