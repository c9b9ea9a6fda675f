package store

import (
	"context"
	"fmt"
	"time"

	"github.com/socialpulse/pulse/pkg/database"
	"github.com/socialpulse/pulse/pkg/logging"
	"github.com/socialpulse/pulse/pkg/models"
)

// BucketStore persists period roll-ups. Writes are idempotent on the
// (workspace, account, platform, period, period_start) identity.
type BucketStore interface {
	UpsertBucket(ctx context.Context, bucket *models.AggregatedBucket) error
	ListBuckets(ctx context.Context, q BucketQuery) ([]models.AggregatedBucket, error)
}

// BucketQuery filters a bucket listing. Results are ordered by period_start
// ascending.
type BucketQuery struct {
	WorkspaceID string
	AccountID   string
	Platform    string
	Period      models.Period
	From        time.Time
	To          time.Time
}

// PostgresBucketStore stores aggregated buckets in the aggregated_metrics table.
type PostgresBucketStore struct {
	db     database.PostgresConn
	logger logging.Logger
}

// NewPostgresBucketStore creates a bucket store backed by Postgres.
func NewPostgresBucketStore(db database.PostgresConn, logger logging.Logger) *PostgresBucketStore {
	return &PostgresBucketStore{db: db, logger: logger}
}

// UpsertBucket writes a bucket, overwriting any previous roll-up for the same
// identity. Re-running aggregation over the same window converges to the same
// row.
func (s *PostgresBucketStore) UpsertBucket(ctx context.Context, bucket *models.AggregatedBucket) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO aggregated_metrics (
			workspace_id, account_id, platform, period, period_start, period_end,
			total_likes, total_comments, total_shares, total_saves,
			total_impressions, total_reach, total_views,
			avg_engagement_rate, min_engagement_rate, max_engagement_rate,
			post_count, follower_growth, follower_growth_rate, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, NOW())
		ON CONFLICT ON CONSTRAINT aggregated_metrics_identity DO UPDATE SET
			period_end = EXCLUDED.period_end,
			total_likes = EXCLUDED.total_likes,
			total_comments = EXCLUDED.total_comments,
			total_shares = EXCLUDED.total_shares,
			total_saves = EXCLUDED.total_saves,
			total_impressions = EXCLUDED.total_impressions,
			total_reach = EXCLUDED.total_reach,
			total_views = EXCLUDED.total_views,
			avg_engagement_rate = EXCLUDED.avg_engagement_rate,
			min_engagement_rate = EXCLUDED.min_engagement_rate,
			max_engagement_rate = EXCLUDED.max_engagement_rate,
			post_count = EXCLUDED.post_count,
			follower_growth = EXCLUDED.follower_growth,
			follower_growth_rate = EXCLUDED.follower_growth_rate,
			updated_at = NOW()
	`, bucket.WorkspaceID, bucket.AccountID, bucket.Platform, string(bucket.Period),
		bucket.PeriodStart, bucket.PeriodEnd,
		bucket.TotalLikes, bucket.TotalComments, bucket.TotalShares, bucket.TotalSaves,
		bucket.TotalImpressions, bucket.TotalReach, bucket.TotalViews,
		bucket.AvgEngagementRate, bucket.MinEngagementRate, bucket.MaxEngagementRate,
		bucket.PostCount, bucket.FollowerGrowth, bucket.FollowerGrowthRate)

	if err != nil {
		return fmt.Errorf("failed to upsert bucket for %s/%s/%s: %w",
			bucket.WorkspaceID, bucket.AccountID, bucket.Platform, err)
	}

	return nil
}

// ListBuckets returns roll-ups matching the query ordered by period start.
func (s *PostgresBucketStore) ListBuckets(ctx context.Context, q BucketQuery) ([]models.AggregatedBucket, error) {
	query := `
		SELECT workspace_id, account_id, platform, period, period_start, period_end,
		       COALESCE(total_likes, 0), COALESCE(total_comments, 0),
		       COALESCE(total_shares, 0), COALESCE(total_saves, 0),
		       COALESCE(total_impressions, 0), COALESCE(total_reach, 0),
		       COALESCE(total_views, 0),
		       COALESCE(avg_engagement_rate, 0), COALESCE(min_engagement_rate, 0),
		       COALESCE(max_engagement_rate, 0),
		       COALESCE(post_count, 0), COALESCE(follower_growth, 0),
		       COALESCE(follower_growth_rate, 0), updated_at
		FROM aggregated_metrics
		WHERE workspace_id = $1 AND period = $2 AND period_start >= $3 AND period_start < $4`

	args := []interface{}{q.WorkspaceID, string(q.Period), q.From, q.To}

	if q.AccountID != "" {
		args = append(args, q.AccountID)
		query += fmt.Sprintf(" AND account_id = $%d", len(args))
	}
	if q.Platform != "" {
		args = append(args, q.Platform)
		query += fmt.Sprintf(" AND platform = $%d", len(args))
	}

	query += " ORDER BY period_start ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query buckets: %w", err)
	}
	defer rows.Close()

	var buckets []models.AggregatedBucket
	for rows.Next() {
		var b models.AggregatedBucket
		var period string
		if err := rows.Scan(
			&b.WorkspaceID, &b.AccountID, &b.Platform, &period, &b.PeriodStart, &b.PeriodEnd,
			&b.TotalLikes, &b.TotalComments, &b.TotalShares, &b.TotalSaves,
			&b.TotalImpressions, &b.TotalReach, &b.TotalViews,
			&b.AvgEngagementRate, &b.MinEngagementRate, &b.MaxEngagementRate,
			&b.PostCount, &b.FollowerGrowth, &b.FollowerGrowthRate, &b.UpdatedAt,
		); err != nil {
			s.logger.WithError(err).Error("Failed to scan bucket row")
			continue
		}
		b.Period = models.Period(period)
		buckets = append(buckets, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bucket row iteration failed: %w", err)
	}

	return buckets, nil
}
