package store

import (
	"context"
	"fmt"
	"time"

	"github.com/socialpulse/pulse/pkg/database"
	"github.com/socialpulse/pulse/pkg/logging"
	"github.com/socialpulse/pulse/pkg/models"
)

// SampleStore is the read/write surface over raw metric samples. The
// aggregation and KPI engines only depend on this interface so tests can
// substitute an in-memory implementation.
type SampleStore interface {
	InsertSamples(ctx context.Context, samples []models.Sample) error
	ListSamples(ctx context.Context, q SampleQuery) ([]models.Sample, error)
	ActiveWorkspaces(ctx context.Context, lookback time.Duration) ([]string, error)
	ActiveAccounts(ctx context.Context, workspaceID string, lookback time.Duration) ([]AccountRef, error)
}

// AccountRef identifies one tracked account on one platform.
type AccountRef struct {
	AccountID string
	Platform  string
}

// SampleQuery filters a sample listing. WorkspaceID and the time window are
// required; everything else narrows the result. Results are always ordered by
// timestamp ascending.
type SampleQuery struct {
	WorkspaceID string
	AccountID   string
	Platform    string
	Kind        models.SampleKind
	From        time.Time
	To          time.Time
	Limit       int
}

// ClickHouseSampleStore persists samples in the metric_samples table.
type ClickHouseSampleStore struct {
	conn   database.ClickHouseConn
	native database.ClickHouseNativeConn
	logger logging.Logger
}

// NewClickHouseSampleStore creates a sample store backed by ClickHouse. The
// native connection is used for batch inserts, the SQL connection for reads.
func NewClickHouseSampleStore(conn database.ClickHouseConn, native database.ClickHouseNativeConn, logger logging.Logger) *ClickHouseSampleStore {
	return &ClickHouseSampleStore{
		conn:   conn,
		native: native,
		logger: logger,
	}
}

// InsertSamples writes a batch of samples using the native protocol. Samples
// are append-only; duplicates on sample_id are tolerated and collapse at the
// MergeTree level.
func (s *ClickHouseSampleStore) InsertSamples(ctx context.Context, samples []models.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	batch, err := s.native.PrepareBatch(ctx, `
		INSERT INTO metric_samples (
			sample_id, workspace_id, account_id, platform, kind,
			post_id, platform_post_id, content_type, timestamp,
			likes, comments, shares, saves, impressions,
			reach, views, followers, following, profile_views
		)`)
	if err != nil {
		return fmt.Errorf("failed to prepare sample batch: %w", err)
	}

	for i := range samples {
		sample := &samples[i]
		if err := batch.Append(
			sample.SampleID,
			sample.WorkspaceID,
			sample.AccountID,
			sample.Platform,
			string(sample.Kind),
			sample.PostID,
			sample.PlatformPostID,
			sample.ContentType,
			sample.Timestamp,
			uint64(sample.Metrics.Likes),
			uint64(sample.Metrics.Comments),
			uint64(sample.Metrics.Shares),
			uint64(sample.Metrics.Saves),
			uint64(sample.Metrics.Impressions),
			uint64(sample.Metrics.Reach),
			uint64(sample.Metrics.Views),
			uint64(sample.Metrics.Followers),
			uint64(sample.Metrics.Following),
			uint64(sample.Metrics.ProfileViews),
		); err != nil {
			return fmt.Errorf("failed to append sample %s: %w", sample.SampleID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send sample batch: %w", err)
	}

	s.logger.WithFields(logging.Fields{
		"count":        len(samples),
		"workspace_id": samples[0].WorkspaceID,
	}).Debug("Inserted sample batch")

	return nil
}

// ListSamples returns samples matching the query ordered by timestamp.
func (s *ClickHouseSampleStore) ListSamples(ctx context.Context, q SampleQuery) ([]models.Sample, error) {
	query := `
		SELECT sample_id, workspace_id, account_id, platform, kind,
		       post_id, platform_post_id, content_type, timestamp,
		       likes, comments, shares, saves, impressions,
		       reach, views, followers, following, profile_views
		FROM metric_samples
		WHERE workspace_id = ? AND timestamp >= ? AND timestamp < ?`

	args := []interface{}{q.WorkspaceID, q.From, q.To}

	if q.AccountID != "" {
		query += " AND account_id = ?"
		args = append(args, q.AccountID)
	}
	if q.Platform != "" {
		query += " AND platform = ?"
		args = append(args, q.Platform)
	}
	if q.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(q.Kind))
	}

	query += " ORDER BY timestamp ASC"

	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []models.Sample
	for rows.Next() {
		var sample models.Sample
		var kind string
		var likes, comments, shares, saves, impressions uint64
		var reach, views, followers, following, profileViews uint64
		if err := rows.Scan(
			&sample.SampleID, &sample.WorkspaceID, &sample.AccountID, &sample.Platform, &kind,
			&sample.PostID, &sample.PlatformPostID, &sample.ContentType, &sample.Timestamp,
			&likes, &comments, &shares, &saves, &impressions,
			&reach, &views, &followers, &following, &profileViews,
		); err != nil {
			s.logger.WithError(err).Error("Failed to scan sample row")
			continue
		}
		sample.Kind = models.SampleKind(kind)
		sample.Metrics = models.MetricCounts{
			Likes:        int64(likes),
			Comments:     int64(comments),
			Shares:       int64(shares),
			Saves:        int64(saves),
			Impressions:  int64(impressions),
			Reach:        int64(reach),
			Views:        int64(views),
			Followers:    int64(followers),
			Following:    int64(following),
			ProfileViews: int64(profileViews),
		}
		samples = append(samples, sample)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sample row iteration failed: %w", err)
	}

	return samples, nil
}

// ActiveWorkspaces returns workspaces with any sample inside the lookback
// window. The aggregation scheduler iterates this set.
func (s *ClickHouseSampleStore) ActiveWorkspaces(ctx context.Context, lookback time.Duration) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT DISTINCT workspace_id
		FROM metric_samples
		WHERE timestamp >= now() - INTERVAL ? SECOND
		AND workspace_id != ''
		ORDER BY workspace_id
	`, int64(lookback.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("failed to query active workspaces: %w", err)
	}
	defer rows.Close()

	var workspaces []string
	for rows.Next() {
		var workspaceID string
		if err := rows.Scan(&workspaceID); err != nil {
			s.logger.WithError(err).Error("Failed to scan workspace ID")
			continue
		}
		workspaces = append(workspaces, workspaceID)
	}

	return workspaces, rows.Err()
}

// ActiveAccounts returns the account/platform pairs a workspace had samples
// for inside the lookback window.
func (s *ClickHouseSampleStore) ActiveAccounts(ctx context.Context, workspaceID string, lookback time.Duration) ([]AccountRef, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT DISTINCT account_id, platform
		FROM metric_samples
		WHERE workspace_id = ?
		AND timestamp >= now() - INTERVAL ? SECOND
		ORDER BY account_id, platform
	`, workspaceID, int64(lookback.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("failed to query active accounts: %w", err)
	}
	defer rows.Close()

	var accounts []AccountRef
	for rows.Next() {
		var ref AccountRef
		if err := rows.Scan(&ref.AccountID, &ref.Platform); err != nil {
			s.logger.WithError(err).Error("Failed to scan account ref")
			continue
		}
		accounts = append(accounts, ref)
	}

	return accounts, rows.Err()
}
