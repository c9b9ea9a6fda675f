package store

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/socialpulse/pulse/pkg/database"
	"github.com/socialpulse/pulse/pkg/logging"
)

// PostMeta is the human-readable metadata kept alongside a tracked post. It
// is written by the collector service; this pipeline only reads it to
// decorate top-post rows.
type PostMeta struct {
	PostID         string    `json:"post_id"`
	WorkspaceID    string    `json:"workspace_id"`
	ContentPreview string    `json:"content_preview"`
	ContentType    string    `json:"content_type"`
	PublishedAt    time.Time `json:"published_at"`
}

// PostgresPostStore reads post metadata from the posts table.
type PostgresPostStore struct {
	db     database.PostgresConn
	logger logging.Logger
}

// NewPostgresPostStore creates a post metadata reader backed by Postgres.
func NewPostgresPostStore(db database.PostgresConn, logger logging.Logger) *PostgresPostStore {
	return &PostgresPostStore{db: db, logger: logger}
}

// GetPostMeta returns metadata for one post, or nil when the post is unknown.
func (s *PostgresPostStore) GetPostMeta(ctx context.Context, workspaceID, postID string) (*PostMeta, error) {
	var meta PostMeta
	err := s.db.QueryRowContext(ctx, `
		SELECT post_id, workspace_id,
		       COALESCE(content_preview, ''), COALESCE(content_type, ''),
		       COALESCE(published_at, '1970-01-01 00:00:00'::timestamp)
		FROM posts
		WHERE workspace_id = $1 AND post_id = $2
	`, workspaceID, postID).Scan(
		&meta.PostID, &meta.WorkspaceID, &meta.ContentPreview, &meta.ContentType, &meta.PublishedAt)

	if err == database.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load post metadata: %w", err)
	}

	return &meta, nil
}

// ListPostMeta returns metadata for the given posts keyed by post ID. Unknown
// posts are absent from the result.
func (s *PostgresPostStore) ListPostMeta(ctx context.Context, workspaceID string, postIDs []string) (map[string]PostMeta, error) {
	out := make(map[string]PostMeta, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT post_id, workspace_id,
		       COALESCE(content_preview, ''), COALESCE(content_type, ''),
		       COALESCE(published_at, '1970-01-01 00:00:00'::timestamp)
		FROM posts
		WHERE workspace_id = $1 AND post_id = ANY($2)
	`, workspaceID, pq.Array(postIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query post metadata: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var meta PostMeta
		if err := rows.Scan(
			&meta.PostID, &meta.WorkspaceID, &meta.ContentPreview, &meta.ContentType, &meta.PublishedAt); err != nil {
			s.logger.WithError(err).Error("Failed to scan post metadata row")
			continue
		}
		out[meta.PostID] = meta
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("post metadata iteration failed: %w", err)
	}

	return out, nil
}
