package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/socialpulse/pulse/pkg/database"
	"github.com/socialpulse/pulse/pkg/logging"
	"github.com/socialpulse/pulse/pkg/models"
)

// ModelStore persists trained engagement model state per workspace/platform.
type ModelStore interface {
	GetModel(ctx context.Context, workspaceID, platform string) (*models.EngagementModelState, error)
	SaveModel(ctx context.Context, state *models.EngagementModelState) error
}

// PostgresModelStore stores model state in the engagement_models table with
// weights serialized as JSONB.
type PostgresModelStore struct {
	db     database.PostgresConn
	logger logging.Logger
}

// NewPostgresModelStore creates a model store backed by Postgres.
func NewPostgresModelStore(db database.PostgresConn, logger logging.Logger) *PostgresModelStore {
	return &PostgresModelStore{db: db, logger: logger}
}

// GetModel returns the trained model for a workspace/platform, or nil when no
// model has been trained yet.
func (s *PostgresModelStore) GetModel(ctx context.Context, workspaceID, platform string) (*models.EngagementModelState, error) {
	var state models.EngagementModelState
	var weightsJSON []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT workspace_id, platform, weights, sample_count, trained_at
		FROM engagement_models
		WHERE workspace_id = $1 AND platform = $2
	`, workspaceID, platform).Scan(
		&state.WorkspaceID, &state.Platform, &weightsJSON, &state.SampleCount, &state.TrainedAt)

	if err == database.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load engagement model: %w", err)
	}

	if err := json.Unmarshal(weightsJSON, &state.Weights); err != nil {
		return nil, fmt.Errorf("failed to decode model weights: %w", err)
	}

	return &state, nil
}

// SaveModel upserts the model state for its workspace/platform.
func (s *PostgresModelStore) SaveModel(ctx context.Context, state *models.EngagementModelState) error {
	weightsJSON, err := json.Marshal(state.Weights)
	if err != nil {
		return fmt.Errorf("failed to encode model weights: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO engagement_models (workspace_id, platform, weights, sample_count, trained_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (workspace_id, platform) DO UPDATE SET
			weights = EXCLUDED.weights,
			sample_count = EXCLUDED.sample_count,
			trained_at = EXCLUDED.trained_at
	`, state.WorkspaceID, state.Platform, weightsJSON, state.SampleCount, state.TrainedAt)

	if err != nil {
		return fmt.Errorf("failed to save engagement model: %w", err)
	}

	s.logger.WithFields(logging.Fields{
		"workspace_id": state.WorkspaceID,
		"platform":     state.Platform,
		"sample_count": state.SampleCount,
	}).Debug("Saved engagement model")

	return nil
}
