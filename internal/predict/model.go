package predict

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/socialpulse/pulse/internal/store"
	"github.com/socialpulse/pulse/pkg/logging"
	"github.com/socialpulse/pulse/pkg/models"
)

const (
	// minTrainingSamples: below this the model stays untrained and
	// predictions are zero with confidence 0
	minTrainingSamples = 50
	// maxTrainingSamples caps the training window to the most recent posts
	maxTrainingSamples = 1000
	// retrainInterval gates training per workspace/platform
	retrainInterval = 24 * time.Hour
	// trainingLookback bounds how far back training samples are fetched
	trainingLookback = 90 * 24 * time.Hour

	// predictionConfidence is fixed: the model carries no validation signal
	predictionConfidence = 0.7

	featureCount = 5
)

// PostMetaStore supplies content metadata for training features. May be nil;
// samples then train on timing features alone.
type PostMetaStore interface {
	ListPostMeta(ctx context.Context, workspaceID string, postIDs []string) (map[string]store.PostMeta, error)
}

// EngagementModel predicts single-post engagement from normalized features
// using per-target linear regressions trained on recent post samples joined
// with stored post metadata.
type EngagementModel struct {
	samples store.SampleStore
	state   store.ModelStore
	posts   PostMetaStore
	logger  logging.Logger
	now     func() time.Time
}

// NewEngagementModel creates an engagement predictor.
func NewEngagementModel(samples store.SampleStore, state store.ModelStore, posts PostMetaStore, logger logging.Logger) *EngagementModel {
	return &EngagementModel{
		samples: samples,
		state:   state,
		posts:   posts,
		logger:  logger,
		now:     time.Now,
	}
}

// NormalizeFeatures maps raw features into [0,1] inputs with a leading bias
// term.
func NormalizeFeatures(f models.EngagementFeatures) []float64 {
	return []float64{
		1, // bias
		float64(f.TimeOfDay) / 23,
		float64(f.DayOfWeek) / 6,
		math.Min(1, float64(f.ContentLength)/1000),
		math.Min(1, float64(f.HashtagCount)/30),
		math.Min(1, float64(f.MediaCount)/10),
	}
}

// Predict returns rounded, non-negative engagement estimates for the given
// features. Without a trained model every estimate is 0 with confidence 0.
func (m *EngagementModel) Predict(ctx context.Context, workspaceID, platform string, features models.EngagementFeatures) (*models.EngagementPrediction, error) {
	state, err := m.ensureTrained(ctx, workspaceID, platform)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return &models.EngagementPrediction{}, nil
	}

	x := NormalizeFeatures(features)
	return &models.EngagementPrediction{
		Likes:      predictTarget(state.Weights.Likes, x),
		Comments:   predictTarget(state.Weights.Comments, x),
		Shares:     predictTarget(state.Weights.Shares, x),
		Confidence: predictionConfidence,
	}, nil
}

// ensureTrained returns the current model state, training at most once per
// 24h per workspace/platform. Returns nil when no model can be trained and
// none exists.
func (m *EngagementModel) ensureTrained(ctx context.Context, workspaceID, platform string) (*models.EngagementModelState, error) {
	state, err := m.state.GetModel(ctx, workspaceID, platform)
	if err != nil {
		return nil, err
	}
	if state != nil && m.now().Sub(state.TrainedAt) < retrainInterval {
		return state, nil
	}

	trained, err := m.train(ctx, workspaceID, platform)
	if err != nil {
		return nil, err
	}
	if trained == nil {
		// Too few samples: keep serving the stale model if one exists
		return state, nil
	}

	if err := m.state.SaveModel(ctx, trained); err != nil {
		m.logger.WithError(err).WithFields(logging.Fields{
			"workspace_id": workspaceID,
			"platform":     platform,
		}).Warn("Failed to persist engagement model, using in-memory result")
	}
	return trained, nil
}

func (m *EngagementModel) train(ctx context.Context, workspaceID, platform string) (*models.EngagementModelState, error) {
	now := m.now()
	samples, err := m.samples.ListSamples(ctx, store.SampleQuery{
		WorkspaceID: workspaceID,
		Platform:    platform,
		Kind:        models.SampleKindPost,
		From:        now.Add(-trainingLookback),
		To:          now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load training samples: %w", err)
	}

	// Most recent samples win when over the cap
	if len(samples) > maxTrainingSamples {
		samples = samples[len(samples)-maxTrainingSamples:]
	}
	if len(samples) < minTrainingSamples {
		m.logger.WithFields(logging.Fields{
			"workspace_id": workspaceID,
			"platform":     platform,
			"samples":      len(samples),
		}).Debug("Too few post samples to train engagement model")
		return nil, nil
	}

	meta := m.trainingMeta(ctx, workspaceID, samples)

	features := make([][]float64, len(samples))
	likes := make([]float64, len(samples))
	comments := make([]float64, len(samples))
	shares := make([]float64, len(samples))
	for i, s := range samples {
		features[i] = NormalizeFeatures(trainingFeatures(s, meta))
		likes[i] = float64(s.Metrics.Likes)
		comments[i] = float64(s.Metrics.Comments)
		shares[i] = float64(s.Metrics.Shares)
	}

	state := &models.EngagementModelState{
		WorkspaceID: workspaceID,
		Platform:    platform,
		Weights: models.ModelWeights{
			Likes:    fitLeastSquares(features, likes),
			Comments: fitLeastSquares(features, comments),
			Shares:   fitLeastSquares(features, shares),
		},
		SampleCount: len(samples),
		TrainedAt:   now,
	}
	return state, nil
}

// trainingMeta loads content metadata for the distinct posts in the training
// set. Lookup failures degrade to timing-only features.
func (m *EngagementModel) trainingMeta(ctx context.Context, workspaceID string, samples []models.Sample) map[string]store.PostMeta {
	if m.posts == nil {
		return nil
	}

	seen := make(map[string]struct{}, len(samples))
	var ids []string
	for _, s := range samples {
		if s.PostID == "" {
			continue
		}
		if _, ok := seen[s.PostID]; !ok {
			seen[s.PostID] = struct{}{}
			ids = append(ids, s.PostID)
		}
	}

	meta, err := m.posts.ListPostMeta(ctx, workspaceID, ids)
	if err != nil {
		m.logger.WithError(err).WithField("workspace_id", workspaceID).
			Warn("Post metadata lookup failed, training on timing features only")
		return nil
	}
	return meta
}

// trainingFeatures derives model inputs for one training sample. Content
// signals come from stored post metadata; samples without metadata contribute
// timing features only.
func trainingFeatures(s models.Sample, meta map[string]store.PostMeta) models.EngagementFeatures {
	ts := s.Timestamp.UTC()
	f := models.EngagementFeatures{
		TimeOfDay: ts.Hour(),
		DayOfWeek: int(ts.Weekday()),
	}

	pm, ok := meta[s.PostID]
	if !ok {
		return f
	}
	f.ContentLength = utf8.RuneCountInString(pm.ContentPreview)
	f.HashtagCount = strings.Count(pm.ContentPreview, "#")
	if pm.ContentType != "" && pm.ContentType != "text" {
		f.MediaCount = 1
	}
	return f
}

func predictTarget(weights []float64, x []float64) int64 {
	if len(weights) != len(x) {
		return 0
	}
	var sum float64
	for i, w := range weights {
		sum += w * x[i]
	}
	if sum < 0 {
		return 0
	}
	return int64(math.Round(sum))
}

// fitLeastSquares solves the normal equations (XᵀX + λI)w = Xᵀy with a tiny
// ridge term so collinear features never blow up the solve.
func fitLeastSquares(features [][]float64, targets []float64) []float64 {
	const ridge = 1e-6
	dim := featureCount + 1

	xtx := make([][]float64, dim)
	for i := range xtx {
		xtx[i] = make([]float64, dim)
	}
	xty := make([]float64, dim)

	for row, x := range features {
		y := targets[row]
		for i := 0; i < dim; i++ {
			xty[i] += x[i] * y
			for j := 0; j < dim; j++ {
				xtx[i][j] += x[i] * x[j]
			}
		}
	}
	for i := 0; i < dim; i++ {
		xtx[i][i] += ridge
	}

	return solveLinearSystem(xtx, xty)
}

// solveLinearSystem performs Gaussian elimination with partial pivoting.
func solveLinearSystem(a [][]float64, b []float64) []float64 {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		if a[col][col] == 0 {
			continue
		}

		for row := col + 1; row < n; row++ {
			factor := a[row][col] / a[col][col]
			for k := col; k < n; k++ {
				a[row][k] -= factor * a[col][k]
			}
			b[row] -= factor * b[col]
		}
	}

	weights := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		if a[row][row] == 0 {
			continue
		}
		sum := b[row]
		for col := row + 1; col < n; col++ {
			sum -= a[row][col] * weights[col]
		}
		weights[row] = sum / a[row][row]
	}
	return weights
}
