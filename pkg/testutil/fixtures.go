package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/socialpulse/pulse/internal/store"
	"github.com/socialpulse/pulse/pkg/models"
)

// MemorySampleStore is an in-memory store.SampleStore used by engine tests.
type MemorySampleStore struct {
	mu      sync.RWMutex
	samples []models.Sample

	// FailList forces ListSamples to return an error, for error-path tests
	FailList error
	// FailInsert forces InsertSamples to return an error
	FailInsert error
}

// NewMemorySampleStore creates an empty in-memory sample store.
func NewMemorySampleStore() *MemorySampleStore {
	return &MemorySampleStore{}
}

func (m *MemorySampleStore) InsertSamples(_ context.Context, samples []models.Sample) error {
	if m.FailInsert != nil {
		return m.FailInsert
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, samples...)
	return nil
}

func (m *MemorySampleStore) ListSamples(_ context.Context, q store.SampleQuery) ([]models.Sample, error) {
	if m.FailList != nil {
		return nil, m.FailList
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Sample
	for _, s := range m.samples {
		if s.WorkspaceID != q.WorkspaceID {
			continue
		}
		if q.AccountID != "" && s.AccountID != q.AccountID {
			continue
		}
		if q.Platform != "" && s.Platform != q.Platform {
			continue
		}
		if q.Kind != "" && s.Kind != q.Kind {
			continue
		}
		if s.Timestamp.Before(q.From) || !s.Timestamp.Before(q.To) {
			continue
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *MemorySampleStore) ActiveWorkspaces(_ context.Context, lookback time.Duration) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().Add(-lookback)
	seen := make(map[string]struct{})
	var out []string
	for _, s := range m.samples {
		if s.Timestamp.Before(cutoff) {
			continue
		}
		if _, ok := seen[s.WorkspaceID]; !ok {
			seen[s.WorkspaceID] = struct{}{}
			out = append(out, s.WorkspaceID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemorySampleStore) ActiveAccounts(_ context.Context, workspaceID string, lookback time.Duration) ([]store.AccountRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().Add(-lookback)
	seen := make(map[store.AccountRef]struct{})
	var out []store.AccountRef
	for _, s := range m.samples {
		if s.WorkspaceID != workspaceID || s.Timestamp.Before(cutoff) {
			continue
		}
		ref := store.AccountRef{AccountID: s.AccountID, Platform: s.Platform}
		if _, ok := seen[ref]; !ok {
			seen[ref] = struct{}{}
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AccountID != out[j].AccountID {
			return out[i].AccountID < out[j].AccountID
		}
		return out[i].Platform < out[j].Platform
	})
	return out, nil
}

// MemoryBucketStore is an in-memory store.BucketStore recording upserts.
type MemoryBucketStore struct {
	mu      sync.RWMutex
	buckets map[string]models.AggregatedBucket

	// UpsertCalls counts writes including overwrites
	UpsertCalls int
	// FailUpsert forces UpsertBucket to return an error
	FailUpsert error
}

// NewMemoryBucketStore creates an empty in-memory bucket store.
func NewMemoryBucketStore() *MemoryBucketStore {
	return &MemoryBucketStore{buckets: make(map[string]models.AggregatedBucket)}
}

func bucketKey(b *models.AggregatedBucket) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d",
		b.WorkspaceID, b.AccountID, b.Platform, b.Period, b.PeriodStart.Unix())
}

func (m *MemoryBucketStore) UpsertBucket(_ context.Context, bucket *models.AggregatedBucket) error {
	if m.FailUpsert != nil {
		return m.FailUpsert
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	m.buckets[bucketKey(bucket)] = *bucket
	return nil
}

func (m *MemoryBucketStore) ListBuckets(_ context.Context, q store.BucketQuery) ([]models.AggregatedBucket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.AggregatedBucket
	for _, b := range m.buckets {
		if b.WorkspaceID != q.WorkspaceID || b.Period != q.Period {
			continue
		}
		if q.AccountID != "" && b.AccountID != q.AccountID {
			continue
		}
		if q.Platform != "" && b.Platform != q.Platform {
			continue
		}
		if b.PeriodStart.Before(q.From) || !b.PeriodStart.Before(q.To) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PeriodStart.Before(out[j].PeriodStart)
	})
	return out, nil
}

// Get returns the stored bucket for an identity, if present.
func (m *MemoryBucketStore) Get(workspaceID, accountID, platform string, period models.Period, periodStart time.Time) (models.AggregatedBucket, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.buckets[bucketKey(&models.AggregatedBucket{
		WorkspaceID: workspaceID,
		AccountID:   accountID,
		Platform:    platform,
		Period:      period,
		PeriodStart: periodStart,
	})]
	return b, ok
}

// Len returns the number of distinct bucket identities stored.
func (m *MemoryBucketStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.buckets)
}

// MemoryModelStore is an in-memory store.ModelStore.
type MemoryModelStore struct {
	mu     sync.RWMutex
	models map[string]models.EngagementModelState

	// SaveCalls counts persisted trainings
	SaveCalls int
}

// NewMemoryModelStore creates an empty in-memory model store.
func NewMemoryModelStore() *MemoryModelStore {
	return &MemoryModelStore{models: make(map[string]models.EngagementModelState)}
}

func (m *MemoryModelStore) GetModel(_ context.Context, workspaceID, platform string) (*models.EngagementModelState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.models[workspaceID+"|"+platform]
	if !ok {
		return nil, nil
	}
	copied := state
	return &copied, nil
}

func (m *MemoryModelStore) SaveModel(_ context.Context, state *models.EngagementModelState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	m.models[state.WorkspaceID+"|"+state.Platform] = *state
	return nil
}

// MemoryPostStore is an in-memory post metadata store.
type MemoryPostStore struct {
	mu    sync.RWMutex
	posts map[string]store.PostMeta

	// FailList forces ListPostMeta to return an error
	FailList error
}

// NewMemoryPostStore creates an empty in-memory post metadata store.
func NewMemoryPostStore() *MemoryPostStore {
	return &MemoryPostStore{posts: make(map[string]store.PostMeta)}
}

// PutPostMeta stores metadata for one post.
func (m *MemoryPostStore) PutPostMeta(meta store.PostMeta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[meta.WorkspaceID+"|"+meta.PostID] = meta
}

func (m *MemoryPostStore) GetPostMeta(_ context.Context, workspaceID, postID string) (*store.PostMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta, ok := m.posts[workspaceID+"|"+postID]
	if !ok {
		return nil, nil
	}
	copied := meta
	return &copied, nil
}

func (m *MemoryPostStore) ListPostMeta(_ context.Context, workspaceID string, postIDs []string) (map[string]store.PostMeta, error) {
	if m.FailList != nil {
		return nil, m.FailList
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]store.PostMeta, len(postIDs))
	for _, id := range postIDs {
		if meta, ok := m.posts[workspaceID+"|"+id]; ok {
			out[id] = meta
		}
	}
	return out, nil
}

// AccountSample builds an account-kind sample with the given followers count.
func AccountSample(workspaceID, accountID, platform string, ts time.Time, followers int64) models.Sample {
	return models.Sample{
		SampleID:    fmt.Sprintf("acct-%s-%d", accountID, ts.Unix()),
		WorkspaceID: workspaceID,
		AccountID:   accountID,
		Platform:    platform,
		Kind:        models.SampleKindAccount,
		Timestamp:   ts,
		Metrics:     models.MetricCounts{Followers: followers},
	}
}

// PostSample builds a post-kind sample with the given engagement counters.
func PostSample(workspaceID, accountID, platform, postID string, ts time.Time, metrics models.MetricCounts) models.Sample {
	return models.Sample{
		SampleID:       fmt.Sprintf("post-%s-%d", postID, ts.Unix()),
		WorkspaceID:    workspaceID,
		AccountID:      accountID,
		Platform:       platform,
		Kind:           models.SampleKindPost,
		PostID:         postID,
		PlatformPostID: "ext-" + postID,
		ContentType:    "image",
		Timestamp:      ts,
		Metrics:        metrics,
	}
}
