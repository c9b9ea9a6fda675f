package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialpulse/pulse/pkg/models"
)

func TestDecodeSampleEventRoundTrip(t *testing.T) {
	event := &SampleEvent{
		EventID:     "evt-1",
		WorkspaceID: "ws-1",
		Source:      "instagram-fetcher",
		CollectedAt: time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
		Samples: []models.Sample{
			{
				SampleID:    "s-1",
				WorkspaceID: "ws-1",
				AccountID:   "acc-1",
				Platform:    "instagram",
				Kind:        models.SampleKindAccount,
				Timestamp:   time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
				Metrics:     models.MetricCounts{Followers: 1500, Likes: 10},
			},
		},
		SchemaVersion: "1.0",
	}

	value, err := event.Encode()
	require.NoError(t, err)

	decoded, err := DecodeSampleEvent(value)
	require.NoError(t, err)
	assert.Equal(t, "ws-1", decoded.WorkspaceID)
	require.Len(t, decoded.Samples, 1)
	assert.Equal(t, int64(1500), decoded.Samples[0].Metrics.Followers)
}

func TestDecodeSampleEventRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: "{{"},
		{name: "missing workspace", payload: `{"event_id":"e","samples":[{"account_id":"a"}]}`},
		{name: "empty samples", payload: `{"event_id":"e","workspace_id":"ws","samples":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSampleEvent([]byte(tt.payload))
			assert.Error(t, err)
		})
	}
}
