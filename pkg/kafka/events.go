package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/socialpulse/pulse/pkg/models"
)

// DefaultSampleTopic is the topic collectors publish metric samples to
const DefaultSampleTopic = "metric_samples"

// SampleEvent is the wire envelope collectors publish after each platform
// poll. One event carries every sample gathered in a single collection run
// for one workspace.
type SampleEvent struct {
	EventID       string          `json:"event_id"`
	WorkspaceID   string          `json:"workspace_id"`
	Source        string          `json:"source"`
	CollectedAt   time.Time       `json:"collected_at"`
	Samples       []models.Sample `json:"samples"`
	SchemaVersion string          `json:"schema_version"`
}

// DecodeSampleEvent parses and minimally validates a sample event payload
func DecodeSampleEvent(value []byte) (*SampleEvent, error) {
	var event SampleEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return nil, fmt.Errorf("unmarshal sample event: %w", err)
	}
	if event.WorkspaceID == "" {
		return nil, fmt.Errorf("sample event %s missing workspace_id", event.EventID)
	}
	if len(event.Samples) == 0 {
		return nil, fmt.Errorf("sample event %s carries no samples", event.EventID)
	}
	return &event, nil
}

// Encode serializes the event for publishing
func (e *SampleEvent) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal sample event: %w", err)
	}
	return b, nil
}
