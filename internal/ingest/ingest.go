package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/socialpulse/pulse/internal/cache"
	"github.com/socialpulse/pulse/internal/metrics"
	"github.com/socialpulse/pulse/internal/store"
	"github.com/socialpulse/pulse/pkg/kafka"
	"github.com/socialpulse/pulse/pkg/logging"
	"github.com/socialpulse/pulse/pkg/validation"
)

// DLQTopic receives sample events that failed decoding or validation.
// Transient store failures are NOT dead-lettered; they block the partition
// and retry.
const DLQTopic = "metric_samples_dlq"

// DLQProducer publishes dead-lettered messages. *kafka.Producer satisfies it.
type DLQProducer interface {
	ProduceMessage(topic string, key, value []byte, headers map[string]string) error
}

// Handler consumes collector sample events, validates them and writes them to
// the sample store. Successfully ingested workspaces get their cache scope
// invalidated so dashboards pick up new data.
type Handler struct {
	samples   store.SampleStore
	cache     cache.Store
	validator *validation.SampleValidator
	dlq       DLQProducer
	logger    logging.Logger
	metrics   *metrics.Metrics
	consumer  string
}

// NewHandler creates a sample ingestion handler. dlq and cacheStore may be
// nil; the corresponding steps are then skipped.
func NewHandler(samples store.SampleStore, cacheStore cache.Store, dlq DLQProducer, logger logging.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		samples:   samples,
		cache:     cacheStore,
		validator: validation.NewSampleValidator(),
		dlq:       dlq,
		logger:    logger,
		metrics:   m,
		consumer:  "pulse-ingest",
	}
}

// HandleMessage processes one Kafka record. Malformed payloads go to the DLQ
// and are committed; store failures return an error so the consumer blocks
// the partition and retries after restart.
func (h *Handler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	start := time.Now()

	event, err := kafka.DecodeSampleEvent(msg.Value)
	if err != nil {
		h.logger.WithError(err).WithFields(logging.Fields{
			"topic":  msg.Topic,
			"offset": msg.Offset,
		}).Warn("Undecodable sample event, dead-lettering")
		h.deadLetter(msg, err)
		h.observe("decode_failed", start)
		return nil
	}

	if err := h.validator.ValidateBatch(event.Samples); err != nil {
		h.logger.WithError(err).WithFields(logging.Fields{
			"event_id":     event.EventID,
			"workspace_id": event.WorkspaceID,
		}).Warn("Invalid sample batch, dead-lettering")
		h.deadLetter(msg, err)
		h.observe("validation_failed", start)
		return nil
	}

	if err := h.samples.InsertSamples(ctx, event.Samples); err != nil {
		h.observe("store_failed", start)
		return fmt.Errorf("failed to store samples for event %s: %w", event.EventID, err)
	}

	if h.metrics != nil {
		for _, sample := range event.Samples {
			h.metrics.SamplesIngested.WithLabelValues(sample.Platform).Inc()
		}
	}

	if h.cache != nil {
		h.cache.Invalidate(ctx, cache.KeyPrefix(event.WorkspaceID))
	}

	h.logger.WithFields(logging.Fields{
		"event_id":     event.EventID,
		"workspace_id": event.WorkspaceID,
		"samples":      len(event.Samples),
		"source":       event.Source,
	}).Debug("Ingested sample event")
	h.observe("ingested", start)

	return nil
}

func (h *Handler) deadLetter(msg kafka.Message, cause error) {
	if h.dlq == nil {
		return
	}

	payload, err := kafka.EncodeDLQMessage(msg, cause, h.consumer)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode DLQ payload, dropping message")
		return
	}

	if err := h.dlq.ProduceMessage(DLQTopic, msg.Key, payload, nil); err != nil {
		h.logger.WithError(err).WithFields(logging.Fields{
			"topic":  msg.Topic,
			"offset": msg.Offset,
		}).Error("Failed to publish to DLQ")
	}
}

func (h *Handler) observe(status string, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.SampleEvents.WithLabelValues(status).Inc()
	h.metrics.IngestDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
}
