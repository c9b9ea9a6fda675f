package validation

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/socialpulse/pulse/pkg/models"
)

// Collectors occasionally report with skewed clocks; allow a small window
// before rejecting a sample as coming from the future.
const maxClockSkew = 5 * time.Minute

// MaxQueryRange bounds how much history a single query may span.
const MaxQueryRange = 366 * 24 * time.Hour

// SampleValidator performs structural and kind-specific validation for
// samples before they are accepted into the store.
type SampleValidator struct {
	validator *validator.Validate
}

// NewSampleValidator constructs a SampleValidator with standard struct validation.
func NewSampleValidator() *SampleValidator {
	return &SampleValidator{
		validator: validator.New(),
	}
}

// ValidateStruct applies tag-based validation to a request struct.
func (v *SampleValidator) ValidateStruct(s interface{}) error {
	if err := v.validator.Struct(s); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ValidateSample checks required identity fields and applies kind-specific
// rules. Metric counters are not range-checked beyond non-negativity; a zero
// counter is indistinguishable from an unreported one by design of the schema.
func (v *SampleValidator) ValidateSample(s *models.Sample) error {
	if s.WorkspaceID == "" {
		return fmt.Errorf("sample missing workspace_id")
	}
	if s.AccountID == "" {
		return fmt.Errorf("sample missing account_id")
	}
	if s.Platform == "" {
		return fmt.Errorf("sample missing platform")
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("sample missing timestamp")
	}
	if s.Timestamp.After(time.Now().Add(maxClockSkew)) {
		return fmt.Errorf("sample timestamp %s is in the future", s.Timestamp.Format(time.RFC3339))
	}

	switch s.Kind {
	case models.SampleKindAccount:
		// Account snapshots carry no post identity
	case models.SampleKindPost:
		if s.PostID == "" {
			return fmt.Errorf("post sample missing post_id")
		}
	default:
		return fmt.Errorf("unknown sample kind %q", s.Kind)
	}

	if err := validateCounts(s.Metrics); err != nil {
		return fmt.Errorf("sample %s: %w", s.SampleID, err)
	}

	return nil
}

// ValidateBatch applies ValidateSample to every sample, failing fast on the
// first invalid entry.
func (v *SampleValidator) ValidateBatch(samples []models.Sample) error {
	if len(samples) == 0 {
		return fmt.Errorf("empty sample batch")
	}
	for i := range samples {
		if err := v.ValidateSample(&samples[i]); err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
	}
	return nil
}

func validateCounts(m models.MetricCounts) error {
	counts := map[string]int64{
		"likes":         m.Likes,
		"comments":      m.Comments,
		"shares":        m.Shares,
		"saves":         m.Saves,
		"impressions":   m.Impressions,
		"reach":         m.Reach,
		"views":         m.Views,
		"followers":     m.Followers,
		"following":     m.Following,
		"profile_views": m.ProfileViews,
	}
	for name, value := range counts {
		if value < 0 {
			return fmt.Errorf("negative %s count %d", name, value)
		}
	}
	return nil
}

// ValidateDateRange checks that a query window is ordered and bounded.
func ValidateDateRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return fmt.Errorf("date range requires both from and to")
	}
	if !from.Before(to) {
		return fmt.Errorf("from %s must be before to %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	if to.Sub(from) > MaxQueryRange {
		return fmt.Errorf("date range exceeds maximum of %s", MaxQueryRange)
	}
	return nil
}
