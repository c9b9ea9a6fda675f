package validation

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/socialpulse/pulse/pkg/models"
)

func validSample(kind models.SampleKind) models.Sample {
	s := models.Sample{
		SampleID:    uuid.NewString(),
		WorkspaceID: "ws-1",
		AccountID:   "acc-1",
		Platform:    "instagram",
		Kind:        kind,
		Timestamp:   time.Now().Add(-time.Hour),
		Metrics:     models.MetricCounts{Likes: 10, Reach: 100},
	}
	if kind == models.SampleKindPost {
		s.PostID = "post-1"
	}
	return s
}

func TestValidateSample_TableDriven(t *testing.T) {
	cases := []struct {
		name string
		s    models.Sample
		ok   bool
	}{
		{"account ok", validSample(models.SampleKindAccount), true},
		{"post ok", validSample(models.SampleKindPost), true},
		{"missing workspace", func() models.Sample {
			s := validSample(models.SampleKindAccount)
			s.WorkspaceID = ""
			return s
		}(), false},
		{"missing account", func() models.Sample {
			s := validSample(models.SampleKindAccount)
			s.AccountID = ""
			return s
		}(), false},
		{"post missing post_id", func() models.Sample {
			s := validSample(models.SampleKindPost)
			s.PostID = ""
			return s
		}(), false},
		{"unknown kind", func() models.Sample {
			s := validSample(models.SampleKindAccount)
			s.Kind = "story"
			return s
		}(), false},
		{"future timestamp", func() models.Sample {
			s := validSample(models.SampleKindAccount)
			s.Timestamp = time.Now().Add(time.Hour)
			return s
		}(), false},
		{"negative counter", func() models.Sample {
			s := validSample(models.SampleKindAccount)
			s.Metrics.Likes = -1
			return s
		}(), false},
		{"zero counters ok", func() models.Sample {
			s := validSample(models.SampleKindAccount)
			s.Metrics = models.MetricCounts{}
			return s
		}(), true},
	}

	v := NewSampleValidator()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.ValidateSample(&tc.s)
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected error, got nil")
			}
		})
	}
}

func TestValidateBatch(t *testing.T) {
	v := NewSampleValidator()
	if err := v.ValidateBatch(nil); err == nil {
		t.Fatal("expected error for empty batch")
	}

	batch := []models.Sample{validSample(models.SampleKindAccount), validSample(models.SampleKindPost)}
	if err := v.ValidateBatch(batch); err != nil {
		t.Fatalf("expected valid batch, got %v", err)
	}

	batch[1].Platform = ""
	if err := v.ValidateBatch(batch); err == nil {
		t.Fatal("expected error for invalid entry")
	}
}

func TestValidateDateRange(t *testing.T) {
	now := time.Now()

	if err := ValidateDateRange(now.Add(-24*time.Hour), now); err != nil {
		t.Fatalf("expected valid range, got %v", err)
	}
	if err := ValidateDateRange(now, now.Add(-time.Hour)); err == nil {
		t.Fatal("expected error for inverted range")
	}
	if err := ValidateDateRange(time.Time{}, now); err == nil {
		t.Fatal("expected error for zero from")
	}
	if err := ValidateDateRange(now.Add(-2*MaxQueryRange), now); err == nil {
		t.Fatal("expected error for oversized range")
	}
}
