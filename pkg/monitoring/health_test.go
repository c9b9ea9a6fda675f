package monitoring

import (
	"testing"
)

func TestCheckHealthRollup(t *testing.T) {
	tests := []struct {
		name     string
		checks   map[string]CheckResult
		expected string
	}{
		{
			name:     "no checks is healthy",
			checks:   map[string]CheckResult{},
			expected: StatusHealthy,
		},
		{
			name: "all healthy",
			checks: map[string]CheckResult{
				"postgres":   {Status: StatusHealthy},
				"clickhouse": {Status: StatusHealthy},
			},
			expected: StatusHealthy,
		},
		{
			name: "degraded cache keeps service degraded",
			checks: map[string]CheckResult{
				"postgres": {Status: StatusHealthy},
				"redis":    {Status: StatusDegraded},
			},
			expected: StatusDegraded,
		},
		{
			name: "one unhealthy dominates",
			checks: map[string]CheckResult{
				"postgres": {Status: StatusUnhealthy},
				"redis":    {Status: StatusDegraded},
			},
			expected: StatusUnhealthy,
		},
		{
			name: "unknown status treated as unhealthy",
			checks: map[string]CheckResult{
				"weird": {Status: "???"},
			},
			expected: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker("pulse", "test")
			for name, result := range tt.checks {
				r := result
				hc.AddCheck(name, func() CheckResult { return r })
			}
			status := hc.CheckHealth()
			if status.Status != tt.expected {
				t.Fatalf("status = %s, want %s", status.Status, tt.expected)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Fatalf("expected %d check results, got %d", len(tt.checks), len(status.Checks))
			}
		})
	}
}

func TestConfigurationHealthCheck(t *testing.T) {
	check := ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL":    "postgres://x",
		"CLICKHOUSE_HOST": "",
	})
	result := check()
	if result.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy for missing config, got %s", result.Status)
	}

	check = ConfigurationHealthCheck(map[string]string{"DATABASE_URL": "postgres://x"})
	if result := check(); result.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %s", result.Status)
	}
}
