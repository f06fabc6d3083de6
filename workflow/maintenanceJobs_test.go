package workflow

import (
	"testing"
	"time"
)

func TestIntervalFromEnv(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"unset", "", time.Hour},
		{"valid seconds", "90", 90 * time.Second},
		{"zero falls back", "0", time.Hour},
		{"negative falls back", "-5", time.Hour},
		{"garbage falls back", "soon", time.Hour},
		{"whitespace trimmed", " 30 ", 30 * time.Second},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TEST_JOB_INTERVAL_SECONDS", tc.value)
			got := intervalFromEnv("TEST_JOB_INTERVAL_SECONDS", time.Hour)
			if got != tc.want {
				t.Fatalf("intervalFromEnv(%q) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}
