package timeutil_test

import (
	"testing"
	"time"

	"github.com/patchwork-cli/patchwork/internal/timeutil"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{
			name:     "zero duration",
			duration: 0,
			expected: "0s",
		},
		{
			name:     "seconds only",
			duration: 45 * time.Second,
			expected: "45s",
		},
		{
			name:     "boundary - 60 seconds",
			duration: 60 * time.Second,
			expected: "1m 0s",
		},
		{
			name:     "minutes and seconds",
			duration: 1*time.Minute + 23*time.Second,
			expected: "1m 23s",
		},
		{
			name:     "long fetch - over an hour",
			duration: 1*time.Hour + 5*time.Minute,
			expected: "65m 0s",
		},
		{
			name:     "sub-second rounds to nearest",
			duration: 1400 * time.Millisecond,
			expected: "1s",
		},
		{
			name:     "tie rounds away from zero",
			duration: 1500 * time.Millisecond,
			expected: "2s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := timeutil.FormatDuration(tt.duration)
			if result != tt.expected {
				t.Errorf("FormatDuration(%v) = %q, expected %q", tt.duration, result, tt.expected)
			}
		})
	}
}
