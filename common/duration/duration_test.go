package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatISO8601(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want string
	}{
		{"zero", 0, "PT0S"},
		{"negative clamps to zero", -5 * time.Second, "PT0S"},
		{"seconds", 42 * time.Second, "PT42S"},
		{"fractional seconds", 1500 * time.Millisecond, "PT1.5S"},
		{"minutes and seconds", 90 * time.Second, "PT1M30S"},
		{"hours", 2 * time.Hour, "PT2H"},
		{"composite", 3*time.Hour + 25*time.Minute + 10*time.Second, "PT3H25M10S"},
		{"days", 26 * time.Hour, "P1DT2H"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatISO8601(tt.in))
		})
	}
}

func TestParseISO8601(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"PT0S", 0},
		{"PT42S", 42 * time.Second},
		{"PT1.5S", 1500 * time.Millisecond},
		{"PT1M30S", 90 * time.Second},
		{"PT2H", 2 * time.Hour},
		{"P1DT2H", 26 * time.Hour},
		{"PT3H25M10S", 3*time.Hour + 25*time.Minute + 10*time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseISO8601(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseISO8601RoundTrip(t *testing.T) {
	for _, d := range []time.Duration{0, time.Second, 90 * time.Second, 26*time.Hour + 30*time.Minute} {
		got, err := ParseISO8601(FormatISO8601(d))
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
}

func TestParseISO8601Invalid(t *testing.T) {
	for _, in := range []string{"", "42s", "P", "PTXS", "1h30m"} {
		_, err := ParseISO8601(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestStopwatch(t *testing.T) {
	sw := NewStopwatch()
	time.Sleep(10 * time.Millisecond)

	elapsed := sw.Elapsed()
	assert.GreaterOrEqual(t, elapsed, 10*time.Millisecond)
	assert.NotEmpty(t, sw.ElapsedISO8601())
}
