package duration

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatISO8601 renders a duration in ISO-8601 form (PT2H30M5S, P1D, PT0.25S).
// Negative durations are clamped to zero; analytics never report time going
// backwards.
func FormatISO8601(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	days := int64(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int64(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int64(d / time.Minute)
	d -= time.Duration(minutes) * time.Minute
	seconds := d.Seconds()

	var sb strings.Builder
	sb.WriteByte('P')
	if days > 0 {
		fmt.Fprintf(&sb, "%dD", days)
	}

	if hours > 0 || minutes > 0 || seconds > 0 || days == 0 {
		sb.WriteByte('T')
		if hours > 0 {
			fmt.Fprintf(&sb, "%dH", hours)
		}
		if minutes > 0 {
			fmt.Fprintf(&sb, "%dM", minutes)
		}
		if seconds > 0 || (hours == 0 && minutes == 0 && days == 0) {
			sb.WriteString(formatSeconds(seconds))
			sb.WriteByte('S')
		}
	}

	return sb.String()
}

func formatSeconds(s float64) string {
	// Trim trailing zeros but keep integer seconds plain (PT5S, not PT5.0S)
	out := strconv.FormatFloat(s, 'f', 3, 64)
	out = strings.TrimRight(out, "0")
	out = strings.TrimRight(out, ".")
	if out == "" {
		out = "0"
	}
	return out
}

// ParseISO8601 parses the duration grammar used by SLA hints: PT?<n>[HMSD],
// optionally combined (PT1H30M, P2D, PT45S). Fractional values are accepted.
func ParseISO8601(s string) (time.Duration, error) {
	orig := s
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s[0] != 'P' {
		return 0, fmt.Errorf("invalid ISO-8601 duration: %q", orig)
	}
	s = s[1:]

	var total time.Duration
	inTime := false
	num := strings.Builder{}
	seen := false

	for _, r := range s {
		switch {
		case r == 'T':
			inTime = true
		case (r >= '0' && r <= '9') || r == '.':
			num.WriteRune(r)
		case r == 'D' || r == 'H' || r == 'M' || r == 'S':
			if num.Len() == 0 {
				return 0, fmt.Errorf("invalid ISO-8601 duration: %q", orig)
			}
			v, err := strconv.ParseFloat(num.String(), 64)
			if err != nil {
				return 0, fmt.Errorf("invalid ISO-8601 duration: %q", orig)
			}
			num.Reset()
			seen = true

			switch r {
			case 'D':
				total += time.Duration(v * float64(24*time.Hour))
			case 'H':
				total += time.Duration(v * float64(time.Hour))
			case 'M':
				// Calendar months are not part of the SLA grammar; M outside
				// the time segment still means minutes here.
				_ = inTime
				total += time.Duration(v * float64(time.Minute))
			case 'S':
				total += time.Duration(v * float64(time.Second))
			}
		default:
			return 0, fmt.Errorf("invalid ISO-8601 duration: %q", orig)
		}
	}

	if !seen || num.Len() > 0 {
		return 0, fmt.Errorf("invalid ISO-8601 duration: %q", orig)
	}
	return total, nil
}

// Stopwatch measures elapsed wall time using the runtime's monotonic clock.
type Stopwatch struct {
	start time.Time
}

// NewStopwatch starts a stopwatch.
func NewStopwatch() *Stopwatch {
	return &Stopwatch{start: time.Now()}
}

// Elapsed returns time since the stopwatch started.
func (s *Stopwatch) Elapsed() time.Duration {
	return time.Since(s.start)
}

// ElapsedISO8601 returns the elapsed time formatted as an ISO-8601 duration.
func (s *Stopwatch) ElapsedISO8601() string {
	return FormatISO8601(s.Elapsed())
}
