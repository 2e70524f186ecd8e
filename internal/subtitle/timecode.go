package subtitle

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

var timestampRe = regexp.MustCompile(`^(?:(\d{1,}):)?(\d{2}):(\d{2})[.,](\d{3})$`)

// parseTimestamp accepts HH:MM:SS.mmm, MM:SS.mmm and the SRT comma variant.
func parseTimestamp(value string) (time.Duration, error) {
	m := timestampRe.FindStringSubmatch(value)
	if m == nil {
		return 0, fmt.Errorf("invalid timestamp: %q", value)
	}
	var h int
	if m[1] != "" {
		h, _ = strconv.Atoi(m[1])
	}
	mi, _ := strconv.Atoi(m[2])
	s, _ := strconv.Atoi(m[3])
	ms, _ := strconv.Atoi(m[4])
	if mi > 59 || s > 59 {
		return 0, fmt.Errorf("invalid timestamp: %q", value)
	}
	return time.Duration(h)*time.Hour +
		time.Duration(mi)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}

// formatDuration formats d as HH:MM:SS<sep>mmm.
func formatDuration(d time.Duration, sep byte) string {
	if d < 0 {
		d = 0
	}
	total := d.Milliseconds()
	hours := total / 3_600_000
	minutes := (total / 60_000) % 60
	seconds := (total / 1000) % 60
	milliseconds := total % 1000

	return fmt.Sprintf("%02d:%02d:%02d%c%03d", hours, minutes, seconds, sep, milliseconds)
}

// FormatSRTTime formats d in the SRT exchange notation, e.g. 00:02:16,612.
func FormatSRTTime(d time.Duration) string {
	return formatDuration(d, ',')
}

// FormatVTTTime formats d in WebVTT notation, e.g. 00:02:16.612.
func FormatVTTTime(d time.Duration) string {
	return formatDuration(d, '.')
}

// Seconds converts a timestamp to float seconds.
func Seconds(d time.Duration) float64 {
	return d.Seconds()
}

// FromSeconds converts float seconds to a duration rounded to the millisecond.
func FromSeconds(s float64) time.Duration {
	return time.Duration(math.Round(s*1000)) * time.Millisecond
}
