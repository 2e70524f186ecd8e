package subtitle

import (
	"time"
)

const (
	FormatSubRip = "SRT"
	FormatWebVTT = "WEBVTT"
)

// Line represents a single timed subtitle item
type Line struct {
	Index      int           // 1-based position in the file
	Identifier string        // optional cue identifier (WebVTT)
	StartTime  time.Duration // start time
	EndTime    time.Duration // end time
	Text       string        // subtitle text, may span several lines
	Align      string        // WebVTT align setting, empty when unset
}

// File represents a parsed caption resource
type File struct {
	Lines  []Line
	Format string
}
