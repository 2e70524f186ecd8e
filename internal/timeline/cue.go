// Package timeline is the editor's in-memory model of the captions of one
// video: ordered, non-overlapping cues per language with a minimum spacing
// policy, plus the pointer interaction used to resize them on a timeline.
package timeline

import (
	"sort"
	"strings"

	"github.com/MimeLyc/subtitle-editor/internal/subtitle"
)

// DefaultCueLength is the duration of newly inserted cues, in seconds.
const DefaultCueLength = 3.0

// DefaultSpacing is the minimum gap kept between neighbouring cues, in seconds.
const DefaultSpacing = 0.1

// epsilon absorbs float rounding when comparing boundaries.
const epsilon = 1e-9

type Style int

const (
	StyleNone Style = iota
	StyleBold
	StyleItalic
	StyleUnderline
)

var styleTags = map[Style]string{
	StyleBold:      "b",
	StyleItalic:    "i",
	StyleUnderline: "u",
}

func (s Style) String() string {
	switch s {
	case StyleBold:
		return "bold"
	case StyleItalic:
		return "italic"
	case StyleUnderline:
		return "underline"
	default:
		return "none"
	}
}

// Cue is one timed text span. Times are seconds.
type Cue struct {
	ID        string
	StartTime float64
	EndTime   float64
	Text      string
	Style     Style
	Align     string
}

func (c *Cue) Duration() float64 {
	return c.EndTime - c.StartTime
}

// Contains reports whether t lies in [StartTime, EndTime).
func (c *Cue) Contains(t float64) bool {
	return c.StartTime <= t && t < c.EndTime
}

// StyledText is the cue text with its style markup applied.
func (c *Cue) StyledText() string {
	return subtitle.WrapStyledText(c.Text, c.Style.markup())
}

func (s Style) markup() subtitle.Style {
	return subtitle.Style{
		Bold:      s == StyleBold,
		Italic:    s == StyleItalic,
		Underline: s == StyleUnderline,
	}
}

// parseStyledText recognises a single outer <b>, <i> or <u> wrapper.
func parseStyledText(raw string) (string, Style) {
	for _, style := range []Style{StyleUnderline, StyleItalic, StyleBold} {
		tag := styleTags[style]
		open, closing := "<"+tag+">", "</"+tag+">"
		if len(raw) >= len(open)+len(closing) && strings.HasPrefix(raw, open) && strings.HasSuffix(raw, closing) {
			return raw[len(open) : len(raw)-len(closing)], style
		}
	}
	return raw, StyleNone
}

// CuesFromFile converts parsed caption lines into cues.
func CuesFromFile(file *subtitle.File) []*Cue {
	cues := make([]*Cue, 0, len(file.Lines))
	for _, line := range file.Lines {
		text, style := parseStyledText(line.Text)
		cues = append(cues, &Cue{
			ID:        line.Identifier,
			StartTime: subtitle.Seconds(line.StartTime),
			EndTime:   subtitle.Seconds(line.EndTime),
			Text:      text,
			Style:     style,
			Align:     line.Align,
		})
	}
	sortCues(cues)
	return cues
}

func toLines(cues []*Cue) []subtitle.Line {
	sorted := append([]*Cue(nil), cues...)
	sortCues(sorted)

	lines := make([]subtitle.Line, 0, len(sorted))
	for i, c := range sorted {
		lines = append(lines, subtitle.Line{
			Index:     i + 1,
			StartTime: subtitle.FromSeconds(c.StartTime),
			EndTime:   subtitle.FromSeconds(c.EndTime),
			Text:      c.StyledText(),
			Align:     c.Align,
		})
	}
	return lines
}

// Serialize renders cues as a WebVTT upload payload ordered by time.
func Serialize(cues []*Cue) string {
	return subtitle.WriteVTT(toLines(cues))
}

// SerializeSRT renders cues in the SRT exchange format.
func SerializeSRT(cues []*Cue) string {
	return subtitle.FormatSRT(toLines(cues))
}

func sortCues(cues []*Cue) {
	sort.SliceStable(cues, func(i, j int) bool {
		return cues[i].StartTime < cues[j].StartTime
	})
}
