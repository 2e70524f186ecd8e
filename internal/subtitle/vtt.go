package subtitle

import (
	"fmt"
	"strings"
)

// ParseVTT parses a WebVTT document. Structural problems (missing header,
// cue without timing, malformed or reversed timestamps) are reported as errors.
func ParseVTT(content string) (*File, error) {
	content = strings.TrimPrefix(content, "\uFEFF")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	blocks := splitBlocks(content)
	if len(blocks) == 0 {
		return nil, fmt.Errorf("empty caption document")
	}
	header := blocks[0][0]
	if header != "WEBVTT" && !strings.HasPrefix(header, "WEBVTT ") && !strings.HasPrefix(header, "WEBVTT\t") {
		return nil, fmt.Errorf("missing WEBVTT header")
	}

	lines := make([]Line, 0, len(blocks)-1)
	for i, block := range blocks[1:] {
		first := block[0]
		if strings.HasPrefix(first, "NOTE") || first == "STYLE" || first == "REGION" {
			continue
		}

		var identifier string
		timing := first
		body := block[1:]
		if !strings.Contains(first, "-->") {
			if len(block) < 2 || !strings.Contains(block[1], "-->") {
				return nil, fmt.Errorf("cue %d has no timing line", i+1)
			}
			identifier = first
			timing = block[1]
			body = block[2:]
		}

		line, err := parseTiming(timing)
		if err != nil {
			return nil, fmt.Errorf("cue %d: %w", i+1, err)
		}
		line.Identifier = identifier
		line.Text = strings.Join(body, "\n")
		line.Index = len(lines) + 1
		lines = append(lines, line)
	}

	return &File{Lines: lines, Format: FormatWebVTT}, nil
}

func parseTiming(timing string) (Line, error) {
	parts := strings.SplitN(timing, "-->", 2)
	start, err := parseTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return Line{}, err
	}
	rest := strings.Fields(parts[1])
	if len(rest) == 0 {
		return Line{}, fmt.Errorf("missing end timestamp")
	}
	end, err := parseTimestamp(rest[0])
	if err != nil {
		return Line{}, err
	}
	if end < start {
		return Line{}, fmt.Errorf("end %s before start %s", rest[0], strings.TrimSpace(parts[0]))
	}

	line := Line{StartTime: start, EndTime: end}
	for _, setting := range rest[1:] {
		if v, ok := strings.CutPrefix(setting, "align:"); ok {
			line.Align = v
		}
	}
	return line, nil
}

// splitBlocks splits on blank lines, dropping surrounding whitespace lines.
func splitBlocks(content string) [][]string {
	var (
		blocks  [][]string
		current []string
	)
	for _, raw := range strings.Split(content, "\n") {
		if strings.TrimSpace(raw) == "" {
			if len(current) > 0 {
				blocks = append(blocks, current)
				current = nil
			}
			continue
		}
		current = append(current, strings.TrimRight(raw, " \t"))
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}

// WriteVTT renders lines as a WebVTT document with 1-based sequential identifiers.
func WriteVTT(lines []Line) string {
	var sb strings.Builder
	sb.WriteString("WEBVTT\n\n")

	for i, line := range lines {
		fmt.Fprintf(&sb, "%d\n", i+1)
		fmt.Fprintf(&sb, "%s --> %s", FormatVTTTime(line.StartTime), FormatVTTTime(line.EndTime))
		if line.Align != "" {
			fmt.Fprintf(&sb, " align:%s", line.Align)
		}
		sb.WriteString("\n")
		sb.WriteString(line.Text)
		sb.WriteString("\n\n")
	}

	return sb.String()
}
