package subtitle

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// ReadSRT parses SRT content. Blocks are separated by blank lines, and a
// block's index line is optional.
func ReadSRT(content string) (*File, error) {
	var lines []Line
	scanner := bufio.NewScanner(strings.NewReader(strings.TrimPrefix(content, "\uFEFF")))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	currentLine := Line{}
	state := "index" // possible values: "index", "text"
	var textLines []string

	flush := func() {
		currentLine.Text = strings.Join(textLines, "\n")
		currentLine.Index = len(lines) + 1
		lines = append(lines, currentLine)
		currentLine = Line{}
		textLines = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch state {
		case "index":
			if line == "" {
				continue
			}
			if _, err := strconv.Atoi(line); err == nil {
				continue
			}
			if !strings.Contains(line, "-->") {
				return nil, fmt.Errorf("expected timing line, got %q", line)
			}
			timed, err := parseTiming(line)
			if err != nil {
				return nil, fmt.Errorf("failed to parse time: %w", err)
			}
			currentLine = timed
			state = "text"

		case "text":
			if line == "" {
				flush()
				state = "index"
				continue
			}
			textLines = append(textLines, line)
		}
	}

	if state == "text" {
		flush()
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subtitles: %w", err)
	}

	return &File{Lines: lines, Format: FormatSubRip}, nil
}

// FormatSRT renders lines as SRT: 1-based index, time range, text and a
// blank separator line.
func FormatSRT(lines []Line) string {
	var sb strings.Builder

	for i, line := range lines {
		fmt.Fprintf(&sb, "%d\n", i+1)
		fmt.Fprintf(&sb, "%s --> %s\n", FormatSRTTime(line.StartTime), FormatSRTTime(line.EndTime))
		sb.WriteString(line.Text)
		sb.WriteString("\n\n")
	}

	return sb.String()
}

// VTTToSRT converts a WebVTT document into SRT text.
func VTTToSRT(vtt string) (string, error) {
	file, err := ParseVTT(vtt)
	if err != nil {
		return "", err
	}
	return FormatSRT(file.Lines), nil
}

// Parse reads either format, choosing by the WEBVTT header.
func Parse(content string) (*File, error) {
	trimmed := strings.TrimLeft(strings.TrimPrefix(content, "\uFEFF"), " \t\r\n")
	if trimmed == "" {
		return nil, fmt.Errorf("empty caption document")
	}
	if strings.HasPrefix(trimmed, "WEBVTT") {
		return ParseVTT(trimmed)
	}
	return ReadSRT(content)
}
