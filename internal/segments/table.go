package segments

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Header is the literal CSV header row of the event timetable.
const Header = "event_id,start_time,end_time"

var csvFencePattern = regexp.MustCompile("(?s)```csv\\s*\\n(.*?)\\n```")

// ErrNoTable indicates the model reply contained no recognizable timetable.
var ErrNoTable = errors.New("no event table found in reply")

// ParseTable extracts the event timetable from a model reply. A fenced
// ```csv block wins; otherwise the reply is scanned for the literal header
// line and the comma rows that follow it.
func ParseTable(reply string) ([]Segment, error) {
	content := extractTableText(reply)
	if content == "" {
		return nil, ErrNoTable
	}

	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return nil, ErrNoTable
	}

	segments := make([]Segment, 0, len(lines)-1)
	var rowErrs []string
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 3 {
			rowErrs = append(rowErrs, fmt.Sprintf("short row %q", line))
			continue
		}
		eventID := strings.TrimSpace(parts[0])
		start, err := ParseTimestamp(parts[1])
		if err != nil {
			rowErrs = append(rowErrs, err.Error())
			continue
		}
		// A malformed end time degrades to "unset" so Normalize can apply
		// the next-start / video-end policy instead of losing the event.
		end, err := ParseTimestamp(parts[2])
		if err != nil {
			end = 0
		}
		segments = append(segments, Segment{EventID: eventID, Start: start, End: end})
	}

	if len(segments) == 0 {
		if len(rowErrs) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoTable, strings.Join(rowErrs, "; "))
		}
		return nil, ErrNoTable
	}
	return segments, nil
}

func extractTableText(reply string) string {
	if match := csvFencePattern.FindStringSubmatch(reply); match != nil {
		candidate := strings.TrimSpace(match[1])
		if containsHeader(candidate) {
			return candidate
		}
		// A fenced block without the header still gets one so row parsing
		// below stays uniform.
		if candidate != "" {
			return Header + "\n" + candidate
		}
	}

	lines := strings.Split(strings.TrimSpace(reply), "\n")
	var collected []string
	inTable := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case containsHeader(trimmed):
			if !inTable {
				inTable = true
				collected = append(collected, Header)
			}
		case inTable && trimmed == "":
			continue
		case inTable && strings.Count(trimmed, ",") >= 2:
			collected = append(collected, trimmed)
		case inTable:
			return strings.Join(collected, "\n")
		}
	}
	if !inTable {
		return ""
	}
	return strings.Join(collected, "\n")
}

func containsHeader(line string) bool {
	return strings.Contains(strings.ToLower(line), Header)
}
