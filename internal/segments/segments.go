package segments

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Segment is a single announced event with its time window.
type Segment struct {
	EventID string        `json:"event_id"`
	Start   time.Duration `json:"start_seconds"`
	End     time.Duration `json:"end_seconds"`
}

// Duration returns the segment length. Zero or negative means the segment is
// not cuttable.
func (s Segment) Duration() time.Duration {
	return s.End - s.Start
}

// ParseTimestamp converts a clock-style timestamp (MM:SS or HH:MM:SS) into a
// duration. Single-digit leading components are tolerated.
func ParseTimestamp(value string) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, errors.New("parse timestamp: empty value")
	}
	parts := strings.Split(trimmed, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("parse timestamp: invalid format %q", value)
	}

	numbers := make([]int, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return 0, fmt.Errorf("parse timestamp: invalid format %q", value)
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("parse timestamp: invalid component %q in %q", part, value)
		}
		numbers[i] = n
	}

	var hours, minutes, seconds int
	if len(numbers) == 2 {
		minutes, seconds = numbers[0], numbers[1]
	} else {
		hours, minutes, seconds = numbers[0], numbers[1], numbers[2]
		if minutes > 59 {
			return 0, fmt.Errorf("parse timestamp: minutes out of range in %q", value)
		}
	}
	if seconds > 59 {
		return 0, fmt.Errorf("parse timestamp: seconds out of range in %q", value)
	}

	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second
	return total, nil
}

// FormatTimestamp renders a duration as MM:SS below one hour and HH:MM:SS at
// or above it.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

var unsafeEventIDChars = regexp.MustCompile(`[^\w.-]`)

// SanitizeEventID makes an event identifier safe for use in file names.
// The CSV export always carries the verbatim identifier.
func SanitizeEventID(id string) string {
	cleaned := unsafeEventIDChars.ReplaceAllString(strings.TrimSpace(id), "_")
	if cleaned == "" {
		return "event"
	}
	return cleaned
}

// Normalize applies the end-time policy and ordering rules to raw parsed
// segments:
//   - segments are sorted chronologically by start time
//   - a missing end time becomes the next segment's start, or the video end
//     for the last segment
//   - end times past the video end are clamped to it
//   - segments without an ID or without positive duration are dropped
//
// videoDuration of zero disables clamping (unknown container duration).
func Normalize(raw []Segment, videoDuration time.Duration) []Segment {
	kept := make([]Segment, 0, len(raw))
	for _, seg := range raw {
		seg.EventID = strings.TrimSpace(seg.EventID)
		if seg.EventID == "" {
			continue
		}
		if seg.Start < 0 {
			continue
		}
		kept = append(kept, seg)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Start < kept[j].Start
	})

	for i := range kept {
		if kept[i].End <= kept[i].Start {
			if i+1 < len(kept) {
				kept[i].End = kept[i+1].Start
			} else if videoDuration > 0 {
				kept[i].End = videoDuration
			}
		}
		if videoDuration > 0 && kept[i].End > videoDuration {
			kept[i].End = videoDuration
		}
	}

	result := kept[:0]
	for _, seg := range kept {
		if seg.Duration() <= 0 {
			continue
		}
		result = append(result, seg)
	}
	return append([]Segment(nil), result...)
}

// Validate checks the invariants the exporter relies on: non-empty IDs,
// positive durations, chronological order.
func Validate(segs []Segment) error {
	var prev time.Duration
	for i, seg := range segs {
		if strings.TrimSpace(seg.EventID) == "" {
			return fmt.Errorf("segment %d: empty event id", i)
		}
		if seg.Duration() <= 0 {
			return fmt.Errorf("segment %s: non-positive duration (%s - %s)",
				seg.EventID, FormatTimestamp(seg.Start), FormatTimestamp(seg.End))
		}
		if i > 0 && seg.Start < prev {
			return fmt.Errorf("segment %s: out of chronological order", seg.EventID)
		}
		prev = seg.Start
	}
	return nil
}
