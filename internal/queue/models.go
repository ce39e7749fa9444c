package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"clipsplit/internal/segments"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProbing   Status = "probing"
	StatusProbed    Status = "probed"
	StatusAnalyzing Status = "analyzing"
	StatusAnalyzed  Status = "analyzed"
	StatusSplitting Status = "splitting"
	StatusSplit     Status = "split"
	StatusExporting Status = "exporting"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusProbing,
	StatusProbed,
	StatusAnalyzing,
	StatusAnalyzed,
	StatusSplitting,
	StatusSplit,
	StatusExporting,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusProbing:   {},
	StatusAnalyzing: {},
	StatusSplitting: {},
	StatusExporting: {},
}

// processingRollbacks maps each in-flight status to the stable status an item
// is returned to when the tool restarts mid-stage.
var processingRollbacks = map[Status]Status{
	StatusProbing:   StatusPending,
	StatusAnalyzing: StatusProbed,
	StatusSplitting: StatusAnalyzed,
	StatusExporting: StatusSplit,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// Item represents a queued video persisted in SQLite.
type Item struct {
	ID              int64
	SourcePath      string
	Status          Status
	MediaInfoJSON   string
	SegmentsJSON    string
	OutputDir       string
	CSVPath         string
	SplitFilesJSON  string
	ErrorMessage    string
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	LastHeartbeat   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsProcessing returns true when the item is inside a stage.
func (i Item) IsProcessing() bool {
	return IsProcessingStatus(i.Status)
}

// Segments decodes the persisted timetable.
func (i Item) Segments() ([]segments.Segment, error) {
	if strings.TrimSpace(i.SegmentsJSON) == "" {
		return nil, nil
	}
	var segs []segments.Segment
	if err := json.Unmarshal([]byte(i.SegmentsJSON), &segs); err != nil {
		return nil, fmt.Errorf("decode segments: %w", err)
	}
	return segs, nil
}

// SetSegments persists the timetable on the item.
func (i *Item) SetSegments(segs []segments.Segment) error {
	data, err := json.Marshal(segs)
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}
	i.SegmentsJSON = string(data)
	return nil
}

// SplitFiles decodes the list of produced segment files.
func (i Item) SplitFiles() ([]string, error) {
	if strings.TrimSpace(i.SplitFilesJSON) == "" {
		return nil, nil
	}
	var files []string
	if err := json.Unmarshal([]byte(i.SplitFilesJSON), &files); err != nil {
		return nil, fmt.Errorf("decode split files: %w", err)
	}
	return files, nil
}

// SetSplitFiles persists the list of produced segment files.
func (i *Item) SetSplitFiles(files []string) error {
	data, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("encode split files: %w", err)
	}
	i.SplitFilesJSON = string(data)
	return nil
}

// SetProgress updates all three progress fields together.
func (i *Item) SetProgress(stage, message string, percent float64) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = percent
}

// ResetForReprocessing returns a completed or failed item to the head of the
// pipeline. Artifacts recorded by the previous run are cleared so every stage
// runs fresh.
func (i *Item) ResetForReprocessing() {
	i.Status = StatusPending
	i.ErrorMessage = ""
	i.SegmentsJSON = ""
	i.CSVPath = ""
	i.SplitFilesJSON = ""
	i.LastHeartbeat = nil
	i.SetProgress("", "", 0)
}

// SetFailed marks the item as failed with the given error message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.ProgressStage = "Failed"
	i.ProgressPercent = 0
	i.ProgressMessage = message
	i.LastHeartbeat = nil
}

// HealthSummary describes aggregated queue counts per key lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
}
