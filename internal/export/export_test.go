package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clipsplit/internal/queue"
	"clipsplit/internal/segments"
	"clipsplit/internal/services"
	"clipsplit/internal/testsupport"
)

func newTestExporter(t *testing.T) (*Exporter, *queue.Item) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.NewStore(t, cfg)

	source := testsupport.WriteFile(t, cfg.Paths.InboxDir, "match.mp4", "fake video")
	item, err := store.NewVideo(context.Background(), source)
	if err != nil {
		t.Fatalf("NewVideo: %v", err)
	}
	item.Status = queue.StatusSplit
	item.OutputDir = filepath.Join(cfg.Paths.OutputDir, "match")
	if err := item.SetSegments([]segments.Segment{
		{EventID: "E01", Start: 10 * time.Second, End: 25 * time.Second},
		{EventID: "E02", Start: 65 * time.Minute, End: 70 * time.Minute},
	}); err != nil {
		t.Fatalf("SetSegments: %v", err)
	}

	exporter := NewExporter(cfg, store, nil)
	exporter.now = func() time.Time {
		return time.Date(2024, 6, 1, 12, 30, 45, 0, time.UTC)
	}
	return exporter, item
}

func TestExecuteWritesTimestampedCSV(t *testing.T) {
	exporter, item := newTestExporter(t)

	if err := exporter.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := exporter.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s", item.Status)
	}
	if filepath.Base(item.CSVPath) != "video_segments_20240601_123045.csv" {
		t.Fatalf("unexpected csv name: %s", item.CSVPath)
	}

	data, err := os.ReadFile(item.CSVPath)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != segments.Header {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if lines[1] != "E01,00:10,00:25" {
		t.Fatalf("expected MM:SS under an hour, got %q", lines[1])
	}
	if lines[2] != "E02,01:05:00,01:10:00" {
		t.Fatalf("expected HH:MM:SS at an hour or more, got %q", lines[2])
	}
}

func TestExecuteRequiresTimetable(t *testing.T) {
	exporter, item := newTestExporter(t)
	item.SegmentsJSON = ""

	err := exporter.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExecuteFallsBackToRootOutputDir(t *testing.T) {
	exporter, item := newTestExporter(t)
	item.OutputDir = ""

	if err := exporter.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if filepath.Dir(item.CSVPath) != exporter.cfg.Paths.OutputDir {
		t.Fatalf("expected csv under root output dir, got %s", item.CSVPath)
	}
}
