package splitting

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"clipsplit/internal/queue"
	"clipsplit/internal/segments"
	"clipsplit/internal/services"
	"clipsplit/internal/services/ffmpeg"
	"clipsplit/internal/testsupport"
)

type fakeCutter struct {
	results    []ffmpeg.Result
	err        error
	versionErr error
	outputDir  string
}

func (f *fakeCutter) Split(_ context.Context, _, outputDir string, segs []segments.Segment) ([]ffmpeg.Result, error) {
	f.outputDir = outputDir
	if f.err != nil {
		return nil, f.err
	}
	if f.results != nil {
		return f.results, nil
	}
	results := make([]ffmpeg.Result, len(segs))
	for i, seg := range segs {
		results[i] = ffmpeg.Result{Segment: seg, OutputPath: filepath.Join(outputDir, seg.EventID+".mp4")}
	}
	return results, nil
}

func (f *fakeCutter) Version(context.Context) (string, error) {
	return "ffmpeg version 7.1", f.versionErr
}

func newTestSplitter(t *testing.T, cutter *fakeCutter) (*Splitter, *queue.Item) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.NewStore(t, cfg)

	source := testsupport.WriteFile(t, cfg.Paths.InboxDir, "match.mp4", "fake video")
	item, err := store.NewVideo(context.Background(), source)
	if err != nil {
		t.Fatalf("NewVideo: %v", err)
	}
	item.Status = queue.StatusAnalyzed
	item.OutputDir = filepath.Join(cfg.Paths.OutputDir, "match")
	if err := item.SetSegments([]segments.Segment{
		{EventID: "E01", Start: 10 * time.Second, End: 25 * time.Second},
		{EventID: "E02", Start: time.Minute, End: 2 * time.Minute},
	}); err != nil {
		t.Fatalf("SetSegments: %v", err)
	}
	return NewSplitterWithCutter(cfg, store, nil, cutter), item
}

func TestExecuteRecordsSplitFiles(t *testing.T) {
	cutter := &fakeCutter{}
	splitter, item := newTestSplitter(t, cutter)

	if err := splitter.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := splitter.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.Status != queue.StatusSplit {
		t.Fatalf("expected split status, got %s", item.Status)
	}
	files, err := item.SplitFiles()
	if err != nil {
		t.Fatalf("SplitFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 split files, got %v", files)
	}
	if cutter.outputDir != item.OutputDir {
		t.Fatalf("expected cuts in %s, got %s", item.OutputDir, cutter.outputDir)
	}
}

func TestExecuteToleratesPartialFailures(t *testing.T) {
	cutter := &fakeCutter{results: []ffmpeg.Result{
		{Segment: segments.Segment{EventID: "E01"}, OutputPath: "E01.mp4"},
		{Segment: segments.Segment{EventID: "E02"}, Err: errors.New("moov atom not found")},
	}}
	splitter, item := newTestSplitter(t, cutter)

	if err := splitter.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	files, err := item.SplitFiles()
	if err != nil {
		t.Fatalf("SplitFiles: %v", err)
	}
	if len(files) != 1 || files[0] != "E01.mp4" {
		t.Fatalf("expected only E01.mp4, got %v", files)
	}
}

func TestExecuteFailsWhenNothingProduced(t *testing.T) {
	cutter := &fakeCutter{results: []ffmpeg.Result{
		{Segment: segments.Segment{EventID: "E01"}, Err: errors.New("boom")},
	}}
	splitter, item := newTestSplitter(t, cutter)

	err := splitter.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestExecuteRequiresTimetable(t *testing.T) {
	splitter, item := newTestSplitter(t, &fakeCutter{})
	item.SegmentsJSON = ""

	err := splitter.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHealthCheckReportsCutterState(t *testing.T) {
	splitter, _ := newTestSplitter(t, &fakeCutter{})
	if health := splitter.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected ready, got %+v", health)
	}

	splitter, _ = newTestSplitter(t, &fakeCutter{versionErr: errors.New("ffmpeg not found")})
	if health := splitter.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy")
	}
}
