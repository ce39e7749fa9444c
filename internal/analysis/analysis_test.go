package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"clipsplit/internal/media/ffprobe"
	"clipsplit/internal/queue"
	"clipsplit/internal/services"
	"clipsplit/internal/testsupport"
)

type fakeService struct {
	reply     string
	err       error
	healthErr error
	lastPath  string
	prompt    string
}

func (f *fakeService) AnalyzeVideo(_ context.Context, videoPath, promptText string) (string, error) {
	f.lastPath = videoPath
	f.prompt = promptText
	return f.reply, f.err
}

func (f *fakeService) HealthCheck(context.Context) error { return f.healthErr }

func newTestAnalyzer(t *testing.T, service *fakeService) (*Analyzer, *queue.Item) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.NewStore(t, cfg)

	source := testsupport.WriteFile(t, cfg.Paths.InboxDir, "match.mp4", "fake video")
	item, err := store.NewVideo(context.Background(), source)
	if err != nil {
		t.Fatalf("NewVideo: %v", err)
	}
	item.Status = queue.StatusProbed
	info, err := json.Marshal(ffprobe.Result{Format: ffprobe.Format{Duration: "1800"}})
	if err != nil {
		t.Fatalf("marshal media info: %v", err)
	}
	item.MediaInfoJSON = string(info)

	return NewAnalyzerWithService(cfg, store, nil, service), item
}

func TestExecutePersistsTimetable(t *testing.T) {
	service := &fakeService{reply: "event_id,start_time,end_time\nE01,00:10,00:25\nE02,01:00,\n"}
	analyzer, item := newTestAnalyzer(t, service)

	if err := analyzer.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := analyzer.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.Status != queue.StatusAnalyzed {
		t.Fatalf("expected analyzed, got %s", item.Status)
	}
	segs, err := item.Segments()
	if err != nil {
		t.Fatalf("Segments: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	// Open-ended final event runs to the container end.
	if segs[1].End != 30*time.Minute {
		t.Fatalf("expected final end at 30m, got %s", segs[1].End)
	}
	if !strings.Contains(service.prompt, "event_id,start_time,end_time") {
		t.Fatalf("expected built-in prompt to request the exact header")
	}
	if service.lastPath != item.SourcePath {
		t.Fatalf("expected source path %q, got %q", item.SourcePath, service.lastPath)
	}
}

func TestExecuteFailsWhenNoEventsDetected(t *testing.T) {
	service := &fakeService{reply: "event_id,start_time,end_time\n"}
	analyzer, item := newTestAnalyzer(t, service)

	err := analyzer.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "no event IDs") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestExecuteFailsWithoutTimetable(t *testing.T) {
	service := &fakeService{reply: "I could not find any events in this video."}
	analyzer, item := newTestAnalyzer(t, service)

	err := analyzer.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExecuteWrapsServiceFailure(t *testing.T) {
	service := &fakeService{err: errors.New("503 overloaded")}
	analyzer, item := newTestAnalyzer(t, service)

	err := analyzer.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !services.IsRetryable(err) {
		t.Fatal("external tool failures should stay retryable")
	}
}

func TestExecuteFailsOnMissingPromptOverride(t *testing.T) {
	service := &fakeService{reply: "event_id,start_time,end_time\nE01,00:10,00:25\n"}
	analyzer, item := newTestAnalyzer(t, service)
	analyzer.cfg.Paths.PromptPath = "/nonexistent/prompt.txt"

	err := analyzer.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestHealthCheckReportsServiceState(t *testing.T) {
	analyzer, _ := newTestAnalyzer(t, &fakeService{})
	if health := analyzer.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected ready, got %+v", health)
	}

	analyzer, _ = newTestAnalyzer(t, &fakeService{healthErr: errors.New("no model")})
	if health := analyzer.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy")
	}
}
