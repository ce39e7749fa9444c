package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"clipsplit/internal/segments"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewVideoAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item, err := store.NewVideo(ctx, "/videos/match.mp4")
	if err != nil {
		t.Fatalf("NewVideo: %v", err)
	}
	if item.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if item.Status != StatusPending {
		t.Fatalf("expected pending, got %s", item.Status)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.SourcePath != "/videos/match.mp4" {
		t.Fatalf("unexpected source path %q", fetched.SourcePath)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetByID(context.Background(), 999); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdatePersistsSegmentsAndProgress(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item, err := store.NewVideo(ctx, "/videos/match.mp4")
	if err != nil {
		t.Fatalf("NewVideo: %v", err)
	}

	item.Status = StatusAnalyzed
	item.SetProgress("Analyzing", "2 events detected", 100)
	if err := item.SetSegments([]segments.Segment{
		{EventID: "E01", Start: 0, End: time.Minute},
		{EventID: "E02", Start: time.Minute, End: 2 * time.Minute},
	}); err != nil {
		t.Fatalf("SetSegments: %v", err)
	}
	now := time.Now().UTC()
	item.LastHeartbeat = &now
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.Status != StatusAnalyzed {
		t.Fatalf("status not persisted: %s", fetched.Status)
	}
	segs, err := fetched.Segments()
	if err != nil {
		t.Fatalf("Segments: %v", err)
	}
	if len(segs) != 2 || segs[1].EventID != "E02" {
		t.Fatalf("segments not round-tripped: %+v", segs)
	}
	if fetched.LastHeartbeat == nil {
		t.Fatal("heartbeat not persisted")
	}
	if fetched.ProgressPercent != 100 {
		t.Fatalf("progress not persisted: %v", fetched.ProgressPercent)
	}
}

func TestFindBySourcePathSkipsFailed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item, err := store.NewVideo(ctx, "/videos/match.mp4")
	if err != nil {
		t.Fatalf("NewVideo: %v", err)
	}

	found, err := store.FindBySourcePath(ctx, "/videos/match.mp4")
	if err != nil {
		t.Fatalf("FindBySourcePath: %v", err)
	}
	if found == nil || found.ID != item.ID {
		t.Fatalf("expected to find active item, got %+v", found)
	}

	item.SetFailed("boom")
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	found, err = store.FindBySourcePath(ctx, "/videos/match.mp4")
	if err != nil {
		t.Fatalf("FindBySourcePath: %v", err)
	}
	if found != nil {
		t.Fatalf("failed item should not block re-enqueue, got %+v", found)
	}
}

func TestNextForStatusesOrdersByID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, _ := store.NewVideo(ctx, "/videos/a.mp4")
	if _, err := store.NewVideo(ctx, "/videos/b.mp4"); err != nil {
		t.Fatalf("NewVideo: %v", err)
	}

	next, err := store.NextForStatuses(ctx, StatusPending, StatusProbed)
	if err != nil {
		t.Fatalf("NextForStatuses: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest pending item, got %+v", next)
	}

	none, err := store.NextForStatuses(ctx, StatusCompleted)
	if err != nil {
		t.Fatalf("NextForStatuses: %v", err)
	}
	if none != nil {
		t.Fatalf("expected no completed items, got %+v", none)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item, _ := store.NewVideo(ctx, "/videos/a.mp4")
	item.Status = StatusAnalyzing
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reset, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing: %v", err)
	}
	if reset != 1 {
		t.Fatalf("expected 1 reset item, got %d", reset)
	}

	fetched, _ := store.GetByID(ctx, item.ID)
	if fetched.Status != StatusProbed {
		t.Fatalf("expected rollback to probed, got %s", fetched.Status)
	}
}

func TestRetryFailed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item, _ := store.NewVideo(ctx, "/videos/a.mp4")
	item.SetFailed("gemini exploded")
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	retried, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if retried != 1 {
		t.Fatalf("expected 1 retried item, got %d", retried)
	}

	fetched, _ := store.GetByID(ctx, item.ID)
	if fetched.Status != StatusPending || fetched.ErrorMessage != "" {
		t.Fatalf("retry did not reset item: %+v", fetched)
	}
}

func TestHealthAndClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, _ := store.NewVideo(ctx, "/videos/a.mp4")
	b, _ := store.NewVideo(ctx, "/videos/b.mp4")
	if _, err := store.NewVideo(ctx, "/videos/c.mp4"); err != nil {
		t.Fatalf("NewVideo: %v", err)
	}

	a.Status = StatusCompleted
	if err := store.Update(ctx, a); err != nil {
		t.Fatalf("Update: %v", err)
	}
	b.SetFailed("boom")
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update: %v", err)
	}

	summary, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if summary.Total != 3 || summary.Pending != 1 || summary.Completed != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	removed, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	removed, err = store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 remaining removed, got %d", removed)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := ParseStatus(" Analyzing "); !ok || status != StatusAnalyzing {
		t.Fatalf("ParseStatus failed: %v %v", status, ok)
	}
	if _, ok := ParseStatus("nonsense"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}
