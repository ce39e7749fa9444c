package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipsplit/internal/queue"
	"clipsplit/internal/testsupport"
)

// writeTestConfig writes a config file with every path rooted in a temp dir
// and returns its location.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	configPath := filepath.Join(root, "config.toml")
	contents := fmt.Sprintf(`[paths]
inbox_dir = %q
output_dir = %q
log_dir = %q

[gemini]
api_key = "test-key"
`,
		filepath.Join(root, "inbox"),
		filepath.Join(root, "output"),
		filepath.Join(root, "logs"),
	)
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	requireContains(t, out, "clipsplit")
}

func TestConfigInitAndPath(t *testing.T) {
	tmp := t.TempDir()
	target := filepath.Join(tmp, "config.toml")

	out, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	// A second init without --overwrite must refuse.
	if _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestConfigValidate(t *testing.T) {
	configPath := writeTestConfig(t)
	out, err := runCLI(t, configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration is valid")
}

func TestQueueAddAndList(t *testing.T) {
	configPath := writeTestConfig(t)

	videoDir := t.TempDir()
	videoPath := filepath.Join(videoDir, "match.mp4")
	if err := os.WriteFile(videoPath, []byte("fake video"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}

	out, err := runCLI(t, configPath, "queue", "add", videoPath)
	if err != nil {
		t.Fatalf("queue add: %v", err)
	}
	requireContains(t, out, "Queued match.mp4")

	// Adding the same file again is a no-op.
	out, err = runCLI(t, configPath, "queue", "add", videoPath)
	if err != nil {
		t.Fatalf("queue add (dup): %v", err)
	}
	requireContains(t, out, "Already queued")

	out, err = runCLI(t, configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "match.mp4")
	requireContains(t, out, "pending")
}

func TestEnqueueVideoRequeuesCompletedItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.NewStore(t, cfg)
	videoPath := testsupport.WriteFile(t, t.TempDir(), "match.mp4", "fake video")

	item, outcome, err := enqueueVideo(context.Background(), store, videoPath)
	if err != nil {
		t.Fatalf("enqueueVideo: %v", err)
	}
	if outcome != enqueueCreated {
		t.Fatalf("expected new item, got outcome %d", outcome)
	}

	item.Status = queue.StatusCompleted
	item.CSVPath = "/output/video_segments_20240601_123045.csv"
	item.SegmentsJSON = `[{"EventID":"E01"}]`
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// A second run over a completed source must requeue it from the start.
	again, outcome, err := enqueueVideo(context.Background(), store, videoPath)
	if err != nil {
		t.Fatalf("enqueueVideo (completed): %v", err)
	}
	if outcome != enqueueRequeued {
		t.Fatalf("expected completed item to be requeued, got outcome %d", outcome)
	}
	if again.ID != item.ID {
		t.Fatalf("expected item %d to be reused, got %d", item.ID, again.ID)
	}
	if again.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", again.Status)
	}
	if again.CSVPath != "" || again.SegmentsJSON != "" {
		t.Fatal("expected previous run artifacts to be cleared")
	}

	// An in-flight item is reused untouched.
	again.Status = queue.StatusAnalyzing
	if err := store.Update(context.Background(), again); err != nil {
		t.Fatalf("Update: %v", err)
	}
	third, outcome, err := enqueueVideo(context.Background(), store, videoPath)
	if err != nil {
		t.Fatalf("enqueueVideo (in flight): %v", err)
	}
	if outcome != enqueueExisting {
		t.Fatalf("expected existing outcome, got %d", outcome)
	}
	if third.Status != queue.StatusAnalyzing {
		t.Fatalf("expected in-flight status untouched, got %s", third.Status)
	}
}

func TestStatusCommand(t *testing.T) {
	configPath := writeTestConfig(t)
	out, err := runCLI(t, configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Queue is empty")
	requireContains(t, out, "probing")
	requireContains(t, out, "analysis")
	requireContains(t, out, "No stalled items")
}

func TestQueueStatusEmpty(t *testing.T) {
	configPath := writeTestConfig(t)
	out, err := runCLI(t, configPath, "queue", "status")
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestQueueRemove(t *testing.T) {
	configPath := writeTestConfig(t)

	videoDir := t.TempDir()
	videoPath := filepath.Join(videoDir, "match.mp4")
	if err := os.WriteFile(videoPath, []byte("fake video"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}
	if _, err := runCLI(t, configPath, "queue", "add", videoPath); err != nil {
		t.Fatalf("queue add: %v", err)
	}

	out, err := runCLI(t, configPath, "queue", "remove", "1")
	if err != nil {
		t.Fatalf("queue remove: %v", err)
	}
	requireContains(t, out, "Removed item 1")

	if _, err := runCLI(t, configPath, "queue", "remove", "99"); err == nil {
		t.Fatal("expected error removing unknown item")
	}
}
