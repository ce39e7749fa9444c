package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipsplit/internal/services"
)

func TestNewWritesConsoleLines(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "clipsplit.log")
	logger, err := New(Options{Level: "debug", Format: "console", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	NewComponentLogger(logger, "analysis").Info("analysis started", String("source", "match.mp4"), Int("segments", 3))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	for _, fragment := range []string{"INFO", "analysis: analysis started", "source=match.mp4", "segments=3"} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	if got := quoteIfNeeded("plain"); got != "plain" {
		t.Fatalf("unexpected quoting: %s", got)
	}
	if got := quoteIfNeeded("two words"); got != `"two words"` {
		t.Fatalf("expected quoted value, got %s", got)
	}
	if got := quoteIfNeeded(""); got != `""` {
		t.Fatalf("expected quoted empty value, got %s", got)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var captured []slog.Attr
	base := slog.New(recordingHandler{attrs: &captured})

	ctx := services.WithItemID(context.Background(), 42)
	ctx = services.WithStage(ctx, "analyzing")
	WithContext(ctx, base).Info("hello")

	keys := map[string]bool{}
	for _, attr := range captured {
		keys[attr.Key] = true
	}
	if !keys[FieldItemID] || !keys[FieldStage] {
		t.Fatalf("expected item/stage fields, got %v", keys)
	}
}

type recordingHandler struct {
	attrs *[]slog.Attr
}

func (recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h recordingHandler) Handle(_ context.Context, record slog.Record) error {
	record.Attrs(func(attr slog.Attr) bool {
		*h.attrs = append(*h.attrs, attr)
		return true
	})
	return nil
}

func (h recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	*h.attrs = append(*h.attrs, attrs...)
	return h
}

func (h recordingHandler) WithGroup(string) slog.Handler { return h }
