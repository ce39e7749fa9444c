package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clipsplit/internal/config"
	"clipsplit/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyProcessingCompleted(context.Background(), "match.mp4", "", 3); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		notify         func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "video detected",
			notify: func(svc notifications.Service) error {
				return svc.NotifyVideoDetected(context.Background(), "match.mp4")
			},
			expectTitle:   "ClipSplit - Video Detected",
			expectMessage: "New video queued: match.mp4",
			expectTags:    "clipsplit,video,detected",
		},
		{
			name: "analysis completed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyAnalysisCompleted(context.Background(), "match.mp4", 12)
			},
			expectTitle:   "ClipSplit - Analyzed",
			expectMessage: "Timetable ready: match.mp4 (12 events)",
			expectTags:    "clipsplit,analysis,completed",
		},
		{
			name: "processing completed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyProcessingCompleted(context.Background(), "match.mp4", "/out/video_segments_x.csv", 12)
			},
			expectTitle:    "ClipSplit - Complete",
			expectMessage:  "Finished: match.mp4 (12 segments)\nCSV: /out/video_segments_x.csv",
			expectTags:     "clipsplit,workflow,completed",
			expectPriority: "high",
		},
		{
			name: "processing failed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyProcessingFailed(context.Background(), "match.mp4", "no event IDs detected")
			},
			expectTitle:    "ClipSplit - Failed",
			expectMessage:  "Processing failed: match.mp4\nno event IDs detected",
			expectTags:     "clipsplit,workflow,failed",
			expectPriority: "high",
		},
		{
			name: "queue completed with failures",
			notify: func(svc notifications.Service) error {
				return svc.NotifyQueueCompleted(context.Background(), 3, 1, 90*time.Second)
			},
			expectTitle:   "ClipSplit - Queue Complete (with errors)",
			expectMessage: "Queue processing complete: 3 succeeded, 1 failed in 1m30s",
			expectTags:    "clipsplit,queue,completed",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.notify(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic rejected", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error from non-2xx response")
	}
}
