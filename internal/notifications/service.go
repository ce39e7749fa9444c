package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clipsplit/internal/config"
)

const userAgent = "ClipSplit-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyVideoDetected(ctx context.Context, filename string) error
	NotifyAnalysisCompleted(ctx context.Context, filename string, events int) error
	NotifyProcessingCompleted(ctx context.Context, filename, csvPath string, segmentCount int) error
	NotifyProcessingFailed(ctx context.Context, filename, reason string) error
	NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyVideoDetected(ctx context.Context, filename string) error {
	filename = strings.TrimSpace(filename)
	data := payload{
		title:   "ClipSplit - Video Detected",
		message: fmt.Sprintf("New video queued: %s", filename),
		tags:    []string{"clipsplit", "video", "detected"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyAnalysisCompleted(ctx context.Context, filename string, events int) error {
	filename = strings.TrimSpace(filename)
	data := payload{
		title:   "ClipSplit - Analyzed",
		message: fmt.Sprintf("Timetable ready: %s (%d events)", filename, events),
		tags:    []string{"clipsplit", "analysis", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyProcessingCompleted(ctx context.Context, filename, csvPath string, segmentCount int) error {
	filename = strings.TrimSpace(filename)
	message := fmt.Sprintf("Finished: %s (%d segments)", filename, segmentCount)
	if csvPath = strings.TrimSpace(csvPath); csvPath != "" {
		message = fmt.Sprintf("%s\nCSV: %s", message, csvPath)
	}
	data := payload{
		title:    "ClipSplit - Complete",
		message:  message,
		tags:     []string{"clipsplit", "workflow", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyProcessingFailed(ctx context.Context, filename, reason string) error {
	filename = strings.TrimSpace(filename)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown failure"
	}
	data := payload{
		title:    "ClipSplit - Failed",
		message:  fmt.Sprintf("Processing failed: %s\n%s", filename, reason),
		tags:     []string{"clipsplit", "workflow", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title string
	var message string
	if failed == 0 {
		title = "ClipSplit - Queue Complete"
		message = fmt.Sprintf("Queue processing complete: %d videos processed in %s", processed, durationText)
	} else {
		title = "ClipSplit - Queue Complete (with errors)"
		message = fmt.Sprintf("Queue processing complete: %d succeeded, %d failed in %s", processed, failed, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"clipsplit", "queue", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "ClipSplit - Error",
		message:  builder.String(),
		tags:     []string{"clipsplit", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "ClipSplit - Test",
		message:  "Notification system test",
		tags:     []string{"clipsplit", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyVideoDetected(context.Context, string) error                    { return nil }
func (noopService) NotifyAnalysisCompleted(context.Context, string, int) error           { return nil }
func (noopService) NotifyProcessingCompleted(context.Context, string, string, int) error { return nil }
func (noopService) NotifyProcessingFailed(context.Context, string, string) error         { return nil }
func (noopService) NotifyQueueCompleted(context.Context, int, int, time.Duration) error  { return nil }
func (noopService) NotifyError(context.Context, error, string) error                     { return nil }
func (noopService) TestNotification(context.Context) error                               { return nil }
