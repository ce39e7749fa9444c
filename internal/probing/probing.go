// Package probing inspects a queued video with ffprobe before any analysis
// work is scheduled. Containers without audio or with an unknown duration are
// rejected here so later stages can rely on both.
package probing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipsplit/internal/config"
	"clipsplit/internal/logging"
	"clipsplit/internal/media/ffprobe"
	"clipsplit/internal/queue"
	"clipsplit/internal/services"
	"clipsplit/internal/stage"
)

// Prober validates queued videos and records their container metadata.
type Prober struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger

	inspect func(ctx context.Context, binary, path string) (ffprobe.Result, error)
}

// NewProber constructs the probing stage handler.
func NewProber(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Prober {
	return &Prober{
		store:   store,
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "probing"),
		inspect: ffprobe.Inspect,
	}
}

func (p *Prober) Prepare(ctx context.Context, item *queue.Item) error {
	item.SetProgress("Probing", "Inspecting video container", 0)
	item.ErrorMessage = ""
	return nil
}

func (p *Prober) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, p.logger)
	source := strings.TrimSpace(item.SourcePath)
	if source == "" {
		return services.Wrap(services.ErrValidation, "probing", "validate inputs",
			"queue item has no source path", nil)
	}
	if _, err := os.Stat(source); err != nil {
		return services.Wrap(services.ErrValidation, "probing", "locate source",
			fmt.Sprintf("source video missing: %s", source), err)
	}

	result, err := p.inspect(ctx, p.cfg.FFprobeBinary(), source)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "probing", "inspect video",
			"ffprobe inspection failed", err)
	}

	duration := result.Duration()
	if duration <= 0 {
		return services.Wrap(services.ErrValidation, "probing", "check duration",
			"container reports no duration; cannot compute segment end times", nil)
	}
	if !result.HasAudio() {
		return services.Wrap(services.ErrValidation, "probing", "check streams",
			"video has no audio track; event IDs are announced verbally", nil)
	}

	info, err := json.Marshal(result)
	if err != nil {
		return services.Wrap(services.ErrValidation, "probing", "encode media info", "", err)
	}
	item.MediaInfoJSON = string(info)
	if strings.TrimSpace(item.OutputDir) == "" {
		item.OutputDir = outputDirFor(p.cfg.Paths.OutputDir, source)
	}
	item.Status = queue.StatusProbed
	item.SetProgress("Probed", fmt.Sprintf("Duration %s, %d audio stream(s)",
		duration.Round(time.Second), result.AudioStreamCount()), 100)

	logger.Info("video probed",
		logging.String("source", filepath.Base(source)),
		logging.Duration("duration", duration),
		logging.Int("audio_streams", result.AudioStreamCount()),
		logging.Int("video_streams", result.VideoStreamCount()))
	return nil
}

func (p *Prober) HealthCheck(ctx context.Context) stage.Health {
	if _, err := ffprobe.Version(ctx, p.cfg.FFprobeBinary()); err != nil {
		return stage.Unhealthy("probing", err.Error())
	}
	return stage.Healthy("probing")
}

// outputDirFor derives the per-video output directory from the source name.
func outputDirFor(root, sourcePath string) string {
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = "video"
	}
	return filepath.Join(root, stem)
}
