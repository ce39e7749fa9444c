// Package splitting cuts the analyzed timetable into per-event files using
// ffmpeg stream copy.
package splitting

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"clipsplit/internal/config"
	"clipsplit/internal/logging"
	"clipsplit/internal/queue"
	"clipsplit/internal/segments"
	"clipsplit/internal/services"
	"clipsplit/internal/services/ffmpeg"
	"clipsplit/internal/stage"
)

// Cutter is the slice of the ffmpeg service the stage depends on.
type Cutter interface {
	Split(ctx context.Context, sourcePath, outputDir string, segs []segments.Segment) ([]ffmpeg.Result, error)
	Version(ctx context.Context) (string, error)
}

// Splitter turns a persisted timetable into per-event video files.
type Splitter struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	cutter Cutter
}

// NewSplitter constructs the splitting stage handler.
func NewSplitter(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Splitter {
	return NewSplitterWithCutter(cfg, store, logger, ffmpeg.NewSplitter(cfg, logger))
}

// NewSplitterWithCutter allows injecting the cutter (used in tests).
func NewSplitterWithCutter(cfg *config.Config, store *queue.Store, logger *slog.Logger, cutter Cutter) *Splitter {
	return &Splitter{
		store:  store,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "splitting"),
		cutter: cutter,
	}
}

func (s *Splitter) Prepare(ctx context.Context, item *queue.Item) error {
	item.SetProgress("Splitting", "Cutting event segments", 0)
	item.ErrorMessage = ""
	return nil
}

func (s *Splitter) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)

	segs, err := item.Segments()
	if err != nil {
		return services.Wrap(services.ErrValidation, "splitting", "decode timetable", "", err)
	}
	if len(segs) == 0 {
		return services.Wrap(services.ErrValidation, "splitting", "validate inputs",
			"no timetable present; run analysis first", nil)
	}

	outputDir := strings.TrimSpace(item.OutputDir)
	if outputDir == "" {
		outputDir = s.cfg.Paths.OutputDir
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "splitting", "create output dir", outputDir, err)
	}

	results, err := s.cutter.Split(ctx, item.SourcePath, outputDir, segs)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "splitting", "cut segments", "", err)
	}

	produced := ffmpeg.Produced(results)
	if len(produced) == 0 {
		return services.Wrap(services.ErrExternalTool, "splitting", "cut segments",
			"every segment failed to cut", nil)
	}
	for _, result := range results {
		if result.Err != nil {
			logger.Warn("segment not produced",
				logging.String("event_id", result.Segment.EventID),
				logging.Error(result.Err))
		}
	}

	if err := item.SetSplitFiles(produced); err != nil {
		return services.Wrap(services.ErrValidation, "splitting", "persist split files", "", err)
	}
	item.OutputDir = outputDir
	item.Status = queue.StatusSplit
	item.SetProgress("Split", fmt.Sprintf("%d of %d segment(s) written", len(produced), len(segs)), 100)

	logger.Info("segments written",
		logging.Int("produced", len(produced)),
		logging.Int("requested", len(segs)),
		logging.String("output_dir", outputDir))
	return nil
}

func (s *Splitter) HealthCheck(ctx context.Context) stage.Health {
	if _, err := s.cutter.Version(ctx); err != nil {
		return stage.Unhealthy("splitting", err.Error())
	}
	return stage.Healthy("splitting")
}
