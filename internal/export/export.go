// Package export writes the final timetable CSV alongside the cut segments
// and completes the queue item.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipsplit/internal/config"
	"clipsplit/internal/logging"
	"clipsplit/internal/queue"
	"clipsplit/internal/segments"
	"clipsplit/internal/services"
	"clipsplit/internal/stage"
)

// Exporter writes the timetable CSV for a split item.
type Exporter struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger

	// now is swappable so tests get stable file names.
	now func() time.Time
}

// NewExporter constructs the export stage handler.
func NewExporter(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Exporter {
	return &Exporter{
		store:  store,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "export"),
		now:    time.Now,
	}
}

func (e *Exporter) Prepare(ctx context.Context, item *queue.Item) error {
	item.SetProgress("Exporting", "Writing timetable CSV", 0)
	item.ErrorMessage = ""
	return nil
}

func (e *Exporter) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)

	segs, err := item.Segments()
	if err != nil {
		return services.Wrap(services.ErrValidation, "exporting", "decode timetable", "", err)
	}
	if len(segs) == 0 {
		return services.Wrap(services.ErrValidation, "exporting", "validate inputs",
			"no timetable present; run analysis first", nil)
	}
	if err := segments.Validate(segs); err != nil {
		return services.Wrap(services.ErrValidation, "exporting", "validate timetable", "", err)
	}

	outputDir := strings.TrimSpace(item.OutputDir)
	if outputDir == "" {
		outputDir = e.cfg.Paths.OutputDir
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "exporting", "create output dir", outputDir, err)
	}

	csvPath := filepath.Join(outputDir,
		fmt.Sprintf("video_segments_%s.csv", e.now().Format("20060102_150405")))
	if err := segments.WriteCSVFile(csvPath, segs); err != nil {
		return services.Wrap(services.ErrExternalTool, "exporting", "write csv", csvPath, err)
	}

	item.CSVPath = csvPath
	item.Status = queue.StatusCompleted
	item.SetProgress("Completed", fmt.Sprintf("Timetable exported to %s", filepath.Base(csvPath)), 100)

	logger.Info("timetable exported",
		logging.String("csv", filepath.Base(csvPath)),
		logging.Int("events", len(segs)))
	return nil
}

func (e *Exporter) HealthCheck(ctx context.Context) stage.Health {
	if strings.TrimSpace(e.cfg.Paths.OutputDir) == "" {
		return stage.Unhealthy("export", "output directory not configured")
	}
	return stage.Healthy("export")
}
