// Package analysis runs the Gemini timetable pass over a probed video. The
// model's CSV reply is parsed, normalized against the container duration, and
// persisted on the queue item for the splitting stage.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"clipsplit/internal/config"
	"clipsplit/internal/logging"
	"clipsplit/internal/media/ffprobe"
	"clipsplit/internal/prompt"
	"clipsplit/internal/queue"
	"clipsplit/internal/segments"
	"clipsplit/internal/services"
	"clipsplit/internal/services/gemini"
	"clipsplit/internal/stage"
)

// Service is the slice of the Gemini client the analyzer needs.
type Service interface {
	AnalyzeVideo(ctx context.Context, videoPath, promptText string) (string, error)
	HealthCheck(ctx context.Context) error
}

// Analyzer produces the event timetable for a probed video.
type Analyzer struct {
	store   *queue.Store
	cfg     *config.Config
	logger  *slog.Logger
	service Service
}

// NewAnalyzer constructs the analysis stage handler with a production Gemini
// client. Client construction is deferred to first use so queue inspection
// commands work without an API key.
func NewAnalyzer(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Analyzer {
	return NewAnalyzerWithService(cfg, store, logger, nil)
}

// NewAnalyzerWithService allows injecting the analysis service (used in tests).
func NewAnalyzerWithService(cfg *config.Config, store *queue.Store, logger *slog.Logger, service Service) *Analyzer {
	return &Analyzer{
		store:   store,
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "analysis"),
		service: service,
	}
}

func (a *Analyzer) Prepare(ctx context.Context, item *queue.Item) error {
	item.SetProgress("Analyzing", "Uploading video for timetable analysis", 0)
	item.ErrorMessage = ""
	return nil
}

func (a *Analyzer) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, a.logger)

	promptText, err := prompt.Load(a.cfg.Paths.PromptPath)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "analyzing", "load prompt", "", err)
	}

	service, err := a.resolveService(ctx)
	if err != nil {
		return err
	}

	reply, err := service.AnalyzeVideo(ctx, item.SourcePath, promptText)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "analyzing", "generate timetable",
			"Gemini analysis failed", err)
	}

	raw, err := segments.ParseTable(reply)
	if err != nil {
		return services.Wrap(services.ErrValidation, "analyzing", "parse reply",
			"model reply did not contain a timetable", err)
	}

	duration := probedDuration(item.MediaInfoJSON)
	segs := segments.Normalize(raw, duration)
	if len(segs) == 0 {
		return services.Wrap(services.ErrValidation, "analyzing", "normalize timetable",
			"no event IDs detected in the video", nil)
	}
	if err := segments.Validate(segs); err != nil {
		return services.Wrap(services.ErrValidation, "analyzing", "validate timetable", "", err)
	}
	if err := item.SetSegments(segs); err != nil {
		return services.Wrap(services.ErrValidation, "analyzing", "persist timetable", "", err)
	}

	item.Status = queue.StatusAnalyzed
	item.SetProgress("Analyzed", fmt.Sprintf("%d event(s) detected", len(segs)), 100)
	logger.Info("timetable produced",
		logging.Int("events", len(segs)),
		logging.String("first_event", segs[0].EventID))
	return nil
}

func (a *Analyzer) HealthCheck(ctx context.Context) stage.Health {
	if a.service != nil {
		if err := a.service.HealthCheck(ctx); err != nil {
			return stage.Unhealthy("analysis", err.Error())
		}
		return stage.Healthy("analysis")
	}
	if strings.TrimSpace(a.cfg.Gemini.APIKey) == "" {
		return stage.Unhealthy("analysis", "gemini api key not configured")
	}
	return stage.Healthy("analysis")
}

func (a *Analyzer) resolveService(ctx context.Context) (Service, error) {
	if a.service != nil {
		return a.service, nil
	}
	client, err := gemini.NewClient(ctx, gemini.ConfigFromApp(a.cfg))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "analyzing", "create gemini client", "", err)
	}
	a.service = client
	return client, nil
}

// probedDuration recovers the container duration captured during probing.
// Zero means unknown; Normalize then trusts the model's end times as given.
func probedDuration(mediaInfoJSON string) time.Duration {
	if strings.TrimSpace(mediaInfoJSON) == "" {
		return 0
	}
	var result ffprobe.Result
	if err := json.Unmarshal([]byte(mediaInfoJSON), &result); err != nil {
		return 0
	}
	return result.Duration()
}
