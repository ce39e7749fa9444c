package workflow

import (
	"log/slog"

	"clipsplit/internal/analysis"
	"clipsplit/internal/config"
	"clipsplit/internal/export"
	"clipsplit/internal/probing"
	"clipsplit/internal/queue"
	"clipsplit/internal/splitting"
)

// RegisterDefaultStages wires the standard pipeline: probe, analyze, split,
// export.
func (m *Manager) RegisterDefaultStages(cfg *config.Config, store *queue.Store, logger *slog.Logger) {
	m.RegisterStage("probing", probing.NewProber(cfg, store, logger),
		queue.StatusPending, queue.StatusProbing, queue.StatusProbed)
	m.RegisterStage("analysis", analysis.NewAnalyzer(cfg, store, logger),
		queue.StatusProbed, queue.StatusAnalyzing, queue.StatusAnalyzed)
	m.RegisterStage("splitting", splitting.NewSplitter(cfg, store, logger),
		queue.StatusAnalyzed, queue.StatusSplitting, queue.StatusSplit)
	m.RegisterStage("export", export.NewExporter(cfg, store, logger),
		queue.StatusSplit, queue.StatusExporting, queue.StatusCompleted)
}
