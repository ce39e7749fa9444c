package workflow

import (
	"context"

	"clipsplit/internal/queue"
	"clipsplit/internal/stage"
)

// StageHealths runs every registered stage's health check.
func (m *Manager) StageHealths(ctx context.Context) []stage.Health {
	m.mu.RLock()
	stages := make([]pipelineStage, len(m.stages))
	copy(stages, m.stages)
	m.mu.RUnlock()

	healths := make([]stage.Health, 0, len(stages))
	for _, ps := range stages {
		healths = append(healths, ps.handler.HealthCheck(ctx))
	}
	return healths
}

// QueueHealth aggregates queue counts per lifecycle state.
func (m *Manager) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return m.store.Health(ctx)
}
