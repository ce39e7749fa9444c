package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"clipsplit/internal/logging"
	"clipsplit/internal/queue"
	"clipsplit/internal/services"
)

func (m *Manager) processItem(ctx context.Context, item *queue.Item) error {
	ps, ok := m.stageForStatus(item.Status)
	if !ok {
		m.logger.Warn("no stage configured for status", logging.String("status", string(item.Status)))
		m.waitForItemOrShutdown(ctx)
		return nil
	}

	requestID := uuid.NewString()
	stageCtx := services.WithRequestID(ctx, requestID)
	stageCtx = services.WithItemID(stageCtx, item.ID)
	stageCtx = services.WithStage(stageCtx, ps.name)
	stageLogger := logging.WithContext(stageCtx, m.logger)

	if err := m.transitionToProcessing(stageCtx, ps, item); err != nil {
		stageLogger.Error("failed to transition item to processing", logging.Error(err))
		m.setLastError(err)
		return err
	}

	return m.executeStage(stageCtx, stageLogger, ps, item)
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, ps *pipelineStage, item *queue.Item) error {
	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String("source_file", strings.TrimSpace(item.SourcePath)),
		logging.String("processing_status", string(ps.processingStatus)))

	if err := ps.handler.Prepare(ctx, item); err != nil {
		m.handleStageFailure(ctx, ps, item, err)
		m.setLastError(err)
		return err
	}
	if err := m.store.Update(ctx, item); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	execErr := m.executeWithHeartbeat(ctx, ps, item)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		m.handleStageFailure(ctx, ps, item, execErr)
		m.setLastError(execErr)
		return execErr
	}

	if item.Status == ps.processingStatus || item.Status == "" {
		item.Status = ps.doneStatus
	}
	item.LastHeartbeat = nil
	if err := m.store.Update(ctx, item); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	stageLogger.Info("stage completed",
		logging.String("next_status", string(item.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)))
	m.setLastItem(item)

	switch item.Status {
	case queue.StatusAnalyzed:
		m.notifyAnalyzed(ctx, item)
	case queue.StatusCompleted:
		m.clearRetries(item.ID)
		m.notifyCompleted(ctx, item)
	}
	return nil
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, ps *pipelineStage, item *queue.Item) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, item.ID)

	execErr := ps.handler.Execute(ctx, item)
	hbCancel()
	hbWG.Wait()
	return execErr
}

func (m *Manager) transitionToProcessing(ctx context.Context, ps *pipelineStage, item *queue.Item) error {
	now := time.Now().UTC()
	item.Status = ps.processingStatus
	item.ProgressPercent = 0
	item.ErrorMessage = ""
	item.LastHeartbeat = &now
	if err := m.store.Update(ctx, item); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}
	m.setLastItem(item)
	return nil
}

func (m *Manager) handleStageFailure(ctx context.Context, ps *pipelineStage, item *queue.Item, stageErr error) {
	if services.IsRetryable(stageErr) && m.recordRetry(item.ID) <= maxStageRetries {
		m.logger.Warn("stage failed; will retry",
			logging.String("stage", ps.name),
			logging.Int64(logging.FieldItemID, item.ID),
			logging.Error(stageErr))
		item.Status = ps.triggerStatus
		item.ErrorMessage = ""
		item.LastHeartbeat = nil
		if err := m.store.Update(ctx, item); err != nil {
			m.logger.Error("failed to persist retry rollback", logging.Error(err))
		}
		m.setLastItem(item)
		return
	}
	m.clearRetries(item.ID)

	message := stageFailureMessage(ps.name, stageErr)
	item.SetFailed(message)

	m.logger.Error("stage failed",
		logging.String("stage", ps.name),
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String("error_message", message),
		logging.Error(stageErr))

	if err := m.store.Update(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("shutdown before stage failure could be persisted")
		} else {
			m.logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}
	m.setLastItem(item)

	if m.notifier != nil {
		if err := m.notifier.NotifyProcessingFailed(ctx, filepath.Base(item.SourcePath), message); err != nil {
			m.logger.Warn("failure notification failed", logging.Error(err))
		}
	}
}

func (m *Manager) notifyAnalyzed(ctx context.Context, item *queue.Item) {
	if m.notifier == nil {
		return
	}
	segs, err := item.Segments()
	if err != nil {
		segs = nil
	}
	if err := m.notifier.NotifyAnalysisCompleted(ctx, filepath.Base(item.SourcePath), len(segs)); err != nil {
		m.logger.Warn("analysis notification failed", logging.Error(err))
	}
}

// notifyPollFailure pushes a queue polling error once; repeats of the same
// error stay in the log only.
func (m *Manager) notifyPollFailure(ctx context.Context, err error) {
	if m.notifier == nil || err == nil {
		return
	}
	if last := m.LastError(); last != nil && last.Error() == err.Error() {
		return
	}
	if nerr := m.notifier.NotifyError(ctx, err, "queue polling"); nerr != nil {
		m.logger.Warn("error notification failed", logging.Error(nerr))
	}
}

func (m *Manager) notifyCompleted(ctx context.Context, item *queue.Item) {
	if m.notifier == nil {
		return
	}
	segs, err := item.Segments()
	if err != nil {
		segs = nil
	}
	if err := m.notifier.NotifyProcessingCompleted(ctx, filepath.Base(item.SourcePath), item.CSVPath, len(segs)); err != nil {
		m.logger.Warn("completion notification failed", logging.Error(err))
	}
}

func stageFailureMessage(stageName string, stageErr error) string {
	if stageErr == nil {
		if stageName != "" {
			return fmt.Sprintf("%s failed without error detail", stageName)
		}
		return "workflow failed without error detail"
	}
	message := strings.TrimSpace(stageErr.Error())
	if message == "" {
		message = fmt.Sprintf("%s failed", stageName)
	}
	return message
}
