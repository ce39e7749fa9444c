package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"clipsplit/internal/config"
	"clipsplit/internal/logging"
	"clipsplit/internal/notifications"
	"clipsplit/internal/queue"
	"clipsplit/internal/stage"
)

// maxStageRetries bounds automatic re-runs of a retryable stage failure per
// item. Validation and configuration failures never retry.
const maxStageRetries = 2

// pipelineStage binds a stable queue status to the handler that advances it.
type pipelineStage struct {
	name             string
	handler          stage.Handler
	triggerStatus    queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

// Manager coordinates queue processing across the registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	notifier     notifications.Service
	pollInterval time.Duration

	heartbeat *HeartbeatMonitor

	stages  []pipelineStage
	byState map[queue.Status]*pipelineStage

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	lastItem *queue.Item
	retries  map[int64]int
}

// NewManager constructs a workflow manager with the default notifier.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier
// (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	pollInterval := time.Duration(cfg.Workflow.QueuePollInterval) * time.Second
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		notifier:     notifier,
		pollInterval: pollInterval,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		byState: make(map[queue.Status]*pipelineStage),
		retries: make(map[int64]int),
	}
}

// RegisterStage wires a handler into the pipeline. Stages run in registration
// order when multiple items are eligible.
func (m *Manager) RegisterStage(name string, handler stage.Handler, trigger, processing, done queue.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, pipelineStage{
		name:             name,
		handler:          handler,
		triggerStatus:    trigger,
		processingStatus: processing,
		doneStatus:       done,
	})
	// Re-point every entry; append may have reallocated the backing array.
	for i := range m.stages {
		m.byState[m.stages[i].triggerStatus] = &m.stages[i]
	}
}

// triggerStatuses returns the stable statuses the manager polls for.
func (m *Manager) triggerStatuses() []queue.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	statuses := make([]queue.Status, 0, len(m.stages))
	for _, ps := range m.stages {
		statuses = append(statuses, ps.triggerStatus)
	}
	return statuses
}

func (m *Manager) stageForStatus(status queue.Status) (*pipelineStage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ps, ok := m.byState[status]
	return ps, ok
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.stages) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	if reset, err := m.store.ResetStuckProcessing(runCtx); err != nil {
		m.logger.Warn("reset of interrupted items failed", logging.Error(err))
	} else if reset > 0 {
		m.logger.Info("rolled back interrupted items", logging.Int64("count", reset))
	}

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether the manager loop is active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// LastError returns the most recent processing error, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// LastItem returns a copy of the most recently processed item.
func (m *Manager) LastItem() *queue.Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastItem == nil {
		return nil
	}
	cp := *m.lastItem
	return &cp
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastItem(item *queue.Item) {
	m.mu.Lock()
	cp := *item
	m.lastItem = &cp
	m.mu.Unlock()
}

func (m *Manager) recordRetry(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries[id]++
	return m.retries[id]
}

func (m *Manager) clearRetries(id int64) {
	m.mu.Lock()
	delete(m.retries, id)
	m.mu.Unlock()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	statuses := m.triggerStatuses()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.heartbeat.ReclaimStaleItems(ctx, m.logger); err != nil {
			m.logger.Warn("reclaim stale processing failed; stuck items may remain",
				logging.Error(err))
		}

		item, err := m.store.NextForStatuses(ctx, statuses...)
		if err != nil {
			m.notifyPollFailure(ctx, err)
			m.setLastError(err)
			m.logger.Error("failed to fetch next queue item", logging.Error(err))
			m.waitForItemOrShutdown(ctx)
			continue
		}
		if item == nil {
			m.waitForItemOrShutdown(ctx)
			continue
		}

		if err := m.processItem(ctx, item); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (m *Manager) waitForItemOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}
