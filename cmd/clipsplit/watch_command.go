package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"clipsplit/internal/logging"
	"clipsplit/internal/notifications"
	"clipsplit/internal/watch"
	"clipsplit/internal/workflow"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the inbox directory and process videos as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, ctx)
		},
	}
}

func runWatch(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	// One watcher per machine; a second instance would double-enqueue.
	lockPath := filepath.Join(cfg.LogDir(), "clipsplit.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", lockPath, err)
	}
	if !locked {
		return fmt.Errorf("another clipsplit watcher is already running (lock %s)", lockPath)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	runID := time.Now().UTC().Format("20060102T150405Z")
	logPath := filepath.Join(cfg.LogDir(), fmt.Sprintf("clipsplit-%s.log", runID))
	logger, err := ctx.newLogger("stderr", logPath)
	if err != nil {
		return err
	}

	store, err := ctx.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	notifier := notifications.NewService(cfg)

	manager := workflow.NewManagerWithNotifier(cfg, store, logger, notifier)
	manager.RegisterDefaultStages(cfg, store, logger)
	if err := manager.Start(signalCtx); err != nil {
		return err
	}
	defer manager.Stop()

	watcher := watch.NewWatcher(cfg, store, logger, notifier)
	if err := watcher.Start(signalCtx); err != nil {
		return err
	}
	defer watcher.Stop()

	logger.Info("watching inbox",
		logging.String("inbox", cfg.Paths.InboxDir),
		logging.String("output", cfg.Paths.OutputDir),
		logging.String("log_file", logPath))

	<-signalCtx.Done()
	logger.Info("shutting down")
	return nil
}
