package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"clipsplit/internal/deps"
	"clipsplit/internal/notifications"
	"clipsplit/internal/queue"
	"clipsplit/internal/workflow"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <video>...",
		Short: "Analyze and split videos, then exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, ctx, args)
		},
	}
}

func runProcess(cmd *cobra.Command, ctx *commandContext, args []string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	statuses := deps.CheckBinaries(deps.Required(cfg))
	if !deps.AllAvailable(statuses) {
		for _, status := range statuses {
			if !status.Available {
				fmt.Fprintf(cmd.ErrOrStderr(), "missing dependency: %s (%s)\n", status.Name, status.Detail)
			}
		}
		return fmt.Errorf("required tools missing; run `clipsplit preflight` for details")
	}

	logger, err := ctx.newLogger()
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

	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		item, outcome, err := enqueueVideo(signalCtx, store, arg)
		if err != nil {
			return err
		}
		switch outcome {
		case enqueueCreated:
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %s as item %d\n", filepath.Base(item.SourcePath), item.ID)
		case enqueueRequeued:
			fmt.Fprintf(cmd.OutOrStdout(), "Reprocessing completed item %d: %s\n", item.ID, filepath.Base(arg))
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "Resuming queued item %d: %s\n", item.ID, filepath.Base(arg))
		}
		ids = append(ids, item.ID)
	}
	if len(ids) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to process")
		return nil
	}

	notifier := notifications.NewService(cfg)
	manager := workflow.NewManagerWithNotifier(cfg, store, logger, notifier)
	manager.RegisterDefaultStages(cfg, store, logger)
	if err := manager.Start(signalCtx); err != nil {
		return err
	}
	defer manager.Stop()

	start := time.Now()
	items, err := waitForItems(signalCtx, store, ids)
	if err != nil {
		return err
	}

	var failed int
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		detail := strings.TrimSpace(item.ProgressMessage)
		if item.Status == queue.StatusFailed {
			failed++
			detail = strings.TrimSpace(item.ErrorMessage)
		}
		rows = append(rows, []string{
			filepath.Base(item.SourcePath),
			string(item.Status),
			detail,
		})
	}
	elapsed := time.Since(start)
	out := renderTable([]string{"Source", "Status", "Detail"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft})
	fmt.Fprintln(cmd.OutOrStdout(), out)
	fmt.Fprintf(cmd.OutOrStdout(), "Processed %d video(s) in %s\n",
		len(items), elapsed.Round(time.Second))

	if err := notifier.NotifyQueueCompleted(signalCtx, len(items)-failed, failed, elapsed); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "queue notification failed: %v\n", err)
	}

	if failed > 0 {
		return fmt.Errorf("%d video(s) failed", failed)
	}
	return nil
}

// waitForItems blocks until every item reaches a terminal status.
func waitForItems(ctx context.Context, store *queue.Store, ids []int64) ([]*queue.Item, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		items := make([]*queue.Item, 0, len(ids))
		done := true
		for _, id := range ids {
			item, err := store.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if item.Status != queue.StatusCompleted && item.Status != queue.StatusFailed {
				done = false
			}
			items = append(items, item)
		}
		if done {
			return items, nil
		}

		select {
		case <-ctx.Done():
			return items, ctx.Err()
		case <-ticker.C:
		}
	}
}
