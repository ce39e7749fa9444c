package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"clipsplit/internal/queue"
	"clipsplit/internal/workflow"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counts, per-stage health, and stalled items",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				manager := workflow.NewManager(cfg, store, nil)
				manager.RegisterDefaultStages(cfg, store, nil)
				out := cmd.OutOrStdout()

				summary, err := manager.QueueHealth(cmd.Context())
				if err != nil {
					return err
				}
				if summary.Total == 0 {
					fmt.Fprintln(out, "Queue is empty")
				} else {
					rows := [][]string{
						{"Pending", strconv.Itoa(summary.Pending)},
						{"Processing", strconv.Itoa(summary.Processing)},
						{"Completed", strconv.Itoa(summary.Completed)},
						{"Failed", strconv.Itoa(summary.Failed)},
						{"Total", strconv.Itoa(summary.Total)},
					}
					fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, rows,
						[]columnAlignment{alignLeft, alignRight}))
				}

				healthRows := make([][]string, 0, 4)
				for _, health := range manager.StageHealths(cmd.Context()) {
					state := "ready"
					if !health.Ready {
						state = "unavailable"
					}
					healthRows = append(healthRows, []string{health.Name, state, health.Detail})
				}
				fmt.Fprintln(out, renderTable([]string{"Stage", "State", "Detail"}, healthRows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft}))

				timeout := time.Duration(cfg.Workflow.HeartbeatTimeout) * time.Second
				if timeout <= 0 {
					timeout = time.Minute
				}
				stalled, err := store.StalledSince(cmd.Context(), time.Now().Add(-timeout))
				if err != nil {
					return err
				}
				if len(stalled) == 0 {
					fmt.Fprintln(out, "No stalled items")
					return nil
				}
				stalledRows := make([][]string, 0, len(stalled))
				for _, item := range stalled {
					heartbeat := "never"
					if item.LastHeartbeat != nil {
						heartbeat = item.LastHeartbeat.Local().Format(time.DateTime)
					}
					stalledRows = append(stalledRows, []string{
						strconv.FormatInt(item.ID, 10),
						filepath.Base(item.SourcePath),
						string(item.Status),
						heartbeat,
					})
				}
				fmt.Fprintln(out, renderTable([]string{"ID", "Source", "Status", "Last Heartbeat"}, stalledRows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
				return nil
			})
		},
	}
}
