package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clipsplit/internal/deps"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check external tools and configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			statuses := deps.CheckBinaries(deps.Required(cfg))
			rows := make([][]string, 0, len(statuses)+1)
			for _, status := range statuses {
				state := "ok"
				detail := status.Description
				if !status.Available {
					state = "missing"
					detail = status.Detail
				}
				rows = append(rows, []string{status.Name, status.Command, state, detail})
			}

			keyState := "ok"
			keyDetail := "Gemini API key configured"
			if strings.TrimSpace(cfg.Gemini.APIKey) == "" {
				keyState = "missing"
				keyDetail = "set gemini.api_key in config.toml or export GEMINI_API_KEY"
			}
			rows = append(rows, []string{"Gemini API key", "-", keyState, keyDetail})

			out := renderTable([]string{"Dependency", "Command", "State", "Detail"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft})
			fmt.Fprintln(cmd.OutOrStdout(), out)

			if !deps.AllAvailable(statuses) || keyState == "missing" {
				return fmt.Errorf("preflight found missing dependencies")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All checks passed")
			return nil
		},
	}
}
