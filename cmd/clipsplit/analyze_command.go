package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"clipsplit/internal/media/ffprobe"
	"clipsplit/internal/prompt"
	"clipsplit/internal/segments"
	"clipsplit/internal/services/gemini"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var promptPath string

	cmd := &cobra.Command{
		Use:   "analyze <video>",
		Short: "Produce the event timetable CSV without splitting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			videoPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve %s: %w", args[0], err)
			}
			if _, err := os.Stat(videoPath); err != nil {
				return fmt.Errorf("video %s: %w", args[0], err)
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			override := promptPath
			if override == "" {
				override = cfg.Paths.PromptPath
			}
			promptText, err := prompt.Load(override)
			if err != nil {
				return err
			}

			client, err := gemini.NewClient(signalCtx, gemini.ConfigFromApp(cfg))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Analyzing %s...\n", filepath.Base(videoPath))
			reply, err := client.AnalyzeVideo(signalCtx, videoPath, promptText)
			if err != nil {
				return err
			}

			raw, err := segments.ParseTable(reply)
			if err != nil {
				return err
			}

			// Probe for the container duration so open-ended events close at
			// the video end; analysis still works if ffprobe is unavailable.
			duration := probeDuration(cmd, cfg.FFprobeBinary(), videoPath)
			segs := segments.Normalize(raw, duration)
			if len(segs) == 0 {
				return fmt.Errorf("no event IDs detected in %s", filepath.Base(videoPath))
			}

			if outputPath != "" {
				if err := segments.WriteCSVFile(outputPath, segs); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d event(s) to %s\n", len(segs), outputPath)
				return nil
			}
			return segments.WriteCSV(cmd.OutOrStdout(), segs)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the CSV to a file instead of stdout")
	cmd.Flags().StringVar(&promptPath, "prompt", "", "Override the analysis prompt file")
	return cmd
}

func probeDuration(cmd *cobra.Command, binary, videoPath string) time.Duration {
	result, err := ffprobe.Inspect(cmd.Context(), binary, videoPath)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warn: ffprobe failed, end times not clamped: %v\n", err)
		return 0
	}
	return result.Duration()
}
