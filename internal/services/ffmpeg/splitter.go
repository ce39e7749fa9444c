package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"clipsplit/internal/config"
	"clipsplit/internal/logging"
	"clipsplit/internal/segments"
)

// Splitter shells out to ffmpeg to cut event segments from a source video.
type Splitter struct {
	binary      string
	timeout     time.Duration
	concurrency int
	logger      *slog.Logger

	// now is swappable so tests get stable output names.
	now func() time.Time
}

// NewSplitter constructs a splitter from the application configuration.
func NewSplitter(cfg *config.Config, logger *slog.Logger) *Splitter {
	concurrency := cfg.FFmpeg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Splitter{
		binary:      cfg.FFmpegBinary(),
		timeout:     time.Duration(cfg.FFmpeg.SplitTimeoutSeconds) * time.Second,
		concurrency: concurrency,
		logger:      logging.NewComponentLogger(logger, "ffmpeg"),
		now:         time.Now,
	}
}

// Result records the outcome of cutting one segment.
type Result struct {
	Segment    segments.Segment
	OutputPath string
	Err        error
}

// Split cuts every segment into outputDir and returns the per-segment
// results in timetable order. An individual ffmpeg failure is recorded on its
// result; only context cancellation aborts the batch.
func (s *Splitter) Split(ctx context.Context, sourcePath, outputDir string, segs []segments.Segment) ([]Result, error) {
	if strings.TrimSpace(sourcePath) == "" {
		return nil, errors.New("ffmpeg split: empty source path")
	}
	if len(segs) == 0 {
		return nil, errors.New("ffmpeg split: no segments")
	}

	date := s.now().Format("20060102")
	names := make([]string, len(segs))
	used := make(map[string]int, len(segs))
	for i, seg := range segs {
		base := fmt.Sprintf("%s_%s", segments.SanitizeEventID(seg.EventID), date)
		if n := used[base]; n > 0 {
			names[i] = fmt.Sprintf("%s_%d.mp4", base, n+1)
		} else {
			names[i] = base + ".mp4"
		}
		used[base]++
	}

	results := make([]Result, len(segs))
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)
	for i, seg := range segs {
		outputPath := filepath.Join(outputDir, names[i])
		group.Go(func() error {
			err := s.cutSegment(groupCtx, sourcePath, outputPath, seg)
			mu.Lock()
			results[i] = Result{Segment: seg, OutputPath: outputPath, Err: err}
			mu.Unlock()
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				s.logger.Warn("segment skipped",
					logging.String("event_id", seg.EventID),
					logging.Error(err))
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return results, fmt.Errorf("ffmpeg split: %w", err)
	}
	return results, nil
}

func (s *Splitter) cutSegment(ctx context.Context, sourcePath, outputPath string, seg segments.Segment) error {
	duration := seg.Duration()
	if duration <= 0 {
		return fmt.Errorf("non-positive duration (%s - %s)",
			segments.FormatTimestamp(seg.Start), segments.FormatTimestamp(seg.End))
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", sourcePath,
		"-ss", formatSeconds(seg.Start),
		"-t", formatSeconds(duration),
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		"-y",
		outputPath,
	}
	s.logger.Debug("cutting segment",
		logging.String("event_id", seg.EventID),
		logging.String("output", filepath.Base(outputPath)),
		logging.Duration("duration", duration))

	cmd := exec.CommandContext(ctx, s.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Version reports the installed ffmpeg version line, used by preflight checks.
func (s *Splitter) Version(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, s.binary, "-version")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("ffmpeg version: %w", err)
	}
	line, _, _ := strings.Cut(string(output), "\n")
	return strings.TrimSpace(line), nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// Produced filters a result set down to the files that were actually written.
func Produced(results []Result) []string {
	files := make([]string, 0, len(results))
	for _, result := range results {
		if result.Err == nil {
			files = append(files, result.OutputPath)
		}
	}
	return files
}
