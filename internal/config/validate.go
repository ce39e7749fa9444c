package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateGemini(); err != nil {
		return err
	}
	if err := c.validateIntervals(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

// validateGemini checks generation parameters only. A missing API key is
// reported by the analysis client so queue and config commands keep working
// without one.
func (c *Config) validateGemini() error {
	if strings.TrimSpace(c.Gemini.Model) == "" {
		return errors.New("gemini.model must be set")
	}
	if c.Gemini.Temperature < 0 || c.Gemini.Temperature > 2 {
		return errors.New("gemini.temperature must be between 0 and 2")
	}
	if c.Gemini.TopP < 0 || c.Gemini.TopP > 1 {
		return errors.New("gemini.top_p must be between 0 and 1")
	}
	if c.Gemini.TopK < 0 {
		return errors.New("gemini.top_k must not be negative")
	}
	if c.Gemini.MaxOutputTokens <= 0 {
		return errors.New("gemini.max_output_tokens must be positive")
	}
	return nil
}

func (c *Config) validateIntervals() error {
	return ensurePositive(map[string]int{
		"gemini.timeout_seconds":        c.Gemini.TimeoutSeconds,
		"gemini.upload_poll_seconds":    c.Gemini.UploadPollSeconds,
		"gemini.upload_timeout_seconds": c.Gemini.UploadTimeoutSeconds,
		"ffmpeg.split_timeout_seconds":  c.FFmpeg.SplitTimeoutSeconds,
		"ffmpeg.concurrency":            c.FFmpeg.Concurrency,
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.heartbeat_interval":   c.Workflow.HeartbeatInterval,
		"workflow.heartbeat_timeout":    c.Workflow.HeartbeatTimeout,
		"watch.settle_seconds":          c.Watch.SettleSeconds,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func ensurePositive(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
