package gemini

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/genai"

	"clipsplit/internal/config"
)

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 2 * time.Second
	defaultRetryMaxDelay  = 30 * time.Second
)

// Config captures the runtime settings required to talk to the Gemini API.
type Config struct {
	APIKey          string
	Model           string
	Timeout         time.Duration
	UploadPoll      time.Duration
	UploadTimeout   time.Duration
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

// ConfigFromApp derives client settings from the application configuration.
func ConfigFromApp(cfg *config.Config) Config {
	return Config{
		APIKey:          strings.TrimSpace(cfg.Gemini.APIKey),
		Model:           strings.TrimSpace(cfg.Gemini.Model),
		Timeout:         time.Duration(cfg.Gemini.TimeoutSeconds) * time.Second,
		UploadPoll:      time.Duration(cfg.Gemini.UploadPollSeconds) * time.Second,
		UploadTimeout:   time.Duration(cfg.Gemini.UploadTimeoutSeconds) * time.Second,
		Temperature:     cfg.Gemini.Temperature,
		TopP:            cfg.Gemini.TopP,
		TopK:            cfg.Gemini.TopK,
		MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
	}
}

// api is the slice of the genai SDK the client depends on. Tests swap it for
// a fake; production code uses genaiAPI.
type api interface {
	UploadFile(ctx context.Context, path, mimeType string) (*genai.File, error)
	GetFile(ctx context.Context, name string) (*genai.File, error)
	DeleteFile(ctx context.Context, name string) error
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client runs video analysis requests against the Gemini API.
type Client struct {
	cfg Config
	api api

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithAPI overrides the SDK wrapper (used in tests).
func WithAPI(impl api) Option {
	return func(c *Client) {
		if impl != nil {
			c.api = impl
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry and poll sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a Gemini analysis client using the supplied configuration.
func NewClient(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	client := &Client{
		cfg:              cfg,
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.api == nil {
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("gemini: api key required (set gemini.api_key or GEMINI_API_KEY)")
		}
		sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini: create client: %w", err)
		}
		client.api = &genaiAPI{client: sdk}
	}
	if client.cfg.Model == "" {
		return nil, errors.New("gemini: model required")
	}
	return client, nil
}

// AnalyzeVideo uploads the video, runs the prompt against it, and returns the
// model's reply text. The uploaded file is deleted afterwards on a best-effort
// basis.
func (c *Client) AnalyzeVideo(ctx context.Context, videoPath, promptText string) (string, error) {
	promptText = strings.TrimSpace(promptText)
	if promptText == "" {
		return "", errors.New("gemini analyze: prompt required")
	}
	videoPath = strings.TrimSpace(videoPath)
	if videoPath == "" {
		return "", errors.New("gemini analyze: video path required")
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	file, err := c.api.UploadFile(ctx, videoPath, videoMIMEType(videoPath))
	if err != nil {
		return "", fmt.Errorf("gemini analyze: upload %s: %w", filepath.Base(videoPath), err)
	}
	defer func() {
		// Uploaded files expire on their own; deleting is just tidy.
		deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		_ = c.api.DeleteFile(deleteCtx, file.Name)
	}()

	file, err = c.waitForActive(ctx, file)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromURI(file.URI, file.MIMEType),
			genai.NewPartFromText(promptText),
		}, genai.RoleUser),
	}

	reply, err := c.generateWithRetry(ctx, contents)
	if err != nil {
		return "", err
	}
	return reply, nil
}

// HealthCheck verifies the client is configured well enough to issue requests.
func (c *Client) HealthCheck(ctx context.Context) error {
	if strings.TrimSpace(c.cfg.Model) == "" {
		return errors.New("gemini health: model required")
	}
	if c.api == nil {
		return errors.New("gemini health: client not initialized")
	}
	return nil
}

func (c *Client) waitForActive(ctx context.Context, file *genai.File) (*genai.File, error) {
	poll := c.cfg.UploadPoll
	if poll <= 0 {
		poll = 2 * time.Second
	}
	deadline := time.Now().Add(c.cfg.UploadTimeout)

	for {
		switch file.State {
		case genai.FileStateActive:
			return file, nil
		case genai.FileStateFailed:
			return nil, fmt.Errorf("gemini analyze: upload processing failed for %s", file.Name)
		}
		if c.cfg.UploadTimeout > 0 && time.Now().After(deadline) {
			return nil, fmt.Errorf("gemini analyze: upload %s not active after %s", file.Name, c.cfg.UploadTimeout)
		}
		if err := c.sleep(ctx, poll); err != nil {
			return nil, err
		}
		refreshed, err := c.api.GetFile(ctx, file.Name)
		if err != nil {
			return nil, fmt.Errorf("gemini analyze: poll upload state: %w", err)
		}
		file = refreshed
	}
}

func (c *Client) generateWithRetry(ctx context.Context, contents []*genai.Content) (string, error) {
	genCfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(c.cfg.Temperature)),
		TopP:             genai.Ptr(float32(c.cfg.TopP)),
		MaxOutputTokens:  int32(c.cfg.MaxOutputTokens),
		ResponseMIMEType: "text/plain",
	}
	if c.cfg.TopK > 0 {
		genCfg.TopK = genai.Ptr(float32(c.cfg.TopK))
	}

	attempts := c.retryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.api.GenerateContent(ctx, c.cfg.Model, contents, genCfg)
		if err == nil {
			text := strings.TrimSpace(resp.Text())
			if text != "" {
				return text, nil
			}
			err = errors.New("gemini analyze: empty reply")
		}
		lastErr = err

		if attempt == attempts || !retryable(ctx, err) {
			return "", err
		}
		if sleepErr := c.sleep(ctx, c.backoffDelay(attempt)); sleepErr != nil {
			return "", sleepErr
		}
	}
	return "", fmt.Errorf("gemini analyze: failed after %d attempts: %w", attempts, lastErr)
}

func retryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusRequestTimeout,
			apiErr.Code == http.StatusTooManyRequests,
			apiErr.Code >= http.StatusInternalServerError:
			return true
		default:
			return false
		}
	}
	// Empty replies and transport hiccups are worth another attempt.
	return true
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.retryBaseDelay
	if base <= 0 {
		return 0
	}
	maxDelay := c.retryMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			return maxDelay
		}
		delay *= 2
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func videoMIMEType(path string) string {
	if byExt := mime.TypeByExtension(filepath.Ext(path)); strings.HasPrefix(byExt, "video/") {
		return byExt
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	case ".avi":
		return "video/x-msvideo"
	case ".ts":
		return "video/mp2t"
	case ".webm":
		return "video/webm"
	default:
		return "video/mp4"
	}
}

// genaiAPI adapts the genai SDK to the api interface.
type genaiAPI struct {
	client *genai.Client
}

func (g *genaiAPI) UploadFile(ctx context.Context, path, mimeType string) (*genai.File, error) {
	return g.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{MIMEType: mimeType})
}

func (g *genaiAPI) GetFile(ctx context.Context, name string) (*genai.File, error) {
	return g.client.Files.Get(ctx, name, nil)
}

func (g *genaiAPI) DeleteFile(ctx context.Context, name string) error {
	_, err := g.client.Files.Delete(ctx, name, nil)
	return err
}

func (g *genaiAPI) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return g.client.Models.GenerateContent(ctx, model, contents, cfg)
}
