package config

const (
	defaultInboxDir             = "~/.local/share/clipsplit/inbox"
	defaultOutputDir            = "~/.local/share/clipsplit/output"
	defaultLogDir               = "~/.local/share/clipsplit/logs"
	defaultGeminiModel          = "gemini-2.5-flash"
	defaultGeminiTimeout        = 600
	defaultUploadPollSeconds    = 2
	defaultUploadTimeoutSeconds = 300
	defaultTemperature          = 0.1
	defaultTopP                 = 0.95
	defaultTopK                 = 40
	defaultMaxOutputTokens      = 8192
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultSplitTimeoutSeconds  = 1800
	defaultSplitConcurrency     = 2
	defaultQueuePollInterval    = 5
	defaultHeartbeatInterval    = 15
	defaultHeartbeatTimeout     = 120
	defaultWatchSettleSeconds   = 5
	defaultNtfyRequestTimeout   = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

func defaultWatchExtensions() []string {
	return []string{"mp4", "mov", "mkv", "avi", "ts", "m4v", "webm"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InboxDir:  defaultInboxDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Gemini: Gemini{
			Model:                defaultGeminiModel,
			TimeoutSeconds:       defaultGeminiTimeout,
			UploadPollSeconds:    defaultUploadPollSeconds,
			UploadTimeoutSeconds: defaultUploadTimeoutSeconds,
			Temperature:          defaultTemperature,
			TopP:                 defaultTopP,
			TopK:                 defaultTopK,
			MaxOutputTokens:      defaultMaxOutputTokens,
		},
		FFmpeg: FFmpeg{
			FFmpegBinary:        defaultFFmpegBinary,
			FFprobeBinary:       defaultFFprobeBinary,
			SplitTimeoutSeconds: defaultSplitTimeoutSeconds,
			Concurrency:         defaultSplitConcurrency,
		},
		Workflow: Workflow{
			QueuePollInterval: defaultQueuePollInterval,
			HeartbeatInterval: defaultHeartbeatInterval,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
		},
		Watch: Watch{
			SettleSeconds: defaultWatchSettleSeconds,
			Extensions:    defaultWatchExtensions(),
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
