// Package prompt manages the analysis prompt sent to the Gemini model. The
// built-in prompt can be replaced with a file referenced from the config so
// the instructions are tunable without a rebuild.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed video_segmentation.txt
var defaultPrompt string

// Default returns the built-in video segmentation prompt.
func Default() string {
	return strings.TrimSpace(defaultPrompt) + "\n"
}

// Load returns the analysis prompt, preferring the override file when one is
// configured. An empty path selects the built-in prompt; a configured path
// that is missing or empty is an error rather than a silent fallback.
func Load(overridePath string) (string, error) {
	overridePath = strings.TrimSpace(overridePath)
	if overridePath == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(overridePath)
	if err != nil {
		return "", fmt.Errorf("read prompt override: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("prompt override %s is empty", overridePath)
	}
	return text + "\n", nil
}
