package llm

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

//go:embed default_prompt.md
var defaultSystemPrompt string

// DefaultSystemPrompt returns the built-in system prompt
func DefaultSystemPrompt() string {
	return defaultSystemPrompt
}

// LoadSystemPrompt reads the system prompt from path. An empty path, a
// missing file or a blank file yields the built-in prompt; other read
// errors are returned.
func LoadSystemPrompt(path string) (string, error) {
	if path == "" {
		return defaultSystemPrompt, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return defaultSystemPrompt, nil
	}
	if err != nil {
		return "", fmt.Errorf("read system prompt: %w", err)
	}

	if strings.TrimSpace(string(data)) == "" {
		return defaultSystemPrompt, nil
	}
	return string(data), nil
}
