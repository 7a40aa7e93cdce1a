package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// loadPromptFiles replaces inline prompt text with the content of any
// configured prompt file. All missing files are reported together.
func (c *Config) loadPromptFiles() error {
	ops := []struct {
		name string
		cfg  *OperationAIConfig
	}{
		{OperationAnalyze, &c.AI.Analyze},
		{OperationTailor, &c.AI.Tailor},
		{OperationEvaluate, &c.AI.Evaluate},
	}

	var problems []string
	for _, op := range ops {
		for _, p := range []struct {
			kind   string
			file   string
			target *string
		}{
			{"system", op.cfg.Prompts.SystemFile, &op.cfg.Prompts.System},
			{"user", op.cfg.Prompts.UserFile, &op.cfg.Prompts.User},
		} {
			if p.file == "" {
				continue
			}
			content, err := readPromptFile(p.file)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s %s prompt: %v", op.name, p.kind, err))
				continue
			}
			*p.target = content
			log.Printf("[CONFIG] Loaded %s %s prompt from %s (%d characters)", op.name, p.kind, p.file, len(content))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}

func readPromptFile(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid path %s: %w", path, err)
	}
	content, err := os.ReadFile(absPath)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("file not found: %s", absPath)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", absPath, err)
	}
	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return "", fmt.Errorf("file %s is empty", absPath)
	}
	return trimmed, nil
}
