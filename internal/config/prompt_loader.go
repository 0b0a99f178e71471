package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// LoadedPrompt holds prompt text read from override files for one operation.
type LoadedPrompt struct {
	Instructions string
	System       string
}

// loadPromptsFromFiles reads every configured prompt file once. The global
// ai.prompt.systemFile applies to operations without their own system file.
func (c *Config) loadPromptsFromFiles() error {
	log.Println("[CONFIG] Starting custom prompt loading from files")

	loaded := make(map[string]LoadedPrompt, len(Operations))
	for _, op := range Operations {
		opCfg := c.GetOperationConfig(op)
		var lp LoadedPrompt

		if opCfg.Prompt.InstructionsFile != "" {
			content, err := loadPromptFromFile(opCfg.Prompt.InstructionsFile, "instructions", op)
			if err != nil {
				return err
			}
			lp.Instructions = content
		}
		if opCfg.Prompt.SystemFile != "" {
			content, err := loadPromptFromFile(opCfg.Prompt.SystemFile, "system", op)
			if err != nil {
				return err
			}
			lp.System = content
		}

		if lp.Instructions != "" || lp.System != "" {
			loaded[op] = lp
		}
	}
	c.loadedPrompts = loaded

	if len(loaded) == 0 {
		log.Println("[CONFIG] No custom prompt files loaded - using built-in defaults")
	} else {
		log.Printf("[CONFIG] Custom prompt files loaded for %d operation(s)", len(loaded))
	}
	return nil
}

// loadPromptFromFile loads a prompt from a file with proper error handling and logging
func loadPromptFromFile(filePath, promptType, operation string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s %s prompt file '%s': %w", operation, promptType, filePath, err)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s %s prompt file not found: %s", operation, promptType, absPath)
		}
		return "", fmt.Errorf("failed to read %s %s prompt file '%s': %w", operation, promptType, absPath, err)
	}

	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return "", fmt.Errorf("%s %s prompt file '%s' is empty", operation, promptType, absPath)
	}

	log.Printf("[CONFIG] Loaded %s %s prompt from file: %s (%d characters)",
		operation, promptType, absPath, len(trimmed))
	return trimmed, nil
}

// validatePromptFiles checks that every configured prompt file exists before
// any of them is read, so all missing files are reported together.
func (c *Config) validatePromptFiles() error {
	var validationErrors []string

	validateFile := func(filePath, promptType, operation string) {
		if filePath == "" {
			return
		}
		absPath, err := filepath.Abs(filePath)
		if err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("invalid path for %s %s prompt: %s", operation, promptType, filePath))
			return
		}
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			validationErrors = append(validationErrors, fmt.Sprintf("%s %s prompt file not found: %s", operation, promptType, absPath))
		}
	}

	validateFile(c.AI.Prompt.SystemFile, "system", "global")
	for _, op := range Operations {
		raw := c.rawOperation(op)
		validateFile(raw.Prompt.InstructionsFile, "instructions", op)
		validateFile(raw.Prompt.SystemFile, "system", op)
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}
	return nil
}
