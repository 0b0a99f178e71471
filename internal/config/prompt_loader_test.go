package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writePromptFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to create prompt file %s: %v", name, err)
	}
	return path
}

func TestLoadPromptsFromFiles(t *testing.T) {
	tempDir := t.TempDir()
	instructionsFile := writePromptFile(t, tempDir, "suggest.md", "  Rewrite for {{.candidateName}}  \n")
	systemFile := writePromptFile(t, tempDir, "persona.md", "Global persona")

	config := &Config{
		AI: AIConfig{
			Prompt: PromptOverride{SystemFile: systemFile},
			Suggest: OperationAIConfig{
				Prompt: PromptOverride{InstructionsFile: instructionsFile},
			},
			Chat: OperationAIConfig{
				Prompt: PromptOverride{Instructions: "inline chat instructions"},
			},
		},
	}

	if err := config.loadPromptsFromFiles(); err != nil {
		t.Fatalf("Failed to load prompts from files: %v", err)
	}

	instructions, system := config.PromptFor(OperationSuggest)
	if instructions != "Rewrite for {{.candidateName}}" {
		t.Errorf("Expected trimmed file instructions, got %q", instructions)
	}
	if system != "Global persona" {
		t.Errorf("Expected global system file to apply to suggest, got %q", system)
	}

	instructions, _ = config.PromptFor(OperationChat)
	if instructions != "inline chat instructions" {
		t.Errorf("Expected inline chat instructions, got %q", instructions)
	}

	instructions, _ = config.PromptFor(OperationScore)
	if instructions != "" {
		t.Errorf("Expected no override for score, got %q", instructions)
	}

	// Paths stay as configured.
	if config.AI.Suggest.Prompt.InstructionsFile != instructionsFile {
		t.Error("Expected instructions file path to be preserved")
	}
}

func TestFilePromptWinsOverInline(t *testing.T) {
	tempDir := t.TempDir()
	file := writePromptFile(t, tempDir, "rationale.md", "from file")

	config := &Config{
		AI: AIConfig{
			Rationale: OperationAIConfig{
				Prompt: PromptOverride{Instructions: "inline", InstructionsFile: file},
			},
		},
	}
	if err := config.loadPromptsFromFiles(); err != nil {
		t.Fatal(err)
	}

	if got, _ := config.PromptFor(OperationRationale); got != "from file" {
		t.Errorf("Expected file content to win, got %q", got)
	}
}

func TestValidatePromptFiles(t *testing.T) {
	tempDir := t.TempDir()
	validFile := writePromptFile(t, tempDir, "valid.md", "Valid content")

	config := &Config{
		AI: AIConfig{
			Score: OperationAIConfig{Prompt: PromptOverride{InstructionsFile: validFile}},
		},
	}
	if err := config.validatePromptFiles(); err != nil {
		t.Errorf("Expected validation to pass for valid file, got error: %v", err)
	}

	config.AI.Score.Prompt.InstructionsFile = filepath.Join(tempDir, "nonexistent.md")
	config.AI.Feedback.Prompt.SystemFile = filepath.Join(tempDir, "also-missing.md")

	err := config.validatePromptFiles()
	if err == nil {
		t.Fatal("Expected validation to fail for non-existent files")
	}
	for _, want := range []string{"nonexistent.md", "also-missing.md"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error to mention %s, got %v", want, err)
		}
	}
}

func TestLoadPromptFromFile(t *testing.T) {
	tempDir := t.TempDir()
	testFile := writePromptFile(t, tempDir, "test.md", "Test prompt content")

	loaded, err := loadPromptFromFile(testFile, "system", OperationChat)
	if err != nil {
		t.Fatalf("Failed to load prompt from file: %v", err)
	}
	if loaded != "Test prompt content" {
		t.Errorf("Expected content 'Test prompt content', got %q", loaded)
	}

	emptyFile := writePromptFile(t, tempDir, "empty.md", "  \n")
	if _, err := loadPromptFromFile(emptyFile, "system", OperationChat); err == nil {
		t.Error("Expected error for empty file")
	}

	if _, err := loadPromptFromFile(filepath.Join(tempDir, "nonexistent.md"), "system", OperationChat); err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestOperationDefaultsFallBackToGlobal(t *testing.T) {
	scoreTimeout := 5 * time.Second
	config := &Config{
		AI: AIConfig{
			Model:      "gemini-2.0-flash",
			Timeout:    time.Minute,
			APIKey:     "global-key",
			MaxRetries: 0,
			Score:      OperationAIConfig{Timeout: &scoreTimeout, Model: "gemini-2.5-pro"},
		},
	}

	score := config.GetOperationConfig(OperationScore)
	if score.Model != "gemini-2.5-pro" || *score.Timeout != scoreTimeout {
		t.Errorf("Expected score overrides to survive, got model=%s timeout=%s", score.Model, *score.Timeout)
	}
	if score.APIKey != "global-key" || *score.MaxRetries != 0 {
		t.Errorf("Expected global fallbacks on score, got key=%q retries=%d", score.APIKey, *score.MaxRetries)
	}

	chat := config.GetOperationConfig(OperationChat)
	if chat.Model != "gemini-2.0-flash" || *chat.Timeout != time.Minute {
		t.Errorf("Expected chat to inherit global config, got model=%s timeout=%s", chat.Model, *chat.Timeout)
	}

	// Defaults are copies; mutating one operation must not leak into the global value.
	*chat.Timeout = time.Hour
	if config.AI.Timeout != time.Minute {
		t.Error("Expected global timeout to be unaffected by operation copy")
	}
}
