package common

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"artyats/internal/errors"
	"artyats/internal/extract"
	"artyats/internal/utils"
)

// FileProcessor handles common file operations
type FileProcessor struct {
	extractor *extract.Extractor
	logger    *errors.Logger
}

// NewFileProcessor creates a new file processor instance
func NewFileProcessor(extractor *extract.Extractor, logger *errors.Logger) *FileProcessor {
	if logger == nil {
		logger = errors.Nop()
	}
	return &FileProcessor{extractor: extractor, logger: logger}
}

// ReadDocument extracts the plain text of a PDF, DOCX or text file.
func (fp *FileProcessor) ReadDocument(ctx context.Context, filename string) (string, error) {
	if !utils.IsDocumentFile(filename) {
		fp.logger.Warn("File extension not recognised, detecting format from content",
			"filename", filename)
	}

	res, err := fp.extractor.ExtractFile(ctx, filename)
	if err != nil {
		return "", err
	}

	fp.logger.Debug("Document extracted",
		"filename", filename,
		"format", string(res.Format),
		"pages", res.Pages,
		"characters", res.Characters)
	return res.Text, nil
}

// ReadDocuments extracts each file in order.
func (fp *FileProcessor) ReadDocuments(ctx context.Context, filenames ...string) ([]string, error) {
	texts := make([]string, len(filenames))
	for i, filename := range filenames {
		text, err := fp.ReadDocument(ctx, filename)
		if err != nil {
			return nil, err
		}
		texts[i] = text
	}
	return texts, nil
}

// WriteFile writes content to a file with directory creation
func (fp *FileProcessor) WriteFile(filename, content string) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		err := os.MkdirAll(dir, 0750)
		if err != nil {
			return errors.NewIOError("DIRECTORY_CREATE_FAILED",
				fmt.Sprintf("Cannot create directory: %s", dir), err)
		}
	}

	err := os.WriteFile(filename, []byte(content), 0600)
	if err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}

	return nil
}

// ValidateOutputFile validates output file path
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout is valid
	}

	if err := utils.ValidateOutputFile(filename); err != nil {
		return errors.NewValidationError("INVALID_OUTPUT_FILE",
			fmt.Sprintf("Invalid output file: %s", filename), err)
	}

	return nil
}
