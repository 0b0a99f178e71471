// Package extract turns uploaded resumes and job descriptions into plain text.
package extract

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"artyats/internal/config"
	"artyats/internal/errors"
	"artyats/internal/utils"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// Format is a supported document format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatText Format = "text"
)

// Result is the text pulled out of one document.
type Result struct {
	Text       string `json:"text"`
	Format     Format `json:"format"`
	Pages      int    `json:"pages,omitempty"`
	Characters int    `json:"characters"`
}

// Extractor reads PDF, DOCX and plain text documents within size limits.
type Extractor struct {
	maxSize     int64
	maxPDFPages int
	logger      *errors.Logger
}

// New creates an Extractor. Non-positive limits disable the check.
func New(cfg config.ExtractConfig, logger *errors.Logger) *Extractor {
	if logger == nil {
		logger = errors.Nop()
	}
	return &Extractor{maxSize: cfg.MaxDocumentSize, maxPDFPages: cfg.MaxPDFPages, logger: logger}
}

// MaxSize returns the configured document size limit in bytes.
func (e *Extractor) MaxSize() int64 { return e.maxSize }

// ExtractFile reads and extracts the document at path.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*Result, error) {
	if err := utils.ValidateInputFile(path); err != nil {
		code := errors.ErrCodeFileNotReadable
		if errors.Is(err, os.ErrNotExist) {
			code = errors.ErrCodeFileNotFound
		}
		return nil, errors.NewIOError(code, err.Error(), err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", path), err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			e.logger.Warn("Failed to close file", "filename", path, "error", cerr)
		}
	}()

	data, err := e.readLimited(f)
	if err != nil {
		return nil, err
	}
	return e.Extract(ctx, path, data)
}

// readLimited reads r up to one byte past the size limit so oversize input is
// detected without buffering all of it.
func (e *Extractor) readLimited(r io.Reader) ([]byte, error) {
	if e.maxSize > 0 {
		r = io.LimitReader(r, e.maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable, "failed to read document", err)
	}
	if err := e.checkSize(int64(len(data))); err != nil {
		return nil, err
	}
	return data, nil
}

// Extract detects the format of data and returns its text. name is only
// used for its extension.
func (e *Extractor) Extract(ctx context.Context, name string, data []byte) (*Result, error) {
	if err := e.checkSize(int64(len(data))); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, emptyDocument(name)
	}

	format, err := DetectFormat(name, data)
	if err != nil {
		return nil, err
	}

	var (
		text  string
		pages int
	)
	switch format {
	case FormatPDF:
		text, pages, err = e.extractPDF(ctx, data)
	case FormatDOCX:
		text, err = extractDOCX(data)
	default:
		text, err = extractText(data)
	}
	if err != nil {
		return nil, err
	}

	text = CleanText(text)
	if text == "" {
		return nil, emptyDocument(name)
	}

	e.logger.Debug("Document extracted",
		"name", name,
		"format", format,
		"bytes", len(data),
		"characters", utf8.RuneCountInString(text))

	return &Result{
		Text:       text,
		Format:     format,
		Pages:      pages,
		Characters: utf8.RuneCountInString(text),
	}, nil
}

func (e *Extractor) checkSize(n int64) error {
	if e.maxSize > 0 && n > e.maxSize {
		return errors.NewValidationError(errors.ErrCodeDocumentTooLarge,
			fmt.Sprintf("document exceeds the %s limit", utils.FormatFileSize(e.maxSize)), nil)
	}
	return nil
}

// DetectFormat picks a format from the file extension, falling back to the
// leading bytes when the extension is missing or unknown.
func DetectFormat(name string, data []byte) (Format, error) {
	switch utils.GetFileExtension(name) {
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDOCX, nil
	case ".txt", ".text", ".md", ".markdown":
		return FormatText, nil
	case ".doc", ".rtf", ".odt", ".pages":
		return "", unsupported(name)
	}

	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return FormatPDF, nil
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		if bytes.Contains(data, []byte("word/document.xml")) {
			return FormatDOCX, nil
		}
		return "", unsupported(name)
	}

	if strings.HasPrefix(http.DetectContentType(data), "text/") {
		return FormatText, nil
	}
	return "", unsupported(name)
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte) (text string, pages int, err error) {
	// The PDF parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, pages = "", 0
			err = corrupt("PDF", fmt.Errorf("%v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, corrupt("PDF", err)
	}

	pages = reader.NumPage()
	if e.maxPDFPages > 0 && pages > e.maxPDFPages {
		return "", pages, errors.NewValidationError(errors.ErrCodeDocumentTooLarge,
			fmt.Sprintf("PDF has %d pages, the limit is %d", pages, e.maxPDFPages), nil)
	}

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", pages, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("Skipping unreadable PDF page", "page", i, "error", err.Error())
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n\n")
	}
	return sb.String(), pages, nil
}

func extractDOCX(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", corrupt("DOCX", err)
	}
	defer doc.Close()

	text, err := wordXMLToText(doc.Editable().GetContent())
	if err != nil {
		return "", corrupt("DOCX", err)
	}
	return text, nil
}

// wordXMLToText flattens WordprocessingML into paragraphs of plain text.
func wordXMLToText(content string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(content))
	var (
		sb     strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
}

func extractText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", corrupt("text", fmt.Errorf("content is not valid UTF-8"))
	}
	return string(data), nil
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// CleanText normalises line endings, trims each line and keeps at most one
// blank line between paragraphs.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	return strings.TrimSpace(blankRuns.ReplaceAllString(text, "\n\n"))
}

func unsupported(name string) error {
	return errors.NewValidationError(errors.ErrCodeUnsupportedFormat,
		fmt.Sprintf("unsupported document format for %q; use PDF, DOCX or plain text", name), nil)
}

func corrupt(kind string, cause error) error {
	return errors.NewValidationError(errors.ErrCodeCorruptDocument,
		fmt.Sprintf("the %s document could not be read", kind), cause)
}

func emptyDocument(name string) error {
	return errors.NewValidationError(errors.ErrCodeEmptyDocument,
		fmt.Sprintf("no text found in %q", name), nil)
}
