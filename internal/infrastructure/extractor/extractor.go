package extractor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/resume-screener/internal/core/domain"
)

// Extractor turns a resume file into plain text. PDF and plain-text resumes
// are supported; anything else is a read error so the orchestrator can park
// the candidate instead of sending garbage to the generator.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".txt":
		return extractPlain(path)
	default:
		return "", domain.WrapError(domain.ErrReadFailed, "extract text",
			fmt.Errorf("unsupported resume format %q", filepath.Ext(path)))
	}
}

func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", domain.WrapError(domain.ErrReadFailed, "open pdf", err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", domain.WrapError(domain.ErrReadFailed, "read pdf text", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", domain.WrapError(domain.ErrReadFailed, "read pdf text", err)
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", domain.WrapError(domain.ErrReadFailed, "read pdf text", fmt.Errorf("no extractable text in %s", filepath.Base(path)))
	}
	return text, nil
}

func extractPlain(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", domain.WrapError(domain.ErrReadFailed, "read text file", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
