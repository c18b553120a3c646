package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	zerrors "github.com/zeno-search/zeno/internal/errors"
)

// PDFContent is what extractPDF finds in a PDF file.
type PDFContent struct {
	Title string
	Body  string
	Pages int
}

// pdfMeta is the part of the document information dictionary we use.
type pdfMeta struct {
	Title string
	Pages int
}

// extractPDF converts the PDF at path to text with the pdftotext tool and
// takes the title from its metadata, falling back to the first non-blank
// line of text.
func extractPDF(ctx context.Context, tool, path string, logger *slog.Logger) (PDFContent, error) {
	text, err := pdfToText(ctx, tool, path)
	if err != nil {
		return PDFContent{}, err
	}

	meta, err := readPDFMeta(path)
	if err != nil {
		// Text extraction worked, so a damaged info dictionary is not fatal.
		logger.Warn("pdf metadata unreadable", slog.String("path", path), slog.String("error", err.Error()))
	}

	content := PDFContent{
		Title: pdfTitle(meta.Title, text),
		Body:  text,
		Pages: meta.Pages,
	}
	logger.Debug("pdf extracted",
		slog.String("path", path),
		slog.Int("pages", content.Pages),
		slog.Int("chars", len(text)))
	return content, nil
}

// extractPDFBytes spools data to a temporary file for extractPDF.
func extractPDFBytes(ctx context.Context, tool string, data []byte, logger *slog.Logger) (PDFContent, error) {
	f, err := os.CreateTemp("", "zeno-*.pdf")
	if err != nil {
		return PDFContent{}, zerrors.New(zerrors.ErrCodeExtractFailed, "failed to create temporary pdf", err)
	}
	path := f.Name()
	defer func() { _ = os.Remove(path) }()

	_, err = io.Copy(f, bytes.NewReader(data))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return PDFContent{}, zerrors.New(zerrors.ErrCodeExtractFailed, "failed to write temporary pdf", err)
	}
	return extractPDF(ctx, tool, path, logger)
}

func pdfToText(ctx context.Context, tool, path string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, tool, path, "-")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", zerrors.New(zerrors.ErrCodeExtractFailed, "pdftotext failed: "+msg, err).
			WithDetail("path", path).
			WithSuggestion("install poppler-utils or set scraper.pdftotext_path")
	}
	return stdout.String(), nil
}

func readPDFMeta(path string) (pdfMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return pdfMeta{}, err
	}
	defer func() { _ = f.Close() }()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pctx, err := api.ReadContext(f, conf)
	if err != nil {
		return pdfMeta{}, fmt.Errorf("read pdf: %w", err)
	}
	if err := api.ValidateContext(pctx); err != nil {
		return pdfMeta{}, fmt.Errorf("validate pdf: %w", err)
	}
	return pdfMeta{Title: strings.TrimSpace(pctx.Title), Pages: pctx.PageCount}, nil
}

func pdfTitle(metaTitle, text string) string {
	if metaTitle != "" {
		return metaTitle
	}
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
