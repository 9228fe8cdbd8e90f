package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
)

type TextConfig struct {
	Pdftotext string        // binary name or absolute path; if empty -> "pdftotext"
	Timeout   time.Duration // wall-clock budget; if zero -> 30s
	TempDir   string        // parent for the scoped temp dir; empty uses os.TempDir
}

// TextExtractor pulls machine-readable text out of a PDF buffer.
type TextExtractor struct {
	cfg    TextConfig
	runner Runner
	logger *slog.Logger
}

func NewTextExtractor(cfg TextConfig, runner Runner, logger *slog.Logger) *TextExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &TextExtractor{cfg: cfg, runner: runner, logger: logger}
}

// ExtractText returns the trimmed document text. No text is a zero-length
// success; only I/O, parser and timeout failures are errors.
func (e *TextExtractor) ExtractText(ctx context.Context, doc Document) (string, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	var text string
	err := withTempFile(e.cfg.TempDir, doc.Data, func(path string) error {
		// pdftotext -layout -enc UTF-8 -eol unix <path> -
		out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return common.NewAppError(common.KindTimeout,
					fmt.Sprintf("text extraction exceeded %s", e.cfg.Timeout), ctx.Err())
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("pdftotext: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
		}
		text = string(out)
		return nil
	})
	if err != nil {
		e.logger.Warn("extract.text.failed",
			"file", doc.FileName,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"error", err)
		return "", err
	}

	text = strings.TrimSpace(text)
	e.logger.Info("extract.text.done",
		"file", doc.FileName,
		"chars", len([]rune(text)),
		"elapsed_ms", time.Since(start).Milliseconds())
	return text, nil
}

// withTempFile writes data into a private temp dir, runs fn on the file path and
// removes the dir on every exit path.
func withTempFile(parent string, data []byte, fn func(path string) error) error {
	dir, err := os.MkdirTemp(parent, "cvx-text-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			slog.Warn("failed to remove temp dir", "path", dir, "error", rmErr)
		}
	}()

	path := filepath.Join(dir, "document.pdf")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	return fn(path)
}
