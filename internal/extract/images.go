package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PageSource exposes a PDF's page list and the raster images attached to each
// page's resources.
type PageSource interface {
	PageCount(ctx context.Context, data []byte) (int, error)
	// PageImages returns the image payloads of a 1-based page in object order.
	PageImages(ctx context.Context, data []byte, page int) ([][]byte, error)
}

type ImageConfig struct {
	MaxPages  int // pages scanned from the front; default 3
	MinBytes  int // payloads at or below this are fragments; default 1000
	MaxBase64 int // encoded ceiling per payload; default 4,000,000
}

func (c ImageConfig) withDefaults() ImageConfig {
	if c.MaxPages <= 0 {
		c.MaxPages = 3
	}
	if c.MinBytes <= 0 {
		c.MinBytes = 1000
	}
	if c.MaxBase64 <= 0 {
		c.MaxBase64 = 4_000_000
	}
	return c
}

// ImageExtractor finds embedded raster images on the first pages of a PDF.
type ImageExtractor struct {
	src    PageSource
	cfg    ImageConfig
	logger *slog.Logger
}

func NewImageExtractor(src PageSource, cfg ImageConfig, logger *slog.Logger) *ImageExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageExtractor{src: src, cfg: cfg.withDefaults(), logger: logger}
}

// ExtractImages returns at most one qualifying image per scanned page, ordered by
// page, along with the document's page count. Page-level failures are skipped;
// only a document without pages is an error.
func (e *ImageExtractor) ExtractImages(ctx context.Context, doc Document) ([]RasterImage, int, error) {
	start := time.Now()
	pageCount, err := e.src.PageCount(ctx, doc.Data)
	if err != nil {
		return nil, 0, fmt.Errorf("read page list: %w", err)
	}
	if pageCount <= 0 {
		return nil, 0, fmt.Errorf("document has no pages")
	}

	limit := min(pageCount, e.cfg.MaxPages)
	images := make([]RasterImage, 0, limit)
	for page := 1; page <= limit; page++ {
		if err := ctx.Err(); err != nil {
			return nil, pageCount, err
		}
		payloads, err := e.src.PageImages(ctx, doc.Data, page)
		if err != nil {
			e.logger.Warn("extract.images.page_failed", "file", doc.FileName, "page", page, "error", err)
			continue
		}
		if img, ok := e.firstQualifying(payloads, page-1); ok {
			images = append(images, img)
		}
	}

	e.logger.Info("extract.images.done",
		"file", doc.FileName,
		"pages", pageCount,
		"scanned", limit,
		"images", len(images),
		"elapsed_ms", time.Since(start).Milliseconds())
	return images, pageCount, nil
}

func (e *ImageExtractor) firstQualifying(payloads [][]byte, pageIndex int) (RasterImage, bool) {
	for _, p := range payloads {
		if len(p) <= e.cfg.MinBytes || EncodedLen(len(p)) > e.cfg.MaxBase64 {
			continue
		}
		return RasterImage{Data: p, MIMEType: SniffImageType(p), PageIndex: pageIndex}, true
	}
	return RasterImage{}, false
}
