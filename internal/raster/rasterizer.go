// Package raster converts PDF pages to images through an external conversion capability.
package raster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/extract"
)

// PageRange is a 0-indexed inclusive page range.
type PageRange struct {
	First int
	Last  int
}

func (r PageRange) String() string {
	return fmt.Sprintf("%d-%d", r.First, r.Last)
}

// Uploader stores the raw document and returns a reference the converter can fetch.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) (ref string, err error)
}

// Converter renders the referenced document's pages and returns one image URL per page.
type Converter interface {
	Convert(ctx context.Context, ref string, pages PageRange) (urls []string, err error)
}

// Downloader fetches one rendered page.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

type Config struct {
	MaxPages  int // default 3
	MaxBase64 int // default 4,000,000
}

// Rasterizer is the fallback used when a document carries no embedded images.
// A nil Rasterizer, or one without an uploader or converter, reports MissingCapability.
type Rasterizer struct {
	uploader   Uploader
	converter  Converter
	downloader Downloader
	cfg        Config
	logger     *slog.Logger
}

func New(up Uploader, conv Converter, dl Downloader, cfg Config, logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 3
	}
	if cfg.MaxBase64 <= 0 {
		cfg.MaxBase64 = 4_000_000
	}
	return &Rasterizer{uploader: up, converter: conv, downloader: dl, cfg: cfg, logger: logger}
}

// Enabled reports whether the conversion capability is configured.
func (r *Rasterizer) Enabled() bool {
	return r != nil && r.uploader != nil && r.converter != nil && r.downloader != nil
}

// Rasterize uploads the document, converts the first min(pageCount, MaxPages) pages
// and downloads the results concurrently. Failed or oversized pages are dropped;
// the call fails only when no page survives.
func (r *Rasterizer) Rasterize(ctx context.Context, doc extract.Document, pageCount int) ([]extract.RasterImage, error) {
	if !r.Enabled() {
		return nil, common.NewAppError(common.KindMissingCapability,
			"rasterization credential not configured", common.ErrCapabilityAbsent)
	}
	start := time.Now()

	pages := min(max(pageCount, 1), r.cfg.MaxPages)
	ref, err := r.uploader.Upload(ctx, doc.FileName, doc.Data)
	if err != nil {
		return nil, fmt.Errorf("raster upload: %w", err)
	}

	rng := PageRange{First: 0, Last: pages - 1}
	urls, err := r.converter.Convert(ctx, ref, rng)
	if err != nil {
		return nil, fmt.Errorf("raster convert %s: %w", rng, err)
	}
	if len(urls) > pages {
		urls = urls[:pages]
	}

	results := make([]*extract.RasterImage, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		g.Go(func() error {
			data, err := r.downloader.Download(gctx, u)
			if err != nil {
				r.logger.Warn("raster.download_failed", "file", doc.FileName, "page", i, "error", err)
				return nil
			}
			if extract.EncodedLen(len(data)) > r.cfg.MaxBase64 {
				r.logger.Warn("raster.page_too_large", "file", doc.FileName, "page", i, "bytes", len(data))
				return nil
			}
			results[i] = &extract.RasterImage{Data: data, MIMEType: extract.SniffImageType(data), PageIndex: i}
			return nil
		})
	}
	_ = g.Wait()

	images := make([]extract.RasterImage, 0, len(results))
	for _, img := range results {
		if img != nil {
			images = append(images, *img)
		}
	}

	r.logger.Info("raster.done",
		"file", doc.FileName,
		"pages", rng.String(),
		"urls", len(urls),
		"images", len(images),
		"elapsed_ms", time.Since(start).Milliseconds())

	if len(images) == 0 {
		return nil, fmt.Errorf("rasterization produced no usable images for %d page(s)", len(urls))
	}
	return images, nil
}
