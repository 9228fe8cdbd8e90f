// Package app assembles the ledger store, extractors, inference provider and
// pipeline from a loaded configuration.
package app

import (
	"context"
	"errors"
	"log/slog"

	"cloud.google.com/go/storage"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/extract"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/ledger"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/llm"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/llm/openai"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/llm/vertex"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/mode"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/pipeline"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/raster"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/repository"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/repository/firestore"
)

// App owns every long-lived dependency. Close releases them in reverse order.
type App struct {
	Cfg       *common.Config
	Logger    *slog.Logger
	Store     ledger.Store
	Ledger    *ledger.Ledger
	Processor *pipeline.Processor

	closers []func() error
}

// Options trims what New builds.
type Options struct {
	// SkipInference leaves Processor.Infer nil; only Probe is usable.
	SkipInference bool
}

// OpenStore connects the configured ledger store. SQL stores are migrated.
func OpenStore(ctx context.Context, cfg *common.Config, logger *slog.Logger) (ledger.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db := cfg.Database
	switch db.Driver {
	case "memory":
		logger.Warn("app.store.memory", "note", "ledger is not persisted")
		return ledger.NewMemoryStore(), nil
	case "firestore":
		store, err := firestore.New(ctx, db.FirestoreProject, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres", "sqlite":
		drv, err := repository.Open(ctx, repository.Config{
			Driver:           db.Driver,
			DSN:              db.DSN,
			SQLitePath:       db.SQLitePath,
			MaxConns:         db.MaxConns,
			MinConns:         db.MinConns,
			MaxConnLifetime:  db.MaxConnLifetime,
			MaxConnIdleTime:  db.MaxConnIdleTime,
			DialTimeout:      db.DialTimeout,
			StatementTimeout: db.StatementTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		store := repository.NewLedger(drv, logger)
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, common.WrapError(err, "migrate")
		}
		return store, nil
	default:
		return nil, common.Errorf(common.KindInvalidInput, "unknown DB_DRIVER %q", db.Driver)
	}
}

// NewLLMClient builds the configured provider wrapped in the outbound rate limit.
func NewLLMClient(ctx context.Context, cfg *common.Config, logger *slog.Logger) (llm.Client, func() error, error) {
	c := cfg.LLM
	switch c.Provider {
	case "openai":
		client := openai.NewClient(openai.Config{APIKey: c.APIKey, BaseURL: c.BaseURL, Timeout: c.Timeout}, logger)
		return llm.WithRateLimit(client, c.RequestsPerSecond, c.Burst), func() error { return nil }, nil
	case "vertex":
		client, err := vertex.NewClient(ctx, vertex.Config{Project: c.VertexProject, Location: c.VertexLocation, Timeout: c.Timeout}, logger)
		if err != nil {
			return nil, nil, err
		}
		return llm.WithRateLimit(client, c.RequestsPerSecond, c.Burst), client.Close, nil
	default:
		return nil, nil, common.Errorf(common.KindInvalidInput, "unknown LLM_PROVIDER %q", c.Provider)
	}
}

// NewRasterizer returns a disabled rasterizer unless RASTER_API_KEY is set.
func NewRasterizer(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*raster.Rasterizer, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rcfg := raster.Config{MaxPages: cfg.Extraction.MaxPages, MaxBase64: cfg.Extraction.MaxImageBase64}
	noop := func() error { return nil }
	if !cfg.RasterEnabled() {
		logger.Info("app.raster.disabled")
		return raster.New(nil, nil, nil, rcfg, logger), noop, nil
	}

	client, err := raster.NewClient(raster.ClientConfig{
		APIKey:    cfg.Raster.APIKey,
		BaseURL:   cfg.Raster.BaseURL,
		Timeout:   cfg.Raster.Timeout,
		MaxBase64: cfg.Extraction.MaxImageBase64,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Raster.Uploader != "gcs" {
		return raster.New(client, client, client, rcfg, logger), noop, nil
	}
	gcs, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, common.WrapError(err, "gcs client")
	}
	up := raster.NewGCSUploader(gcs, cfg.Raster.GCSBucket, cfg.Raster.URLExpiry, logger)
	return raster.New(up, client, client, rcfg, logger), gcs.Close, nil
}

// New wires a complete App. On error everything opened so far is closed.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts Options) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Cfg: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)
	a.Ledger = ledger.New(store, cfg.Ledger.CreditCost, logger)

	rast, closeRaster, err := NewRasterizer(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeRaster)

	var infer pipeline.Inferencer
	if !opts.SkipInference {
		client, closeClient, err := NewLLMClient(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closeClient)
		inv, err := llm.NewInvoker(client, llm.InvokerConfig{
			Models:      llm.Models{Low: cfg.LLM.ModelLow, High: cfg.LLM.ModelHigh},
			Temperature: cfg.LLM.Temperature,
			MaxImages:   cfg.Extraction.MaxPages,
		}, logger)
		if err != nil {
			return nil, err
		}
		infer = inv
	}

	text := extract.NewTextExtractor(extract.TextConfig{
		Pdftotext: cfg.Extraction.PDFToText,
		Timeout:   cfg.Extraction.TextTimeout,
	}, nil, logger)
	images := extract.NewImageExtractor(extract.NewPDFCPUSource(), extract.ImageConfig{
		MaxPages:  cfg.Extraction.MaxPages,
		MinBytes:  cfg.Extraction.MinImageBytes,
		MaxBase64: cfg.Extraction.MaxImageBase64,
	}, logger)

	a.Processor = pipeline.NewProcessor(logger, pipeline.Config{
		Thresholds: mode.Thresholds{
			MinText:      cfg.Extraction.MinTextChars,
			AbundantText: cfg.Extraction.AbundantTextChars,
		},
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		MaxImages:      cfg.Extraction.MaxPages,
	}, text, images, rast, infer, a.Ledger)

	logger.Info("app.ready",
		"db_driver", cfg.Database.Driver,
		"llm_provider", cfg.LLM.Provider,
		"inference", !opts.SkipInference,
		"raster", cfg.RasterEnabled(),
		"credit_cost", cfg.Ledger.CreditCost)
	return a, nil
}

// Close releases every dependency and joins their errors.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
