// Package pipeline runs one document end to end: credit gate, concurrent
// signal extraction, mode selection, inference, normalization and the ledger
// commit.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/entity"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/extract"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/ledger"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/mode"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/normalize"
)

type TextSource interface {
	ExtractText(ctx context.Context, doc extract.Document) (string, error)
}

type ImageSource interface {
	ExtractImages(ctx context.Context, doc extract.Document) ([]extract.RasterImage, int, error)
}

type Rasterizer interface {
	Rasterize(ctx context.Context, doc extract.Document, pageCount int) ([]extract.RasterImage, error)
}

type Inferencer interface {
	Invoke(ctx context.Context, d mode.Decision, text string, images []extract.RasterImage) (*entity.StructuredResult, error)
	ModelFor(t mode.Tier) string
}

type Config struct {
	Thresholds     mode.Thresholds
	MaxUploadBytes int64
	MaxImages      int // default 3
}

// Request is one uploaded document on behalf of a principal.
type Request struct {
	PrincipalID string
	FileName    string
	Data        []byte
}

// Outcome is returned only for completed jobs.
type Outcome struct {
	Job        *entity.Job
	Decision   mode.Decision
	Model      string
	Result     entity.StructuredResult
	TextLen    int
	ImageCount int
}

// Processor coordinates extraction, inference and the job ledger.
type Processor struct {
	Logger  *slog.Logger
	Cfg     Config
	Text    TextSource
	Images  ImageSource
	Raster  Rasterizer
	Infer   Inferencer
	Checker *normalize.Checker
	Ledger  *ledger.Ledger
}

func NewProcessor(logger *slog.Logger, cfg Config, text TextSource, images ImageSource, raster Rasterizer, infer Inferencer, l *ledger.Ledger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Thresholds == (mode.Thresholds{}) {
		cfg.Thresholds = mode.DefaultThresholds()
	}
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = 3
	}
	return &Processor{
		Logger:  logger,
		Cfg:     cfg,
		Text:    text,
		Images:  images,
		Raster:  raster,
		Infer:   infer,
		Checker: normalize.NewChecker(cfg.Thresholds, logger),
		Ledger:  l,
	}
}

// Process runs the full pipeline. On any error after the credit gate the job is
// marked failed and the original error is returned; no partial result escapes.
func (p *Processor) Process(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()
	if err := common.ValidateUpload(req.PrincipalID, req.FileName, req.Data, p.Cfg.MaxUploadBytes); err != nil {
		return nil, err
	}

	job, err := p.Ledger.Begin(ctx, req.PrincipalID, req.FileName, int64(len(req.Data)))
	if err != nil {
		return nil, err
	}
	log := p.Logger.With("job_id", job.ID, "file", req.FileName)
	log.Info("pipeline.start", "bytes", len(req.Data))

	out, err := p.run(ctx, log, job, extract.NewDocument(req.FileName, req.Data))
	if err != nil {
		log.Error("pipeline.failed", "kind", common.KindOf(err), "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		p.Ledger.Fail(failCtx, job, err)
		return nil, err
	}

	log.Info("pipeline.ok",
		"mode", out.Decision.Mode,
		"model", out.Model,
		"text_len", out.TextLen,
		"images", out.ImageCount,
		"elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

func (p *Processor) run(ctx context.Context, log *slog.Logger, job *entity.Job, doc extract.Document) (*Outcome, error) {
	sig, err := p.gather(ctx, log, doc)
	if err != nil {
		return nil, err
	}

	decision, err := p.decide(sig)
	if err != nil {
		return nil, err
	}
	log.Info("pipeline.mode", "mode", decision.Mode, "tier", decision.Tier,
		"text_len", sig.textLen, "images", len(sig.images))

	images := sig.images
	if len(images) > p.Cfg.MaxImages {
		images = images[:p.Cfg.MaxImages]
	}
	res, err := p.Infer.Invoke(ctx, decision, sig.text, images)
	if err != nil {
		return nil, err
	}

	result := normalize.Normalize(*res)
	if err := p.Checker.Check(decision.Mode, sig.textLen, result); err != nil {
		return nil, err
	}

	model := p.Infer.ModelFor(decision.Tier)
	if err := p.Ledger.Complete(ctx, job, string(decision.Mode), model, result); err != nil {
		return nil, err
	}
	return &Outcome{
		Job:        job,
		Decision:   decision,
		Model:      model,
		Result:     result,
		TextLen:    sig.textLen,
		ImageCount: len(images),
	}, nil
}

// decide selects the mode. When the signal is unusable, a remembered
// MissingCapability or Timeout replaces the generic Unprocessable.
func (p *Processor) decide(sig signal) (mode.Decision, error) {
	decision, err := mode.Select(sig.textLen, len(sig.images), p.Cfg.Thresholds)
	if err == nil {
		return decision, nil
	}
	for _, cause := range []error{sig.rasterErr, sig.textErr} {
		if common.IsKind(cause, common.KindMissingCapability) || common.IsKind(cause, common.KindTimeout) {
			return decision, cause
		}
	}
	return decision, err
}

// ProbeResult is the outcome of a dry run.
type ProbeResult struct {
	TextLen    int
	ImagePages []int
	Decision   mode.Decision
	// Err is the selection failure, if any. Probe itself still succeeds.
	Err error
}

// Probe gathers the document signals and selects a mode without inference
// and without touching the ledger.
func (p *Processor) Probe(ctx context.Context, fileName string, data []byte) (*ProbeResult, error) {
	err := common.NewValidator().
		Field("fileName", fileName, common.Required, common.MaxLength(255)).
		Field("file", data, common.Required, common.PDFDocument(p.Cfg.MaxUploadBytes)).
		Err()
	if err != nil {
		return nil, err
	}

	log := p.Logger.With("file", fileName, "probe", true)
	sig, err := p.gather(ctx, log, extract.NewDocument(fileName, data))
	if err != nil {
		return nil, err
	}
	out := &ProbeResult{TextLen: sig.textLen}
	for _, img := range sig.images {
		out.ImagePages = append(out.ImagePages, img.PageIndex)
	}
	out.Decision, out.Err = p.decide(sig)
	return out, nil
}

type signal struct {
	text      string
	textLen   int
	images    []extract.RasterImage
	textErr   error
	rasterErr error
}

// gather runs the text and image paths concurrently. Extractor failures
// degrade the signal and are remembered; only cancellation of ctx aborts.
func (p *Processor) gather(ctx context.Context, log *slog.Logger, doc extract.Document) (signal, error) {
	var s signal
	textDone := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(textDone)
		text, err := p.Text.ExtractText(gctx, doc)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("pipeline.text_degraded", "kind", common.KindOf(err), "error", err)
			s.textErr = err
			return nil
		}
		s.text = text
		s.textLen = utf8.RuneCountInString(text)
		return nil
	})

	g.Go(func() error {
		images, pages, err := p.Images.ExtractImages(gctx, doc)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("pipeline.images_degraded", "error", err)
		}
		if len(images) > 0 {
			s.images = images
			return nil
		}

		select {
		case <-textDone:
		case <-gctx.Done():
			return gctx.Err()
		}
		if p.Cfg.Thresholds.Abundant(s.textLen) {
			return nil
		}
		if p.Raster == nil {
			s.rasterErr = common.NewAppError(common.KindMissingCapability,
				"rasterization not configured", common.ErrCapabilityAbsent)
			return nil
		}

		rendered, err := p.Raster.Rasterize(gctx, doc, pages)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("pipeline.raster_degraded", "kind", common.KindOf(err), "error", err)
			s.rasterErr = err
			return nil
		}
		s.images = rendered
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return s, common.NewAppError(common.KindTimeout, "document processing deadline exceeded", err)
		}
		return s, err
	}
	return s, nil
}
