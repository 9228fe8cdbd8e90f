package normalize

import (
	"log/slog"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/entity"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/mode"
)

// Checker rejects empty results unless the document text was abundant.
type Checker struct {
	thresholds mode.Thresholds
	logger     *slog.Logger
}

func NewChecker(t mode.Thresholds, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{thresholds: t, logger: logger}
}

// Check fails with ExtractionEmpty when r is empty and the signal was thin or
// image-only. With abundant text an empty result is kept and logged.
func (c *Checker) Check(m mode.Mode, textLen int, r entity.StructuredResult) error {
	if !IsEmpty(r) {
		return nil
	}
	if m == mode.ImageOnly || !c.thresholds.Abundant(textLen) {
		return common.Errorf(common.KindExtractionEmpty, "empty result for mode %s with %d text chars", m, textLen)
	}
	c.logger.Warn("normalize.empty_result_kept", "mode", m, "text_len", textLen)
	return nil
}
