// Package mode decides which signal the inference step consumes and which model tier serves it.
package mode

import (
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
)

// Mode is the extraction mode, derived per request and never persisted.
type Mode string

const (
	TextOnly  Mode = "TEXT_ONLY"
	ImageOnly Mode = "IMAGE_ONLY"
	Hybrid    Mode = "HYBRID"
)

// Tier selects between the cheaper text model and the vision-capable model.
type Tier string

const (
	TierLow  Tier = "low"
	TierHigh Tier = "high"
)

// Thresholds are the text-length cut-offs, in characters.
type Thresholds struct {
	// Below MinText the text alone is not a usable signal.
	MinText int
	// At or above AbundantText the raster fallback is skipped.
	AbundantText int
}

// DefaultThresholds returns the 50/100 character defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{MinText: 50, AbundantText: 100}
}

// Decision is the selector output.
type Decision struct {
	Mode Mode
	Tier Tier
}

// UsesText reports whether the inference request carries text.
func (d Decision) UsesText() bool { return d.Mode == TextOnly || d.Mode == Hybrid }

// UsesImages reports whether the inference request carries images.
func (d Decision) UsesImages() bool { return d.Mode == ImageOnly || d.Mode == Hybrid }

// Abundant reports whether textLen lets the pipeline skip image work.
func (t Thresholds) Abundant(textLen int) bool {
	return textLen >= t.AbundantText
}

// Select is a pure function of (textLen, imageCount).
func Select(textLen, imageCount int, t Thresholds) (Decision, error) {
	switch {
	case textLen >= t.MinText && imageCount > 0:
		return Decision{Mode: Hybrid, Tier: TierLow}, nil
	case textLen >= t.MinText:
		return Decision{Mode: TextOnly, Tier: TierLow}, nil
	case imageCount > 0:
		return Decision{Mode: ImageOnly, Tier: TierHigh}, nil
	default:
		return Decision{}, common.Errorf(common.KindUnprocessable,
			"no usable signal: text length %d below %d and no images", textLen, t.MinText)
	}
}
