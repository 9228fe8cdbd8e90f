package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/entity"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/extract"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/mode"
)

// Models maps inference tiers to provider model names.
type Models struct {
	Low  string
	High string
}

type InvokerConfig struct {
	Models       Models
	Temperature  float32
	MaxImages    int // default 3
	MaxTextChars int // default 24000
}

// Invoker builds the extraction request for a mode and parses the reply into a StructuredResult.
type Invoker struct {
	client    Client
	cfg       InvokerConfig
	validator *SchemaValidator
	logger    *slog.Logger
}

func NewInvoker(client Client, cfg InvokerConfig, logger *slog.Logger) (*Invoker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = 3
	}
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = 24000
	}
	if cfg.Models.High == "" {
		cfg.Models.High = cfg.Models.Low
	}
	validator, err := NewSchemaValidator(BuildResultJSONSchema())
	if err != nil {
		return nil, fmt.Errorf("result schema: %w", err)
	}
	return &Invoker{client: client, cfg: cfg, validator: validator, logger: logger}, nil
}

// ModelFor returns the model name serving a tier.
func (i *Invoker) ModelFor(t mode.Tier) string {
	if t == mode.TierHigh {
		return i.cfg.Models.High
	}
	return i.cfg.Models.Low
}

// BuildRequest assembles the system instruction and the single user turn for a decision.
func (i *Invoker) BuildRequest(d mode.Decision, text string, images []extract.RasterImage) CompletionRequest {
	var userText string
	if d.UsesText() {
		userText = text
	}
	var attach []Image
	if d.UsesImages() {
		for _, img := range images {
			if len(attach) == i.cfg.MaxImages {
				break
			}
			attach = append(attach, Image{MIMEType: img.MIMEType, Data: img.Data})
		}
	}
	return CompletionRequest{
		Model:       i.ModelFor(d.Tier),
		Temperature: i.cfg.Temperature,
		JSON:        true,
		Messages: []Message{
			{Role: RoleSystem, Text: SystemInstruction},
			{Role: RoleUser, Text: BuildUserPrompt(userText, len(attach) > 0, i.cfg.MaxTextChars), Images: attach},
		},
	}
}

// Invoke runs one inference call. It fails with InferenceEmpty on an empty or
// placeholder reply and InferenceMalformed when the reply cannot take the result shape.
func (i *Invoker) Invoke(ctx context.Context, d mode.Decision, text string, images []extract.RasterImage) (*entity.StructuredResult, error) {
	rid := uuid.New().String()
	start := time.Now()
	req := i.BuildRequest(d, text, images)

	i.logger.Info("llm.invoke.start",
		"req_id", rid,
		"mode", d.Mode,
		"tier", d.Tier,
		"model", req.Model,
		"text_len", len(text),
		"images", len(req.Messages[1].Images),
	)

	content, err := i.client.Complete(ctx, req)
	if err != nil {
		i.logger.Error("llm.invoke.call_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("inference call: %w", err)
	}

	result, err := i.Parse(content)
	if err != nil {
		i.logger.Error("llm.invoke.parse_error", "req_id", rid, "kind", common.KindOf(err), "error", err,
			"content_bytes", len(content), "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	i.logger.Info("llm.invoke.ok",
		"req_id", rid,
		"work_experiences", len(result.WorkExperiences),
		"educations", len(result.Educations),
		"skills", len(result.Skills),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// Parse turns raw model output into a StructuredResult.
func (i *Invoker) Parse(content string) (*entity.StructuredResult, error) {
	if IsPlaceholder(content) {
		return nil, common.Errorf(common.KindInferenceEmpty, "inference returned an empty payload")
	}
	obj, ok := ExtractJSONObject(content)
	if !ok {
		return nil, common.Errorf(common.KindInferenceMalformed, "no JSON object in inference output")
	}

	var top map[string]any
	if err := json.Unmarshal([]byte(obj), &top); err != nil {
		return nil, common.NewAppError(common.KindInferenceMalformed, "inference output is not valid JSON", err)
	}
	if len(top) == 0 {
		return nil, common.Errorf(common.KindInferenceEmpty, "inference returned an empty object")
	}
	if !hasAnyKey(top, entity.TopLevelKeys) {
		return nil, common.Errorf(common.KindInferenceMalformed, "inference output has none of the result keys")
	}

	raw := []byte(obj)
	if err := i.validator.Validate(raw); err != nil {
		cleaned, changed, sErr := SanitizeResult(raw)
		if sErr != nil {
			return nil, common.NewAppError(common.KindInferenceMalformed, "sanitize failed", sErr)
		}
		if vErr := i.validator.Validate(cleaned); vErr != nil {
			return nil, common.NewAppError(common.KindInferenceMalformed, "schema validation failed", vErr)
		}
		i.logger.Warn("llm.invoke.lenient_sanitize_applied", "changed", changed)
		raw = cleaned
	}

	result := entity.NewStructuredResult()
	if err := json.Unmarshal(raw, result); err != nil {
		return nil, common.NewAppError(common.KindInferenceMalformed, "unmarshal result", err)
	}
	result.EnsureShape()
	return result, nil
}

func hasAnyKey(m map[string]any, keys []string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}
