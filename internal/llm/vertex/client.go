package vertex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/google/uuid"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/llm"
)

type Config struct {
	Project  string
	Location string // default us-central1
	Timeout  time.Duration
}

// Client serves llm.Client through Vertex AI Gemini models.
type Client struct {
	cfg    Config
	genai  *genai.Client
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Project == "" {
		return nil, common.Errorf(common.KindInternal, "vertex client configured without VERTEX_PROJECT")
	}
	if cfg.Location == "" {
		cfg.Location = "us-central1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	gc, err := genai.NewClient(ctx, cfg.Project, cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("vertex client: %w", err)
	}
	return &Client{cfg: cfg, genai: gc, logger: logger}, nil
}

func (c *Client) Close() error {
	return c.genai.Close()
}

func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	model := c.genai.GenerativeModel(req.Model)
	model.Temperature = genai.Ptr(req.Temperature)
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	system, parts := splitMessages(req.Messages)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	c.logger.Info("llm.complete.start", "req_id", rid, "provider", "vertex", "model", req.Model, "parts", len(parts))

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		c.logger.Error("llm.complete.error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		if errors.Is(err, context.DeadlineExceeded) {
			return "", common.NewAppError(common.KindTimeout, "inference request timed out", err)
		}
		return "", fmt.Errorf("vertex generate: %w", err)
	}

	var sb strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, p := range resp.Candidates[0].Content.Parts {
			if t, ok := p.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}

	c.logger.Info("llm.complete.ok", "req_id", rid, "content_bytes", sb.Len(),
		"elapsed_ms", time.Since(start).Milliseconds())
	return sb.String(), nil
}

// splitMessages folds system turns into one instruction and flattens user turns into parts.
func splitMessages(msgs []llm.Message) (string, []genai.Part) {
	var system []string
	var parts []genai.Part
	for _, m := range msgs {
		if m.Role == llm.RoleSystem {
			system = append(system, m.Text)
			continue
		}
		if strings.TrimSpace(m.Text) != "" {
			parts = append(parts, genai.Text(m.Text))
		}
		for _, img := range m.Images {
			parts = append(parts, genai.ImageData(imageFormat(img.MIMEType), img.Data))
		}
	}
	return strings.Join(system, "\n\n"), parts
}

func imageFormat(mimeType string) string {
	if f, ok := strings.CutPrefix(mimeType, "image/"); ok && f != "" {
		return f
	}
	return "jpeg"
}
