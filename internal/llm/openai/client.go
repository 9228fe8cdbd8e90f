package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/llm"
)

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete implements llm.Client against /chat/completions. Images are sent as
// image_url parts carrying data URLs.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	if c.cfg.APIKey == "" {
		return "", common.Errorf(common.KindInternal, "openai client configured without OPENAI_API_KEY")
	}
	rid := uuid.New().String()
	start := time.Now()

	body := map[string]any{
		"model":       req.Model,
		"temperature": req.Temperature,
		"messages":    buildMessages(req.Messages),
	}
	if req.JSON {
		body["response_format"] = map[string]any{"type": "json_object"}
	}

	c.logger.Info("llm.complete.start",
		"req_id", rid,
		"model", req.Model,
		"messages", len(req.Messages),
	)

	raw, status, err := common.SendJSON(ctx, c.http, c.cfg.BaseURL+"/chat/completions", body,
		map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}, c.logger)
	if err != nil {
		c.logger.Error("llm.complete.http_error",
			"req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		if errors.Is(err, context.DeadlineExceeded) {
			return "", common.NewAppError(common.KindTimeout, "inference request timed out", err)
		}
		return "", fmt.Errorf("openai chat completions: %w: %s", err, apiMessage(raw))
	}

	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.complete.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
		)
		return "", common.NewAppError(common.KindInferenceMalformed, "decode openai response", err)
	}
	if len(cc.Choices) == 0 {
		return "", nil
	}

	content := cc.Choices[0].Message.Content
	c.logger.Info("llm.complete.ok",
		"req_id", rid,
		"finish_reason", cc.Choices[0].FinishReason,
		"content_bytes", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func buildMessages(msgs []llm.Message) []map[string]any {
	out := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		if len(m.Images) == 0 {
			out = append(out, map[string]any{"role": string(m.Role), "content": m.Text})
			continue
		}
		parts := make([]map[string]any, 0, len(m.Images)+1)
		if strings.TrimSpace(m.Text) != "" {
			parts = append(parts, map[string]any{"type": "text", "text": m.Text})
		}
		for _, img := range m.Images {
			parts = append(parts, map[string]any{
				"type": "image_url",
				"image_url": map[string]any{
					"url":    "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data),
					"detail": "high",
				},
			})
		}
		out = append(out, map[string]any{"role": string(m.Role), "content": parts})
	}
	return out
}

func apiMessage(raw []byte) string {
	var cc chatResponse
	if json.Unmarshal(raw, &cc) == nil && cc.Error != nil {
		return cc.Error.Message
	}
	if len(raw) > 256 {
		raw = raw[:256]
	}
	return string(raw)
}
