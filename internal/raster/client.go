package raster

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
)

// ClientConfig configures the page conversion API.
type ClientConfig struct {
	APIKey    string
	BaseURL   string        // default https://api.pdf.co/v1
	Timeout   time.Duration // http client timeout
	MaxBase64 int           // download ceiling, encoded characters
}

// Client talks to a JSON page-to-image conversion API authenticated by x-api-key.
// It serves as Uploader, Converter and Downloader.
type Client struct {
	cfg    ClientConfig
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, common.NewAppError(common.KindMissingCapability, "RASTER_API_KEY is not set", common.ErrCapabilityAbsent)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.pdf.co/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 40 * time.Second
	}
	if cfg.MaxBase64 <= 0 {
		cfg.MaxBase64 = 4_000_000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

type apiStatus struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type uploadResponse struct {
	apiStatus
	URL string `json:"url"`
}

type convertResponse struct {
	apiStatus
	URLs []string `json:"urls"`
}

func (c *Client) headers() map[string]string {
	return map[string]string{"x-api-key": c.cfg.APIKey}
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

// Upload sends the document as base64 and returns the hosted URL.
func (c *Client) Upload(ctx context.Context, name string, data []byte) (string, error) {
	body := map[string]any{
		"name": name,
		"file": base64.StdEncoding.EncodeToString(data),
	}
	raw, status, err := common.SendJSON(ctx, c.http, c.endpoint("/file/upload/base64"), body, c.headers(), c.logger)
	if err != nil {
		return "", fmt.Errorf("upload (status %d): %w", status, err)
	}
	var resp uploadResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if resp.Error || resp.URL == "" {
		return "", fmt.Errorf("upload rejected: %s", resp.Message)
	}
	return resp.URL, nil
}

// Convert renders pages of the referenced PDF to PNG and returns the image URLs in page order.
func (c *Client) Convert(ctx context.Context, ref string, pages PageRange) ([]string, error) {
	body := map[string]any{
		"url":   ref,
		"pages": pages.String(),
		"async": false,
	}
	raw, status, err := common.SendJSON(ctx, c.http, c.endpoint("/pdf/convert/to/png"), body, c.headers(), c.logger)
	if err != nil {
		return nil, fmt.Errorf("convert (status %d): %w", status, err)
	}
	var resp convertResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode convert response: %w", err)
	}
	if resp.Error {
		return nil, fmt.Errorf("convert rejected: %s", resp.Message)
	}
	if len(resp.URLs) == 0 {
		return nil, errors.New("convert returned no urls")
	}
	return resp.URLs, nil
}

// Download fetches one rendered page, refusing bodies whose encoding would exceed the ceiling.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	limit := int64(c.cfg.MaxBase64) / 4 * 3
	return common.GetBytes(ctx, c.http, url, limit)
}
