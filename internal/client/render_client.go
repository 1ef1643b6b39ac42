package client

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/config"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
)

// RenderClient calls the image/video render microservice
type RenderClient struct {
	httpClient *http.Client
	baseURL    string
}

type renderRequest struct {
	Prompt string `json:"prompt"`
	Type   string `json:"type"`
}

type renderResponse struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

func NewRenderClient(cfg *config.RenderConfig) *RenderClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &RenderClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.ServiceURL, "/"),
	}
}

func (c *RenderClient) Render(ctx context.Context, prompt string, contentType model.ContentType) (*Media, error) {
	var result renderResponse
	if err := c.post(ctx, "/render", &renderRequest{Prompt: prompt, Type: string(contentType)}, &result); err != nil {
		return nil, err
	}
	if result.URL == "" {
		return nil, fmt.Errorf("render service returned no media")
	}
	if result.MimeType == "" {
		result.MimeType = defaultMime(contentType)
	}
	return &Media{URL: result.URL, MimeType: result.MimeType, Kind: contentType}, nil
}

// HealthCheck checks if the render service is available
func (c *RenderClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("render service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *RenderClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("render service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *RenderClient) IsConfigured() bool {
	return c.baseURL != ""
}

func defaultMime(contentType model.ContentType) string {
	if contentType.IsVideo() {
		return "video/mp4"
	}
	return "image/png"
}

// MockRenderer returns stable placeholder media derived from the prompt
type MockRenderer struct{}

func (MockRenderer) Render(_ context.Context, prompt string, contentType model.ContentType) (*Media, error) {
	sum := sha1.Sum([]byte(prompt))
	seed := hex.EncodeToString(sum[:6])
	url := fmt.Sprintf("https://picsum.photos/seed/%s/1080/1080", seed)
	if contentType.IsVideo() {
		url = "https://samplelib.com/lib/preview/mp4/sample-5s.mp4"
	}
	return &Media{URL: url, MimeType: defaultMime(contentType), Kind: contentType}, nil
}
