package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/config"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
)

// GroqClient generates captions through the Groq chat completion API
type GroqClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// ChatMessage represents a message in the chat completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// ChatCompletionRequest represents the request body for chat completion
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// ChatCompletionResponse represents the response from chat completion
type ChatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type generatedJSON struct {
	Text         string `json:"text"`
	VisualPrompt string `json:"visualPrompt"`
}

func NewGroqClient(cfg *config.GroqConfig, log zerolog.Logger) *GroqClient {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &GroqClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		log:        log,
	}
}

func (c *GroqClient) Generate(ctx context.Context, req *GenerateRequest) (*model.GeneratedContent, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	temperature := 0.8
	if req.ForceUnique {
		temperature = 1.0
	}
	reqBody := ChatCompletionRequest{
		Model: c.model,
		Messages: []ChatMessage{
			{Role: "system", Content: systemPrompt(req)},
			{Role: "user", Content: userPrompt(req)},
		},
		Temperature:    temperature,
		MaxTokens:      600,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	content, err := c.chat(ctx, &reqBody)
	if err != nil {
		return nil, err
	}
	return parseGenerated(content)
}

func (c *GroqClient) chat(ctx context.Context, body *ChatCompletionRequest) (string, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	c.log.Debug().Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("groq chat completion")

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("groq API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return chatResp.Choices[0].Message.Content, nil
}

// parseGenerated accepts the JSON object the prompt asks for, or plain text
func parseGenerated(content string) (*model.GeneratedContent, error) {
	content = strings.TrimSpace(content)
	var g generatedJSON
	if err := json.Unmarshal([]byte(content), &g); err == nil && strings.TrimSpace(g.Text) != "" {
		if g.VisualPrompt == "" {
			g.VisualPrompt = g.Text
		}
		return &model.GeneratedContent{Text: strings.TrimSpace(g.Text), VisualPrompt: strings.TrimSpace(g.VisualPrompt)}, nil
	}
	if content == "" {
		return nil, fmt.Errorf("empty generation")
	}
	return &model.GeneratedContent{Text: content, VisualPrompt: content}, nil
}

func systemPrompt(req *GenerateRequest) string {
	kind := "an Instagram image post"
	if req.ContentType.IsVideo() {
		kind = "a short Instagram reel"
	}
	return fmt.Sprintf(`You write captions for %s.
Reply with a JSON object {"text": "...", "visualPrompt": "..."}.
"text" is the caption, under 300 characters, no hashtags.
"visualPrompt" describes the visual for an image or video model.`, kind)
}

func userPrompt(req *GenerateRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Module: %s\n", req.ModuleID)

	keys := make([]string, 0, len(req.Payload))
	for k := range req.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := req.Payload[k]; v != "" {
			fmt.Fprintf(&b, "%s: %s\n", k, v)
		}
	}

	if len(req.Exclusions) > 0 {
		b.WriteString("\nDo not repeat or paraphrase any of these earlier captions:\n")
		for _, e := range req.Exclusions {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	if req.ForceUnique {
		fmt.Fprintf(&b, "\nThe previous attempt was too similar to an earlier caption. Write something entirely new. (variation %s)\n", req.Nonce)
	}
	return b.String()
}

// IsConfigured returns true if the client has valid configuration
func (c *GroqClient) IsConfigured() bool {
	return c.apiKey != ""
}

// MockGenerator is used when no Groq key is configured
type MockGenerator struct{}

func (MockGenerator) Generate(_ context.Context, req *GenerateRequest) (*model.GeneratedContent, error) {
	subject := req.Payload["topic"]
	if subject == "" {
		subject = req.Payload["category"]
	}
	if subject == "" {
		subject = req.ModuleID
	}
	tag := uuid.NewString()[:8]
	text := fmt.Sprintf("A fresh take on %s, entry %s", subject, tag)
	return &model.GeneratedContent{
		Text:         text,
		VisualPrompt: fmt.Sprintf("minimal poster about %s, soft light", subject),
	}, nil
}
