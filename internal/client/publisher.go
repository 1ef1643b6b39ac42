package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// PublishResponse is the publish endpoint's reply
type PublishResponse struct {
	Success bool   `json:"success"`
	PostID  string `json:"postId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HTTPPublisher posts to module publish endpoints with the shared secret
type HTTPPublisher struct {
	httpClient *http.Client
	authToken  string
}

func NewHTTPPublisher(authToken string, timeout time.Duration) *HTTPPublisher {
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &HTTPPublisher{
		httpClient: &http.Client{Timeout: timeout},
		authToken:  authToken,
	}
}

// Publish sends {...payload, mediaUrl, caption, accountRef, userId, isVideo, authToken}.
// A non-2xx status or success=false is an error.
func (p *HTTPPublisher) Publish(ctx context.Context, target string, req *PublishRequest) (string, error) {
	body := make(map[string]string, len(req.Payload)+6)
	for k, v := range req.Payload {
		body[k] = v
	}
	body["mediaUrl"] = req.MediaURL
	body["caption"] = req.Caption
	body["accountRef"] = req.AccountRef
	body["userId"] = req.UserID
	body["isVideo"] = strconv.FormatBool(req.IsVideo)
	body["authToken"] = p.authToken

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var result PublishResponse
	_ = json.Unmarshal(respBody, &result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if result.Error != "" {
			return "", fmt.Errorf("publish endpoint error (status %d): %s", resp.StatusCode, result.Error)
		}
		return "", fmt.Errorf("publish endpoint error (status %d): %s", resp.StatusCode, string(respBody))
	}
	if !result.Success {
		if result.Error == "" {
			result.Error = "publish endpoint reported failure"
		}
		return "", fmt.Errorf("%s", result.Error)
	}
	return result.PostID, nil
}
