package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v4"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/config"
)

// telegramPrefix marks account refs that are Telegram chat IDs
const telegramPrefix = "tg:"

// InstagramClient publishes through the Instagram Graph content publishing API.
// The account ref is the Instagram business user ID.
type InstagramClient struct {
	httpClient   *http.Client
	baseURL      string
	accessToken  string
	pollInterval time.Duration
	maxWait      time.Duration
	log          zerolog.Logger
}

type graphID struct {
	ID string `json:"id"`
}

type containerStatus struct {
	StatusCode string `json:"status_code"`
}

func NewInstagramClient(cfg *config.InstagramConfig, log zerolog.Logger) *InstagramClient {
	return &InstagramClient{
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		accessToken:  cfg.AccessToken,
		pollInterval: 5 * time.Second,
		maxWait:      2 * time.Minute,
		log:          log,
	}
}

// Post creates a media container, waits for video processing and publishes it
func (c *InstagramClient) Post(ctx context.Context, req *PostRequest) (string, error) {
	form := url.Values{}
	form.Set("caption", req.Caption)
	form.Set("access_token", c.accessToken)
	if req.IsVideo {
		form.Set("media_type", "REELS")
		form.Set("video_url", req.MediaURL)
	} else {
		form.Set("image_url", req.MediaURL)
	}

	var container graphID
	if err := c.postForm(ctx, fmt.Sprintf("/%s/media", req.AccountRef), form, &container); err != nil {
		return "", fmt.Errorf("failed to create media container: %w", err)
	}

	if req.IsVideo {
		if err := c.waitReady(ctx, container.ID); err != nil {
			return "", err
		}
	}

	publish := url.Values{}
	publish.Set("creation_id", container.ID)
	publish.Set("access_token", c.accessToken)

	var published graphID
	if err := c.postForm(ctx, fmt.Sprintf("/%s/media_publish", req.AccountRef), publish, &published); err != nil {
		return "", fmt.Errorf("failed to publish media: %w", err)
	}
	return published.ID, nil
}

// waitReady polls a container until Instagram finishes processing it
func (c *InstagramClient) waitReady(ctx context.Context, containerID string) error {
	deadline := time.Now().Add(c.maxWait)
	attempt := 0

	for time.Now().Before(deadline) {
		attempt++
		var status containerStatus
		endpoint := fmt.Sprintf("/%s?fields=status_code&access_token=%s", containerID, url.QueryEscape(c.accessToken))
		if err := c.get(ctx, endpoint, &status); err != nil {
			return err
		}
		c.log.Debug().Int("attempt", attempt).Str("container", containerID).Str("status", status.StatusCode).Msg("instagram container poll")

		switch status.StatusCode {
		case "FINISHED":
			return nil
		case "ERROR", "EXPIRED":
			return fmt.Errorf("instagram container %s: %s", containerID, status.StatusCode)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return fmt.Errorf("instagram container %s not ready after %v", containerID, c.maxWait)
}

func (c *InstagramClient) postForm(ctx context.Context, endpoint string, form url.Values, result *graphID) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if err := c.do(req, result); err != nil {
		return err
	}
	if result.ID == "" {
		return fmt.Errorf("graph API returned no id")
	}
	return nil
}

func (c *InstagramClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, result)
}

func (c *InstagramClient) do(req *http.Request, result interface{}) error {
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
		return fmt.Errorf("graph API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *InstagramClient) IsConfigured() bool {
	return c.accessToken != ""
}

// TelegramClient posts media to a Telegram chat through a bot
type TelegramClient struct {
	bot *tele.Bot
}

func NewTelegramClient(cfg *config.TelegramConfig) (*TelegramClient, error) {
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, fmt.Errorf("telegram token is empty")
	}
	// Offline skips getMe; the bot only sends
	b, err := tele.NewBot(tele.Settings{Token: cfg.BotToken, Offline: true})
	if err != nil {
		return nil, err
	}
	return &TelegramClient{bot: b}, nil
}

// Post sends to the chat ID encoded in the account ref as "tg:<chatID>"
func (c *TelegramClient) Post(_ context.Context, req *PostRequest) (string, error) {
	chatID, err := strconv.ParseInt(strings.TrimPrefix(req.AccountRef, telegramPrefix), 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid telegram chat %q: %w", req.AccountRef, err)
	}

	var what interface{}
	if req.IsVideo {
		what = &tele.Video{File: tele.FromURL(req.MediaURL), Caption: req.Caption}
	} else {
		what = &tele.Photo{File: tele.FromURL(req.MediaURL), Caption: req.Caption}
	}

	msg, err := c.bot.Send(tele.ChatID(chatID), what)
	if err != nil {
		return "", fmt.Errorf("telegram send failed: %w", err)
	}
	return strconv.Itoa(msg.ID), nil
}

// PosterRouter picks the poster for an account ref
type PosterRouter struct {
	Instagram SocialPoster
	Telegram  SocialPoster
}

func (r *PosterRouter) Post(ctx context.Context, req *PostRequest) (string, error) {
	if strings.HasPrefix(req.AccountRef, telegramPrefix) {
		if r.Telegram == nil {
			return "", fmt.Errorf("telegram posting is not configured")
		}
		return r.Telegram.Post(ctx, req)
	}
	if r.Instagram == nil {
		return "", fmt.Errorf("instagram posting is not configured")
	}
	return r.Instagram.Post(ctx, req)
}

// MockPoster pretends to post and returns a fake media ID
type MockPoster struct{}

func (MockPoster) Post(_ context.Context, req *PostRequest) (string, error) {
	if req.MediaURL == "" {
		return "", fmt.Errorf("media URL is required")
	}
	return "mock_" + uuid.NewString()[:12], nil
}
