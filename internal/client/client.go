// Package client holds the adapters for the remote collaborators of the
// pipeline: text generation, media rendering, durable storage and publishing.
package client

import (
	"context"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
)

// Generator produces caption text and a visual prompt for one item
type Generator interface {
	Generate(ctx context.Context, req *GenerateRequest) (*model.GeneratedContent, error)
}

// Renderer turns a visual prompt into media bytes or a remote URL
type Renderer interface {
	Render(ctx context.Context, prompt string, contentType model.ContentType) (*Media, error)
}

// MediaStore persists rendered media and returns a durable public URL
type MediaStore interface {
	Store(ctx context.Context, media *Media, scopePath string) (string, error)
}

// Publisher hands finished content to a module's publish endpoint
type Publisher interface {
	Publish(ctx context.Context, target string, req *PublishRequest) (string, error)
}

// SocialPoster posts media to the external social account
type SocialPoster interface {
	Post(ctx context.Context, req *PostRequest) (string, error)
}

// GenerateRequest carries the module context for one generation call
type GenerateRequest struct {
	ModuleID    string
	ContentType model.ContentType
	Payload     map[string]string
	// Exclusions are recent texts the output must not repeat
	Exclusions []string
	// ForceUnique asks for output clearly different from Exclusions; Nonce varies the prompt
	ForceUnique bool
	Nonce       string
}

// Media is either inline bytes or a remote URL the renderer produced
type Media struct {
	Data     []byte
	URL      string
	MimeType string
	Kind     model.ContentType
}

// PublishRequest is the body sent to a module's publish endpoint
type PublishRequest struct {
	Payload    map[string]string
	UserID     string
	AccountRef string
	MediaURL   string
	Caption    string
	IsVideo    bool
}

// PostRequest is what a SocialPoster needs to post
type PostRequest struct {
	AccountRef string
	MediaURL   string
	Caption    string
	IsVideo    bool
}
