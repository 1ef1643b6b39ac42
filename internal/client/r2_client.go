package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/config"
)

// maxFetchBytes caps remote media pulled into the bucket
const maxFetchBytes = 200 << 20

// R2Client stores rendered media in Cloudflare R2
type R2Client struct {
	s3Client   *s3.Client
	httpClient *http.Client
	bucketName string
	publicURL  string
	maxFetch   int64
}

func NewR2Client(cfg *config.R2Config) (*R2Client, error) {
	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("R2 configuration incomplete")
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	return &R2Client{
		s3Client:   s3Client,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		bucketName: cfg.BucketName,
		publicURL:  cfg.PublicURL,
		maxFetch:   maxFetchBytes,
	}, nil
}

// Store uploads media under scopePath and returns its public URL.
// Remote media is fetched first so the returned URL outlives the renderer's.
func (c *R2Client) Store(ctx context.Context, media *Media, scopePath string) (string, error) {
	data := media.Data
	if len(data) == 0 {
		if media.URL == "" {
			return "", fmt.Errorf("media has neither data nor URL")
		}
		fetched, err := c.fetch(ctx, media.URL)
		if err != nil {
			return "", err
		}
		data = fetched
	}

	key := path.Join(scopePath, uuid.NewString()+extension(media.MimeType))
	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(media.MimeType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}
	return c.GetPublicURL(key), nil
}

func (c *R2Client) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rendered media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch rendered media: status %d", resp.StatusCode)
	}
	// one byte past the cap tells an oversized body from one that fits exactly
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxFetch+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered media: %w", err)
	}
	if int64(len(data)) > c.maxFetch {
		return nil, fmt.Errorf("rendered media exceeds %d bytes", c.maxFetch)
	}
	return data, nil
}

// GetPublicURL returns the public CDN URL for a key
func (c *R2Client) GetPublicURL(key string) string {
	if c.publicURL != "" {
		return fmt.Sprintf("%s/%s", c.publicURL, key)
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com/%s", c.bucketName, key)
}

// IsConfigured returns true if the client has valid configuration
func (c *R2Client) IsConfigured() bool {
	return c != nil && c.s3Client != nil && c.bucketName != ""
}

func extension(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	default:
		return ".png"
	}
}

// PassthroughStore keeps the renderer's URL when no bucket is configured
type PassthroughStore struct{}

func (PassthroughStore) Store(_ context.Context, media *Media, _ string) (string, error) {
	if media.URL == "" {
		return "", fmt.Errorf("no object storage configured for inline media")
	}
	return media.URL, nil
}
