package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/auth"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/client"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/dedup"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/dispatcher"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/middleware"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/module"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/outcome"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/pipeline"
	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/registry"
)

const (
	testJWTSecret    = "test-secret-for-handlers"
	testSharedSecret = "shared-secret-for-handlers"
	testUserID       = "test-user-123"
)

// the dispatcher clock is pinned to the 09:00 bucket
var testNow = time.Date(2026, 3, 2, 9, 0, 30, 0, time.UTC)

type countingPoster struct {
	calls atomic.Int32
}

func (p *countingPoster) Post(ctx context.Context, req *client.PostRequest) (string, error) {
	p.calls.Add(1)
	return client.MockPoster{}.Post(ctx, req)
}

type fakePublisher struct {
	calls atomic.Int32
}

func (p *fakePublisher) Publish(_ context.Context, _ string, _ *client.PublishRequest) (string, error) {
	p.calls.Add(1)
	return "post_1", nil
}

type testApp struct {
	app       *fiber.App
	schedules *module.MemoryScheduleStore
	poster    *countingPoster
	publisher *fakePublisher
}

// setupApp mirrors the routing in main.go with in-memory stores and mock collaborators
func setupApp(t *testing.T) *testApp {
	t.Helper()
	log := zerolog.Nop()

	schedules := module.NewMemoryScheduleStore()
	modules, err := registry.New(module.NewQuoteModule(schedules, "http://localhost/publish/quotes"))
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}

	runLog := outcome.NewLogger(outcome.NewMemoryStore(), log)
	publisher := &fakePublisher{}
	executor := pipeline.NewExecutor(pipeline.Options{
		Generator:  client.MockGenerator{},
		Renderer:   client.MockRenderer{},
		MediaStore: client.PassthroughStore{},
		Publisher:  publisher,
		Dedup:      dedup.NewEngine(runLog, 0, 0, log),
		Log:        runLog,
		Logger:     log,
	})
	disp := dispatcher.New(dispatcher.Options{
		Registry:       modules,
		Runner:         executor,
		Location:       time.UTC,
		MaxConcurrency: 2,
		Logger:         log,
		Now:            func() time.Time { return testNow },
	})

	validate := NewValidator()
	poster := &countingPoster{}

	healthHandler := NewHealthHandler(map[string]bool{"groq": false, "render": false}, []string{module.QuotesID})
	authHandler := NewAuthHandler(auth.NewLegacyVerifier(testJWTSecret))
	schedulerHandler := NewSchedulerHandler(disp, validate)
	publishHandler := NewPublishHandler(testSharedSecret, modules, poster, validate, log)
	historyHandler := NewHistoryHandler(runLog)
	scheduleHandler := NewScheduleHandler(schedules, modules, validate)

	authMiddleware := middleware.NewAuthMiddleware(auth.NewLegacyVerifier(testJWTSecret))
	var rateLimiter *middleware.RateLimiter

	app := fiber.New()
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.Health)
	app.Get("/auth/verify", authHandler.Verify)

	app.Post("/publish/:moduleId", publishHandler.Publish)
	app.Post("/api/scheduler/trigger",
		middleware.SharedSecret(testSharedSecret),
		rateLimiter.TriggerLimit(10000),
		schedulerHandler.Trigger,
	)

	api := app.Group("/api", authMiddleware.Authenticate())
	api.Get("/history", historyHandler.List)
	api.Get("/runs/:runId", historyHandler.Run)
	api.Get("/schedules/:moduleId", scheduleHandler.List)
	api.Put("/schedules/:moduleId/:itemId", scheduleHandler.Put)

	return &testApp{app: app, schedules: schedules, poster: poster, publisher: publisher}
}

// generateToken creates a legacy HMAC JWT token for userID
func generateToken(t *testing.T, userID string) string {
	t.Helper()
	signed, err := auth.NewLegacyVerifier(testJWTSecret).Sign(auth.LegacyClaims{
		UserID: userID,
		Email:  userID + "@example.com",
	})
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest performs an HTTP request against the test app
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs a request as testUserID
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + generateToken(t, testUserID),
	})
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
