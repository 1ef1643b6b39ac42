package middleware

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/auth"
)

func TestSecretMatches(t *testing.T) {
	assert.True(t, SecretMatches("s3cret", "s3cret"))
	assert.False(t, SecretMatches("s3cret", "s3cre"))
	assert.False(t, SecretMatches("", ""))
	assert.False(t, SecretMatches("", "anything"))
}

func TestSharedSecret(t *testing.T) {
	app := fiber.New()
	app.Post("/x", SharedSecret("s3cret"), func(c *fiber.Ctx) error { return c.SendString("ok") })

	cases := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"header", "/x", "s3cret", http.StatusOK},
		{"query", "/x?authToken=s3cret", "", http.StatusOK},
		{"wrong", "/x?authToken=nope", "", http.StatusUnauthorized},
		{"missing", "/x", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("X-Auth-Token", tc.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	v := auth.NewLegacyVerifier("jwt-secret")
	token, err := v.Sign(auth.LegacyClaims{UserID: "u1"})
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/me", NewAuthMiddleware(v).Authenticate(), func(c *fiber.Ctx) error {
		return c.SendString(GetUserID(c))
	})

	req, _ := http.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token "+token)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRateLimiter_NilRedisAllows(t *testing.T) {
	app := fiber.New()
	var rl *RateLimiter
	app.Get("/x", rl.TriggerLimit(1), func(c *fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptestRequest(), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func httptestRequest() *http.Request {
	req, _ := http.NewRequest(http.MethodGet, "/x", nil)
	return req
}

func TestGatewayAuthMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/x", GatewayAuthMiddleware(), func(c *fiber.Ctx) error { return c.SendString(GetUserID(c)) })

	resp, err := app.Test(httptestRequest(), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptestRequest()
	req.Header.Set("X-User-Id", "u9")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
