package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/profile-launchpad/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verifierFunc func(ctx context.Context, token string) (*utils.Identity, error)

func (f verifierFunc) Verify(ctx context.Context, token string) (*utils.Identity, error) {
	return f(ctx, token)
}

func newIdentityApp(cfg IdentityConfig) *fiber.App {
	app := fiber.New()
	app.Get("/", IdentityMiddleware(cfg), func(c *fiber.Ctx) error {
		identity := GetIdentity(c)
		if identity == nil {
			return c.SendString("anonymous")
		}
		return c.SendString(identity.ExternalID)
	})
	return app
}

func doRequest(t *testing.T, app *fiber.App, authorization string) (int, string) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	buf := make([]byte, 512)
	n, _ := resp.Body.Read(buf)
	return resp.StatusCode, string(buf[:n])
}

func TestIdentityMiddleware(t *testing.T) {
	verifier := verifierFunc(func(ctx context.Context, token string) (*utils.Identity, error) {
		if token == "good" {
			return &utils.Identity{ExternalID: "did:alice"}, nil
		}
		return nil, errors.New("bad token")
	})
	app := newIdentityApp(IdentityConfig{Verifier: verifier})

	tests := []struct {
		name          string
		authorization string
		wantStatus    int
		wantBody      string
	}{
		{"missing header", "", fiber.StatusUnauthorized, "unauthorized"},
		{"wrong scheme", "Basic good", fiber.StatusUnauthorized, "unauthorized"},
		{"invalid token", "Bearer nope", fiber.StatusUnauthorized, "invalid token"},
		{"valid token", "Bearer good", fiber.StatusOK, "did:alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doRequest(t, app, tt.authorization)
			assert.Equal(t, tt.wantStatus, status)
			assert.Contains(t, body, tt.wantBody)
		})
	}
}

func TestIdentityMiddleware_Optional(t *testing.T) {
	app := newIdentityApp(IdentityConfig{Optional: true})

	status, body := doRequest(t, app, "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "anonymous", body)

	status, _ = doRequest(t, app, "Bearer something")
	assert.Equal(t, fiber.StatusUnauthorized, status, "a token without a verifier is rejected")
}

func TestCronSecretMiddleware(t *testing.T) {
	newApp := func(secret string) *fiber.App {
		app := fiber.New()
		app.Get("/", CronSecretMiddleware(secret), func(c *fiber.Ctx) error {
			return c.SendString("ran")
		})
		return app
	}

	app := newApp("s3cret")
	status, body := doRequest(t, app, "Bearer s3cret")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ran", body)

	status, _ = doRequest(t, app, "Bearer s3cre")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	status, _ = doRequest(t, app, "s3cret")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = doRequest(t, newApp(""), "Bearer ")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}
