package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/profile-launchpad/internal/utils"
)

const identityKey = "identity"

// IdentityConfig holds configuration for the identity middleware
type IdentityConfig struct {
	// Verifier turns the bearer token into an identity
	Verifier utils.IdentityVerifier
	// Optional lets requests without a token through with no identity set
	Optional bool
}

// IdentityMiddleware returns a Fiber middleware for Bearer token authentication
func IdentityMiddleware(cfg IdentityConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			if cfg.Optional {
				return c.Next()
			}
			c.Set("WWW-Authenticate", `Bearer realm="profile-launchpad"`)
			return unauthorized(c, "missing or invalid bearer token")
		}
		if cfg.Verifier == nil {
			return unauthorized(c, "identity verification is not configured")
		}

		identity, err := cfg.Verifier.Verify(c.UserContext(), token)
		if err != nil || identity == nil {
			c.Set("WWW-Authenticate", `Bearer realm="profile-launchpad", error="invalid_token"`)
			return unauthorized(c, "invalid token")
		}

		// Store authenticated identity in context
		c.Locals(identityKey, identity)
		return c.Next()
	}
}

// CronSecretMiddleware accepts only requests carrying "Bearer <secret>". An
// empty secret rejects every request.
func CronSecretMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if secret == "" || token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			return unauthorized(c, "invalid cron secret")
		}
		return c.Next()
	}
}

// GetIdentity retrieves the verified identity from Fiber context.
// Returns nil if no identity is found or it is not of the correct type
func GetIdentity(c *fiber.Ctx) *utils.Identity {
	identity, ok := c.Locals(identityKey).(*utils.Identity)
	if !ok {
		return nil
	}
	return identity
}

func bearerToken(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":   "unauthorized",
		"message": message,
	})
}
