package auth

import (
	"strings"

	"github.com/go-pkgz/auth/v2/token"
	"github.com/gofiber/fiber/v2"

	"github.com/nvrengine/engine/internal/database"
)

// apiKeyFromRequest extracts an API key from the query string, the
// X-API-Key header, or a Bearer Authorization header, in that order.
func apiKeyFromRequest(c *fiber.Ctx) string {
	if key := c.Query("apikey"); key != "" {
		return key
	}
	if key := c.Get("X-API-Key"); key != "" {
		return key
	}
	if authHeader := c.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// APIKeyMiddleware authenticates requests bearing an API key, or a
// pre-existing JWT session stashed in Locals by an earlier middleware.
func APIKeyMiddleware(db *database.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if db == nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false, "message": "authentication service unavailable",
			})
		}

		if UserFromContext(c) != nil {
			return c.Next()
		}

		apiKey := apiKeyFromRequest(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false, "message": "authentication required",
				"details": "provide an API key or a valid session",
			})
		}

		user, err := db.GetUserByAPIKey(c.Context(), apiKey)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false, "message": "invalid API key",
			})
		}

		c.Locals(string(UserContextKey), user)
		return c.Next()
	}
}

// OptionalAPIKeyMiddleware resolves an API key into Locals when present,
// but never rejects the request when one is absent or invalid.
func OptionalAPIKeyMiddleware(db *database.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if db == nil {
			return c.Next()
		}
		apiKey := apiKeyFromRequest(c)
		if apiKey == "" {
			return c.Next()
		}
		user, err := db.GetUserByAPIKey(c.Context(), apiKey)
		if err != nil {
			return c.Next()
		}
		c.Locals(string(UserContextKey), user)
		return c.Next()
	}
}

// CombinedAuthMiddleware tries JWT authentication first, falls back to an
// API key, and optionally rejects requests that satisfy neither.
func CombinedAuthMiddleware(tokenService *token.Service, db *database.DB, requireAuth bool) fiber.Handler {
	jwtOptional := optionalJWT(tokenService, db)
	apiKeyOptional := OptionalAPIKeyMiddleware(db)

	return func(c *fiber.Ctx) error {
		if err := jwtOptional(c); err != nil {
			return err
		}
		if UserFromContext(c) == nil {
			if err := apiKeyOptional(c); err != nil {
				return err
			}
		}

		if requireAuth && UserFromContext(c) == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false, "message": "authentication required",
				"details": "provide a valid session token or API key",
			})
		}
		return c.Next()
	}
}

// optionalJWT resolves a JWT into Locals when present and valid, without
// rejecting the request when the token is absent or expired.
func optionalJWT(tokenService *token.Service, db *database.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenService == nil || db == nil {
			return c.Next()
		}
		req, err := toHTTPRequest(c)
		if err != nil {
			return c.Next()
		}
		claims, _, err := tokenService.Get(req)
		if err != nil || claims.User == nil {
			return c.Next()
		}
		user, err := db.GetUserByUsername(c.Context(), claims.User.Name)
		if err != nil {
			return c.Next()
		}
		c.Locals(string(UserContextKey), user)
		return c.Next()
	}
}
