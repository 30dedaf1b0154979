package auth

import (
	"net/http"

	"github.com/go-pkgz/auth/v2/token"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/nvrengine/engine/internal/database"
)

type contextKey string

// UserContextKey is the fiber Locals key holding the authenticated
// database.AuthUser for the current request.
const UserContextKey contextKey = "auth_user"

// RequireAuth rejects requests without a valid JWT, resolving the token's
// subject to a catalog user and storing it in c.Locals.
func RequireAuth(tokenService *token.Service, db *database.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenService == nil || db == nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false, "message": "authentication service unavailable",
			})
		}

		req, err := toHTTPRequest(c)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false, "message": "malformed request",
			})
		}

		claims, _, err := tokenService.Get(req)
		if err != nil || claims.User == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false, "message": "authentication required",
			})
		}

		user, err := db.GetUserByUsername(c.Context(), claims.User.Name)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false, "message": "user not found",
			})
		}

		c.Locals(string(UserContextKey), user)
		return c.Next()
	}
}

// RequireRole wraps RequireAuth and additionally requires the
// authenticated user's role to be one of allowed.
func RequireRole(tokenService *token.Service, db *database.DB, allowed ...database.Role) fiber.Handler {
	authed := RequireAuth(tokenService, db)
	permitted := make(map[database.Role]bool, len(allowed))
	for _, r := range allowed {
		permitted[r] = true
	}

	return func(c *fiber.Ctx) error {
		if err := authed(c); err != nil {
			return err
		}
		user := UserFromContext(c)
		if user == nil || !permitted[user.Role] {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false, "message": "insufficient privileges",
			})
		}
		return c.Next()
	}
}

// UserFromContext returns the authenticated user stored by RequireAuth or
// an API-key middleware, or nil if the request carries none.
func UserFromContext(c *fiber.Ctx) *database.AuthUser {
	user, ok := c.Locals(string(UserContextKey)).(database.AuthUser)
	if !ok {
		return nil
	}
	return &user
}

// IsAuthenticated reports whether the request already carries a resolved
// user, for handlers that branch on optional authentication.
func IsAuthenticated(c *fiber.Ctx) bool {
	return UserFromContext(c) != nil
}

// toHTTPRequest adapts fiber's fasthttp request into the *http.Request
// shape the go-pkgz/auth token service reads cookies and headers from.
func toHTTPRequest(c *fiber.Ctx) (*http.Request, error) {
	req := new(http.Request)
	if err := fasthttpadaptor.ConvertRequest(c.Context(), req, false); err != nil {
		return nil, err
	}
	return req, nil
}
