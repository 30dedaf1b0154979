package api

import (
	"net/http/httptest"

	"github.com/gofiber/fiber/v2"
	"github.com/go-pkgz/auth/v2/token"

	"github.com/nvrengine/engine/internal/auth"
	"github.com/nvrengine/engine/internal/database"
)

func (s *Server) registerAuthRoutes(api fiber.Router) {
	api.Post("/auth/login", s.handleLogin)
	api.Post("/auth/logout", s.handleLogout)

	tokenService := s.authService.TokenService()
	api.Get("/auth/user", auth.RequireAuth(tokenService, s.db), s.handleCurrentUser)
	api.Post("/auth/api-key/regenerate", auth.RequireAuth(tokenService, s.db), s.handleRegenerateAPIKey)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	Username string          `json:"username"`
	Role     database.Role   `json:"role"`
}

func toUserResponse(u database.AuthUser) userResponse {
	return userResponse{Username: u.Username, Role: u.Role}
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return RespondBadRequest(c, "malformed request body")
	}
	if req.Username == "" || req.Password == "" {
		return RespondBadRequest(c, "username and password are required")
	}

	user, err := s.authService.Authenticate(c.Context(), req.Username, req.Password)
	if err != nil {
		return RespondError(c, fiber.StatusUnauthorized, ErrCodeUnauthorized, "invalid credentials")
	}

	claims := token.Claims{
		User: &token.User{Name: user.Username},
	}
	claims.Subject = user.Username

	rec := httptest.NewRecorder()
	if _, err := s.authService.TokenService().Set(rec, claims); err != nil {
		return RespondInternalError(c, "failed to create session")
	}
	for _, cookie := range rec.Result().Cookies() {
		c.Cookie(&fiber.Cookie{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Path:     cookie.Path,
			Domain:   cookie.Domain,
			Expires:  cookie.Expires,
			Secure:   cookie.Secure,
			HTTPOnly: cookie.HttpOnly,
		})
	}

	return RespondSuccess(c, fiber.Map{"user": toUserResponse(user), "message": "login successful"})
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	rec := httptest.NewRecorder()
	s.authService.TokenService().Reset(rec)
	for _, cookie := range rec.Result().Cookies() {
		c.Cookie(&fiber.Cookie{
			Name:    cookie.Name,
			Value:   "",
			Path:    cookie.Path,
			Expires: cookie.Expires,
		})
	}
	return RespondMessage(c, "logged out")
}

func (s *Server) handleCurrentUser(c *fiber.Ctx) error {
	user := auth.UserFromContext(c)
	if user == nil {
		return RespondError(c, fiber.StatusUnauthorized, ErrCodeUnauthorized, "not authenticated")
	}
	return RespondSuccess(c, toUserResponse(*user))
}

func (s *Server) handleRegenerateAPIKey(c *fiber.Ctx) error {
	user := auth.UserFromContext(c)
	if user == nil {
		return RespondError(c, fiber.StatusUnauthorized, ErrCodeUnauthorized, "not authenticated")
	}
	key, err := s.db.GenerateAPIKey(c.Context(), user.ID)
	if err != nil {
		return respondFromError(c, err)
	}
	return RespondSuccess(c, fiber.Map{"api_key": key})
}
