// Package auth adapts the catalog's user/session tables into bcrypt
// password hashing and go-pkgz/auth-issued JWTs for the REST API.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gopkgauth "github.com/go-pkgz/auth/v2"
	"github.com/go-pkgz/auth/v2/avatar"
	"github.com/go-pkgz/auth/v2/token"
	"github.com/sethvargo/go-password/password"
	"golang.org/x/crypto/bcrypt"

	"github.com/nvrengine/engine/internal/database"
)

// Config configures JWT issuance and the default admin account.
type Config struct {
	JWTSecret       string
	TokenDuration   time.Duration
	CookieDomain    string
	CookieSecure    bool
	CookieSameSite  http.SameSite
	Issuer          string
	Audience        string
	DefaultUsername string
	DefaultPassword string
}

// DefaultConfig returns a development-friendly Config; production
// deployments set JWTSecret and DefaultPassword from their own config.
func DefaultConfig() *Config {
	return &Config{
		TokenDuration:   24 * time.Hour,
		CookieDomain:    "localhost",
		CookieSecure:    false,
		CookieSameSite:  http.SameSiteStrictMode,
		Issuer:          "nvrengine",
		Audience:        "nvrengine-api",
		DefaultUsername: "admin",
	}
}

// Service wraps the catalog's user/session tables with bcrypt password
// hashing and a go-pkgz/auth provider for JWT/cookie issuance.
type Service struct {
	cfg         *Config
	db          *database.DB
	authService *gopkgauth.Service
	logger      *slog.Logger
}

// bcryptVerifier implements database.PasswordVerifier.
type bcryptVerifier struct{}

func (bcryptVerifier) Verify(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// Verifier is the shared database.PasswordVerifier implementation.
var Verifier database.PasswordVerifier = bcryptVerifier{}

// NewService builds a Service, seeds the default admin account if the
// users table is empty, and registers the direct username/password
// provider.
func NewService(ctx context.Context, cfg *Config, db *database.DB) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = generateRandomSecret()
	}
	if cfg.DefaultPassword == "" {
		generated, err := generateDefaultPassword()
		if err != nil {
			return nil, fmt.Errorf("auth: generate default admin password: %w", err)
		}
		cfg.DefaultPassword = generated
		slog.Warn("auth: generated random default admin password; set one explicitly for production")
	}

	hash, err := HashPassword(cfg.DefaultPassword)
	if err != nil {
		return nil, fmt.Errorf("auth: hash default password: %w", err)
	}
	if err := db.AuthInit(ctx, cfg.DefaultUsername, hash); err != nil {
		return nil, fmt.Errorf("auth: init: %w", err)
	}

	svc := &Service{cfg: cfg, db: db, logger: slog.Default()}

	opts := gopkgauth.Opts{
		SecretReader:   token.SecretFunc(func(string) (string, error) { return cfg.JWTSecret, nil }),
		TokenDuration:  cfg.TokenDuration,
		CookieDuration: cfg.TokenDuration,
		SecureCookies:  cfg.CookieSecure,
		Issuer:         cfg.Issuer,
		URL:            "http://" + cfg.CookieDomain,
		AvatarStore:    avatar.NewNoOp(),
		ClaimsUpd: token.ClaimsUpdFunc(func(claims token.Claims) token.Claims {
			if claims.Audience == nil {
				claims.Audience = []string{cfg.Audience}
			}
			if claims.User != nil {
				if row, err := db.GetUserByUsername(context.Background(), claims.User.Name); err == nil {
					if claims.User.Attributes == nil {
						claims.User.Attributes = map[string]interface{}{}
					}
					claims.User.Attributes["role"] = string(row.Role)
				}
			}
			return claims
		}),
	}
	svc.authService = gopkgauth.NewService(opts)
	svc.authService.AddDirectProvider("nvrengine", &directCredChecker{service: svc})
	return svc, nil
}

// AuthService returns the underlying go-pkgz/auth service, for mounting
// its login/logout HTTP handlers on the REST API.
func (s *Service) AuthService() *gopkgauth.Service { return s.authService }

// TokenService returns the JWT token service used by the fiber middleware.
func (s *Service) TokenService() *token.Service { return s.authService.TokenService() }

// Authenticate verifies username/password against the catalog.
func (s *Service) Authenticate(ctx context.Context, username, password string) (database.AuthUser, error) {
	return s.db.Authenticate(ctx, username, password, Verifier)
}

// UserFromClaims resolves the catalog row a token's claims refer to.
func (s *Service) UserFromClaims(ctx context.Context, claims token.Claims) (database.AuthUser, error) {
	username := claims.Subject
	if claims.User != nil && claims.User.Name != "" {
		username = claims.User.Name
	}
	return s.db.GetUserByUsername(ctx, username)
}

// directCredChecker implements go-pkgz/auth's provider.CredChecker. The
// role claim attribute is attached afterwards by the service's ClaimsUpd
// hook, which has access to the username but not this checker's result.
type directCredChecker struct {
	service *Service
}

func (d *directCredChecker) Check(user, password string) (bool, error) {
	if _, err := d.service.Authenticate(context.Background(), user, password); err != nil {
		d.service.logger.Debug("auth: login failed", "user", user)
		return false, nil
	}
	return true, nil
}

// HashPassword hashes a plaintext password with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

func generateRandomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "nvr-dev-secret-change-in-production"
	}
	return hex.EncodeToString(b)
}

// generateDefaultPassword produces a human-typeable password for the
// seeded admin account, distinct from generateRandomSecret's opaque JWT
// signing key: digits and symbols required, no repeats, so it reads back
// cleanly from a log line during first setup.
func generateDefaultPassword() (string, error) {
	return password.Generate(16, 4, 2, false, false)
}
