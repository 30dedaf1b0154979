package database

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/nvrengine/engine/internal/ncerrors"
)

// AuthUser is a catalog-side account row. Password hashing itself is an
// external collaborator (internal/auth wraps bcrypt); this package only
// stores and compares opaque hash strings.
type AuthUser struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         Role
	APIKey       string
	TOTPSecret   string
	TOTPEnabled  bool
	CreatedAt    time.Time
}

// PasswordVerifier compares a plaintext password against a stored hash.
// Implemented by internal/auth using bcrypt.
type PasswordVerifier interface {
	Verify(hash, plaintext string) bool
}

const userColumns = `id, username, password_hash, role, api_key, totp_secret, totp_enabled, created_at`

func scanUser(row interface{ Scan(...any) error }) (AuthUser, error) {
	var u AuthUser
	var role string
	var apiKey sql.NullString
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &apiKey, &u.TOTPSecret, &u.TOTPEnabled, &u.CreatedAt); err != nil {
		return AuthUser{}, err
	}
	u.Role = Role(role)
	u.APIKey = apiKey.String
	return u, nil
}

// AuthInit seeds a default admin account if the users table is empty.
// passwordHash is the already-hashed default password.
func (db *DB) AuthInit(ctx context.Context, defaultUsername, passwordHash string) error {
	var count int
	if err := db.active().QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("auth init: %w", err)
	}
	if count > 0 {
		return nil
	}
	_, err := db.active().ExecContext(ctx,
		"INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)",
		defaultUsername, passwordHash, string(RoleAdmin))
	if err != nil {
		return fmt.Errorf("auth init: create default admin: %w", err)
	}
	return nil
}

// CreateUser inserts a new account.
func (db *DB) CreateUser(ctx context.Context, username, passwordHash string, role Role) (int64, error) {
	if username == "" {
		return 0, fmt.Errorf("create user: %w", ncerrors.InvalidArgument)
	}
	res, err := db.active().ExecContext(ctx,
		"INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)",
		username, passwordHash, string(role))
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return res.LastInsertId()
}

// GetUserByUsername looks up an account by username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (AuthUser, error) {
	row := db.active().QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return AuthUser{}, fmt.Errorf("get user %s: %w", username, ncerrors.NotFound)
	}
	if err != nil {
		return AuthUser{}, fmt.Errorf("get user %s: %w", username, err)
	}
	return u, nil
}

// GetUserByAPIKey looks up an account by its generated API key.
func (db *DB) GetUserByAPIKey(ctx context.Context, apiKey string) (AuthUser, error) {
	row := db.active().QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE api_key = ?", apiKey)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return AuthUser{}, fmt.Errorf("get user by api key: %w", ncerrors.NotFound)
	}
	if err != nil {
		return AuthUser{}, fmt.Errorf("get user by api key: %w", err)
	}
	return u, nil
}

// Authenticate looks up username and checks password via verifier. A
// missing user or a verification failure both return NotFound, avoiding a
// username-enumeration oracle.
func (db *DB) Authenticate(ctx context.Context, username, password string, verifier PasswordVerifier) (AuthUser, error) {
	u, err := db.GetUserByUsername(ctx, username)
	if err != nil {
		return AuthUser{}, fmt.Errorf("authenticate: %w", ncerrors.NotFound)
	}
	if !verifier.Verify(u.PasswordHash, password) {
		return AuthUser{}, fmt.Errorf("authenticate: %w", ncerrors.NotFound)
	}
	return u, nil
}

// ChangePassword overwrites a user's stored hash.
func (db *DB) ChangePassword(ctx context.Context, userID int64, newHash string) error {
	res, err := db.active().ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", newHash, userID)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return requireAffected(res, userID)
}

// GenerateAPIKey mints and stores a new API key for userID, returning it.
func (db *DB) GenerateAPIKey(ctx context.Context, userID int64) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	key := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(buf)

	res, err := db.active().ExecContext(ctx, "UPDATE users SET api_key = ? WHERE id = ?", key, userID)
	if err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	if err := requireAffected(res, userID); err != nil {
		return "", err
	}
	return key, nil
}

// SetTOTPSecret stores a user's TOTP seed without enabling it.
func (db *DB) SetTOTPSecret(ctx context.Context, userID int64, secret string) error {
	res, err := db.active().ExecContext(ctx, "UPDATE users SET totp_secret = ? WHERE id = ?", secret, userID)
	if err != nil {
		return fmt.Errorf("set totp secret: %w", err)
	}
	return requireAffected(res, userID)
}

// EnableTOTP toggles whether TOTP is required at login.
func (db *DB) EnableTOTP(ctx context.Context, userID int64, enabled bool) error {
	res, err := db.active().ExecContext(ctx, "UPDATE users SET totp_enabled = ? WHERE id = ?", enabled, userID)
	if err != nil {
		return fmt.Errorf("enable totp: %w", err)
	}
	return requireAffected(res, userID)
}

// GetTOTPInfo returns a user's TOTP secret and whether it's enabled.
func (db *DB) GetTOTPInfo(ctx context.Context, userID int64) (secret string, enabled bool, err error) {
	row := db.active().QueryRowContext(ctx, "SELECT totp_secret, totp_enabled FROM users WHERE id = ?", userID)
	if err := row.Scan(&secret, &enabled); err != nil {
		if err == sql.ErrNoRows {
			return "", false, fmt.Errorf("get totp info: %w", ncerrors.NotFound)
		}
		return "", false, fmt.Errorf("get totp info: %w", err)
	}
	return secret, enabled, nil
}

// CreateSession issues a new opaque session token for userID.
func (db *DB) CreateSession(ctx context.Context, userID int64, ip, userAgent string, ttl time.Duration) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	token := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(buf)

	_, err := db.active().ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, ip, user_agent, expires_at) VALUES (?,?,?,?,?)",
		token, userID, ip, userAgent, time.Now().Add(ttl))
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

// ValidateSession returns the owning user id if token is present and
// unexpired.
func (db *DB) ValidateSession(ctx context.Context, token string) (int64, error) {
	var userID int64
	var expiresAt time.Time
	err := db.active().QueryRowContext(ctx, "SELECT user_id, expires_at FROM sessions WHERE token = ?", token).Scan(&userID, &expiresAt)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("validate session: %w", ncerrors.NotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("validate session: %w", err)
	}
	if time.Now().After(expiresAt) {
		return 0, fmt.Errorf("validate session: expired: %w", ncerrors.NotFound)
	}
	return userID, nil
}

// DeleteSession revokes a single session token. Deleting an unknown token
// is a no-op.
func (db *DB) DeleteSession(ctx context.Context, token string) error {
	_, err := db.active().ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CleanupSessions removes every expired session and returns the count
// removed.
func (db *DB) CleanupSessions(ctx context.Context) (int64, error) {
	res, err := db.active().ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < ?", time.Now())
	if err != nil {
		return 0, fmt.Errorf("cleanup sessions: %w", err)
	}
	return res.RowsAffected()
}
