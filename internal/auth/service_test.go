package auth

import (
	"context"
	"testing"
	"time"

	"github.com/go-pkgz/auth/v2/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvrengine/engine/internal/database"
	"github.com/nvrengine/engine/internal/ncerrors"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(database.Config{Path: t.TempDir() + "/auth_test.db"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestHashPassword_RoundTrips(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, Verifier.Verify(hash, "correct horse battery staple"))
	assert.False(t, Verifier.Verify(hash, "wrong password"))
}

func TestNewService_SeedsDefaultAdminAccount(t *testing.T) {
	db := openTestDB(t)
	cfg := DefaultConfig()
	cfg.DefaultPassword = "initial-password"

	svc, err := NewService(context.Background(), cfg, db)
	require.NoError(t, err)
	require.NotNil(t, svc)

	user, err := svc.Authenticate(context.Background(), "admin", "initial-password")
	require.NoError(t, err)
	assert.Equal(t, database.RoleAdmin, user.Role)
}

func TestAuthenticate_WrongPasswordAndUnknownUserBothNotFound(t *testing.T) {
	db := openTestDB(t)
	cfg := DefaultConfig()
	cfg.DefaultPassword = "initial-password"
	svc, err := NewService(context.Background(), cfg, db)
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), "admin", "wrong-password")
	assert.ErrorIs(t, err, ncerrors.NotFound)

	_, err = svc.Authenticate(context.Background(), "nobody", "whatever")
	assert.ErrorIs(t, err, ncerrors.NotFound)
}

func TestNewService_GeneratesSecretsWhenUnset(t *testing.T) {
	db := openTestDB(t)
	cfg := &Config{TokenDuration: time.Hour, DefaultUsername: "admin", Issuer: "x", Audience: "y"}
	svc, err := NewService(context.Background(), cfg, db)
	require.NoError(t, err)
	assert.NotEmpty(t, svc.cfg.JWTSecret)
	assert.NotEmpty(t, svc.cfg.DefaultPassword)
}

func TestDirectCredChecker_AcceptsCorrectPasswordRejectsWrong(t *testing.T) {
	db := openTestDB(t)
	cfg := DefaultConfig()
	cfg.DefaultPassword = "initial-password"
	svc, err := NewService(context.Background(), cfg, db)
	require.NoError(t, err)

	checker := &directCredChecker{service: svc}
	ok, err := checker.Check("admin", "initial-password")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = checker.Check("admin", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserFromClaims_FallsBackToSubjectWhenUserFieldAbsent(t *testing.T) {
	db := openTestDB(t)
	cfg := DefaultConfig()
	cfg.DefaultPassword = "initial-password"
	svc, err := NewService(context.Background(), cfg, db)
	require.NoError(t, err)

	claims := token.Claims{}
	claims.Subject = "admin"
	user, err := svc.UserFromClaims(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)
}
