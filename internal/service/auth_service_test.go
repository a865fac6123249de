package service

import (
	"context"
	"testing"
	"time"

	"commsense_backend/internal/repository"
	"commsense_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuth(t *testing.T) *AuthService {
	cfg := testConfig(t)
	cfg.JWT.ExpireTime = time.Hour
	return NewAuthService(repository.NewUserRepository(newTestDB(t)), cfg, nil)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestAuth(t)

	user, err := s.Register(RegisterInput{Username: "ana", Email: "Ana@Example.com ", Password: "correct-horse", FullName: "Ana M"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.NotEqual(t, "correct-horse", user.Password)

	_, err = s.Register(RegisterInput{Username: "ana", Email: "other@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, util.ErrUserExists)

	for _, id := range []string{"ana", "ana@example.com", "ANA@example.com"} {
		token, u, err := s.Login(id, "correct-horse")
		require.NoError(t, err, id)
		assert.Equal(t, user.ID, u.ID)

		claims, err := util.ParseJWT(token, s.Cfg.JWT.Secret)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.NotEmpty(t, claims.ID)
	}

	_, _, err = s.Login("ana", "wrong-password")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
	_, _, err = s.Login("nobody", "correct-horse")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestAuth(t)
	_, err := s.Register(RegisterInput{Username: "bo", Email: "bo@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	token, _, err := s.Login("bo", "correct-horse")
	require.NoError(t, err)
	claims, err := util.ParseJWT(token, s.Cfg.JWT.Secret)
	require.NoError(t, err)

	ctx := context.Background()
	revoked, err := s.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.Logout(ctx, claims))

	revoked, err = s.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestMemoryDenylistExpires(t *testing.T) {
	d := NewMemoryDenylist()
	ctx := context.Background()

	require.NoError(t, d.Revoke(ctx, "short", time.Millisecond))
	require.NoError(t, d.Revoke(ctx, "long", time.Hour))
	time.Sleep(5 * time.Millisecond)

	short, _ := d.IsRevoked(ctx, "short")
	long, _ := d.IsRevoked(ctx, "long")
	assert.False(t, short)
	assert.True(t, long)
}

func TestMe(t *testing.T) {
	s := newTestAuth(t)
	user, err := s.Register(RegisterInput{Username: "cy", Email: "cy@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	got, err := s.Me(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "cy", got.Username)

	_, err = s.Me(user.ID + 100)
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}
