package service

import (
	"context"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/repository/memrepo"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuth(t *testing.T, now *time.Time) (*AuthService, *memrepo.Store) {
	t.Helper()
	store := memrepo.New()
	svc := NewAuthService(store, "test-secret", time.Hour, discardLogger(),
		WithBcryptCost(bcrypt.MinCost),
		WithAuthClock(func() time.Time { return *now }))
	return svc, store
}

func TestRegisterAndLogin(t *testing.T) {
	now := time.Now()
	svc, _ := newAuth(t, &now)
	ctx := context.Background()

	resp, err := svc.Register(ctx, model.RegisterUserRequest{
		Name: " Carol ", Email: "Carol@Example.com", Password: "hunter22",
	})
	require.NoError(t, err)
	assert.Equal(t, "Carol", resp.User.Name)
	assert.Equal(t, "carol@example.com", resp.User.Email)
	assert.Equal(t, model.RoleUser, resp.User.Role)
	require.NotEmpty(t, resp.Token)

	ident, err := svc.Resolve(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, ident.ID)

	login, err := svc.Login(ctx, model.LoginRequest{Email: "carol@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)

	_, err = svc.Login(ctx, model.LoginRequest{Email: "carol@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, model.ErrAuth)
	_, err = svc.Login(ctx, model.LoginRequest{Email: "nobody@example.com", Password: "hunter22"})
	assert.ErrorIs(t, err, model.ErrAuth)

	_, err = svc.Register(ctx, model.RegisterUserRequest{Name: "Dup", Email: "carol@example.com", Password: "hunter22"})
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestRegisterValidation(t *testing.T) {
	now := time.Now()
	svc, _ := newAuth(t, &now)
	tests := []struct {
		name string
		req  model.RegisterUserRequest
	}{
		{"missing name", model.RegisterUserRequest{Email: "a@b.co", Password: "secret1"}},
		{"bad email", model.RegisterUserRequest{Name: "A", Email: "not-an-email", Password: "secret1"}},
		{"short password", model.RegisterUserRequest{Name: "A", Email: "a@b.co", Password: "123"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.req)
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}
}

func TestResolveRejectsBadTokens(t *testing.T) {
	now := time.Now()
	svc, store := newAuth(t, &now)
	ctx := context.Background()

	resp, err := svc.GuestLogin(ctx)
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, "")
	assert.ErrorIs(t, err, model.ErrAuth)
	_, err = svc.Resolve(ctx, "garbage")
	assert.ErrorIs(t, err, model.ErrAuth)

	other := NewAuthService(store, "other-secret", time.Hour, discardLogger())
	forged, err := other.Token(&model.User{ID: resp.User.ID, Role: model.RoleAdmin})
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, forged)
	assert.ErrorIs(t, err, model.ErrAuth)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": resp.User.ID}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, none)
	assert.ErrorIs(t, err, model.ErrAuth)

	ghost, err := svc.Token(&model.User{ID: "deleted-user"})
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, ghost)
	assert.ErrorIs(t, err, model.ErrAuth)

	now = now.Add(2 * time.Hour)
	_, err = svc.Resolve(ctx, resp.Token)
	assert.ErrorIs(t, err, model.ErrAuth)
}

func TestGuestLoginCreatesDistinctUsers(t *testing.T) {
	now := time.Now()
	svc, _ := newAuth(t, &now)
	a, err := svc.GuestLogin(context.Background())
	require.NoError(t, err)
	b, err := svc.GuestLogin(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, a.User.ID, b.User.ID)
	assert.NotEqual(t, a.User.Email, b.User.Email)
	assert.Equal(t, model.RoleUser, a.User.Role)
}

func TestEnsureAdmin(t *testing.T) {
	now := time.Now()
	svc, store := newAuth(t, &now)
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "", "root@example.com", "rootpass"))
	u, err := store.GetUserByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, u.Role)
	assert.Equal(t, "Admin", u.Name)

	require.NoError(t, svc.EnsureAdmin(ctx, "Root", "root@example.com", "other"))
	_, err = svc.Login(ctx, model.LoginRequest{Email: "root@example.com", Password: "rootpass"})
	assert.NoError(t, err)

	resp, err := svc.Register(ctx, model.RegisterUserRequest{Name: "Dee", Email: "dee@example.com", Password: "password"})
	require.NoError(t, err)
	require.NoError(t, svc.EnsureAdmin(ctx, "Dee", "dee@example.com", "ignored"))
	ident, err := svc.Resolve(ctx, resp.Token)
	require.NoError(t, err)
	assert.True(t, ident.IsAdmin())
}

func TestLookupByEmail(t *testing.T) {
	now := time.Now()
	svc, _ := newAuth(t, &now)
	ctx := context.Background()

	missing, err := svc.LookupByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	resp, err := svc.Register(ctx, model.RegisterUserRequest{Name: "Eve", Email: "eve@example.com", Password: "password"})
	require.NoError(t, err)
	found, err := svc.LookupByEmail(ctx, "EVE@example.com")
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, found.ID)
}
