package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"indiverse/internal/cache"
	"indiverse/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testAuthConfig() AuthConfig {
	return AuthConfig{
		Secret:     "test-secret-that-is-long-enough-123456",
		Issuer:     "indiverse-api",
		Audience:   "indiverse-app",
		TTL:        time.Hour,
		BcryptCost: bcrypt.MinCost,
	}
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newAuthWithUser(t *testing.T, c *cache.Cache) (*AuthService, models.User) {
	t.Helper()
	user := models.User{ID: 7, Username: "asha", Email: "asha@example.com", Password: hashed(t, "heritage2024")}
	return NewAuthService(usersByID(user), c, testAuthConfig()), user
}

func TestAuthService_Register(t *testing.T) {
	var stored *models.User
	users := usersByID(models.User{ID: 1, Username: "taken", Email: "taken@example.com"})
	users.createFn = func(_ context.Context, u *models.User) error {
		u.ID = 2
		stored = u
		return nil
	}
	svc := NewAuthService(users, cache.New(nil), testAuthConfig())

	user, err := svc.Register(context.Background(), RegisterInput{
		Username: " ravi_k ",
		Email:    "Ravi@Example.com",
		Password: "monsoon2024",
	})
	require.NoError(t, err)
	assert.Equal(t, uint(2), user.ID)
	assert.Equal(t, "ravi_k", user.Username)
	assert.Equal(t, "ravi@example.com", user.Email)
	assert.Empty(t, user.Password, "hash is not returned")

	require.NotNil(t, stored)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("monsoon2024")))
}

func TestAuthService_RegisterRejects(t *testing.T) {
	users := usersByID(models.User{ID: 1, Username: "taken", Email: "taken@example.com"})
	svc := NewAuthService(users, cache.New(nil), testAuthConfig())

	tests := []struct {
		name string
		in   RegisterInput
		code string
	}{
		{"missing fields", RegisterInput{Username: "a"}, models.CodeValidation},
		{"bad username", RegisterInput{Username: "no spaces", Email: "a@b.io", Password: "abcdefg1"}, models.CodeValidation},
		{"bad email", RegisterInput{Username: "valid", Email: "nope", Password: "abcdefg1"}, models.CodeValidation},
		{"weak password", RegisterInput{Username: "valid", Email: "a@b.io", Password: "short"}, models.CodeValidation},
		{"duplicate email", RegisterInput{Username: "valid", Email: "taken@example.com", Password: "abcdefg1"}, models.CodeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.in)
			require.Error(t, err)
			assert.True(t, models.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestAuthService_LoginAndAuthenticate(t *testing.T) {
	svc, user := newAuthWithUser(t, cache.New(nil))
	ctx := context.Background()

	token, got, err := svc.Login(ctx, "ASHA@example.com", "heritage2024")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, got.ID)
	assert.Empty(t, got.Password)

	identity, err := svc.Authenticate(ctx, "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, models.Identity{UserID: 7, Username: "asha"}, *identity)
}

func TestAuthService_LoginFailures(t *testing.T) {
	svc, _ := newAuthWithUser(t, cache.New(nil))
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "asha@example.com", "wrong-password1")
	assert.True(t, models.HasCode(err, models.CodeInvalidCredentials))

	_, _, err = svc.Login(ctx, "nobody@example.com", "heritage2024")
	assert.True(t, models.HasCode(err, models.CodeInvalidCredentials))

	_, _, err = svc.Login(ctx, "", "")
	assert.True(t, models.HasCode(err, models.CodeValidation))
}

func TestAuthService_AuthenticateFailures(t *testing.T) {
	svc, user := newAuthWithUser(t, cache.New(nil))
	ctx := context.Background()

	valid, err := svc.IssueToken(&user)
	require.NoError(t, err)

	otherSecret := NewAuthService(usersByID(user), cache.New(nil), AuthConfig{
		Secret: "a-completely-different-secret-value", Issuer: "indiverse-api", Audience: "indiverse-app",
	})
	forged, err := otherSecret.IssueToken(&user)
	require.NoError(t, err)

	wrongIssuer := NewAuthService(usersByID(user), cache.New(nil), AuthConfig{
		Secret: testAuthConfig().Secret, Issuer: "someone-else", Audience: "indiverse-app",
	})
	foreign, err := wrongIssuer.IssueToken(&user)
	require.NoError(t, err)

	expiredSvc := NewAuthService(usersByID(user), cache.New(nil), testAuthConfig())
	expiredSvc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredSvc.IssueToken(&user)
	require.NoError(t, err)

	ghost, err := svc.IssueToken(&models.User{ID: 99, Username: "ghost"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"no header", "", models.CodeMissingCredential},
		{"wrong scheme", "Basic " + valid, models.CodeMissingCredential},
		{"empty bearer", "Bearer ", models.CodeMissingCredential},
		{"garbage", "Bearer not.a.token", models.CodeInvalidCredential},
		{"bad signature", "Bearer " + forged, models.CodeInvalidCredential},
		{"wrong issuer", "Bearer " + foreign, models.CodeInvalidCredential},
		{"expired", "Bearer " + expired, models.CodeInvalidCredential},
		{"unknown subject", "Bearer " + ghost, models.CodeUnknownSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := svc.Authenticate(ctx, tt.header)
			assert.Nil(t, identity)
			assert.True(t, models.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestAuthService_AuthenticatePassesStoreErrorsThrough(t *testing.T) {
	user := models.User{ID: 7, Username: "asha"}
	users := usersByID(user)
	users.getByIDFn = func(context.Context, uint) (*models.User, error) {
		return nil, models.NewStoreUnavailableError(errors.New("dial tcp: refused"))
	}
	svc := NewAuthService(users, cache.New(nil), testAuthConfig())
	token, err := svc.IssueToken(&user)
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), "Bearer "+token)
	assert.True(t, models.HasCode(err, models.CodeStoreUnavailable))
}

func TestAuthService_LogoutRevokesToken(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc, user := newAuthWithUser(t, cache.New(rdb))
	ctx := context.Background()

	token, err := svc.IssueToken(&user)
	require.NoError(t, err)
	header := "Bearer " + token

	_, err = svc.Authenticate(ctx, header)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, header))

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Greater(t, mr.TTL(keys[0]), 59*time.Minute)

	_, err = svc.Authenticate(ctx, header)
	assert.True(t, models.HasCode(err, models.CodeInvalidCredential))

	other, err := svc.IssueToken(&user)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "Bearer "+other)
	assert.NoError(t, err, "only the logged-out token is revoked")
}

func TestAuthService_Me(t *testing.T) {
	svc, _ := newAuthWithUser(t, cache.New(nil))

	user, err := svc.Me(context.Background(), &models.Identity{UserID: 7})
	require.NoError(t, err)
	assert.Equal(t, "asha", user.Username)

	_, err = svc.Me(context.Background(), &models.Identity{UserID: 8})
	assert.True(t, models.HasCode(err, models.CodeUnknownSubject))
}
