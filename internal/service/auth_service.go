// Package service contains the business rules behind the HTTP handlers.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"indiverse/internal/cache"
	"indiverse/internal/models"
	"indiverse/internal/repository"
	"indiverse/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const bearerPrefix = "Bearer "

// AuthConfig holds token signing parameters.
type AuthConfig struct {
	Secret     string
	Issuer     string
	Audience   string
	TTL        time.Duration
	BcryptCost int
}

type tokenClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AuthService registers users, issues bearer tokens and resolves them back
// to identities.
type AuthService struct {
	users repository.UserRepository
	cache *cache.Cache
	cfg   AuthConfig
	now   func() time.Time
}

// NewAuthService creates an AuthService. c may wrap a nil client, in which
// case logout cannot revoke tokens.
func NewAuthService(users repository.UserRepository, c *cache.Cache, cfg AuthConfig) *AuthService {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{users: users, cache: c, cfg: cfg, now: time.Now}
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register validates the input and stores a new user with a hashed password.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if username == "" || email == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email, and password are required")
	}
	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Email already exists", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{Username: username, Email: email, Password: string(hash)}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	user.Password = ""
	return user, nil
}

// Login checks the password and returns a signed token for the user.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, models.NewValidationError("Email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, models.NewInvalidCredentialsError()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, models.NewInvalidCredentialsError()
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return "", nil, err
	}
	user.Password = ""
	return token, user, nil
}

// IssueToken signs an HS256 token for user.
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	if s.cfg.Secret == "" {
		return "", models.NewInternalError(errors.New("jwt secret not configured"))
	}
	now := s.now()
	claims := tokenClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TTL)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return signed, nil
}

// Authenticate resolves an Authorization header value to the acting user.
func (s *AuthService) Authenticate(ctx context.Context, authorizationHeader string) (*models.Identity, error) {
	claims, err := s.parse(authorizationHeader)
	if err != nil {
		return nil, err
	}
	if s.revoked(ctx, claims.ID) {
		return nil, models.NewInvalidCredentialError(errors.New("token revoked"))
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return nil, models.NewInvalidCredentialError(fmt.Errorf("bad subject %q", claims.Subject))
	}

	user, err := s.users.GetByID(ctx, uint(userID))
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil, models.NewUnknownSubjectError()
		}
		return nil, err
	}
	return &models.Identity{UserID: user.ID, Username: user.Username}, nil
}

// Logout revokes the presented token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, authorizationHeader string) error {
	claims, err := s.parse(authorizationHeader)
	if err != nil {
		return err
	}
	rdb := s.cache.Client()
	if rdb == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := rdb.Set(ctx, cache.RevokedTokenKey(claims.ID), 1, ttl).Err(); err != nil {
		return models.NewStoreUnavailableError(err)
	}
	return nil
}

// Me returns the stored profile of the caller.
func (s *AuthService) Me(ctx context.Context, identity *models.Identity) (*models.User, error) {
	user, err := s.users.GetByID(ctx, identity.UserID)
	if models.HasCode(err, models.CodeNotFound) {
		return nil, models.NewUnknownSubjectError()
	}
	return user, err
}

func (s *AuthService) parse(header string) (*tokenClaims, error) {
	raw, ok := strings.CutPrefix(header, bearerPrefix)
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return nil, models.NewMissingCredentialError()
	}

	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return []byte(s.cfg.Secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, models.NewInvalidCredentialError(err)
	}
	return claims, nil
}

// revoked reports false when Redis is absent or the lookup fails.
func (s *AuthService) revoked(ctx context.Context, jti string) bool {
	rdb := s.cache.Client()
	if rdb == nil || jti == "" {
		return false
	}
	n, err := rdb.Exists(ctx, cache.RevokedTokenKey(jti)).Result()
	return err == nil && n > 0
}
