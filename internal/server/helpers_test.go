package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"indiverse/internal/config"
	"indiverse/internal/database"
	"indiverse/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testOrigin = "http://localhost:5173"

type testEnv struct {
	server *Server
	db     *gorm.DB
	redis  *redis.Client
	mr     *miniredis.Miniredis
}

func testConfig() *config.Config {
	return &config.Config{
		Port:                  "0",
		Env:                   "test",
		JWTSecret:             "server-test-secret-0123456789abcdef",
		JWTIssuer:             "indiverse-api",
		JWTAudience:           "indiverse-app",
		JWTTTLHours:           1,
		CachePostTTLSeconds:   60,
		FeedMaxRetries:        5,
		AllowedOrigins:        testOrigin,
		RequestTimeoutSeconds: 5,
		FeatureFlags:          "feed_events=on",
	}
}

// newTestEnv builds a Server on an in-memory SQLite database and miniredis.
// opts adjust the config before the server is built.
func newTestEnv(t *testing.T, opts ...func(*config.Config)) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	srv, err := NewServer(cfg, Deps{
		DB:     db,
		Redis:  rdb,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	return &testEnv{server: srv, db: db, redis: rdb, mr: mr}
}

// do sends a request through the app. body is JSON-encoded when non-nil.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.App().Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// signup registers a user and returns a token for it.
func (e *testEnv) signup(t *testing.T, username, email string) (string, uint) {
	t.Helper()

	resp := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "heritage2024",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    email,
		"password": "heritage2024",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}](t, resp)
	return out.Token, out.User.ID
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func decodeError(t *testing.T, resp *http.Response) models.ErrorResponse {
	t.Helper()
	return decode[models.ErrorResponse](t, resp)
}
