package seed

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"indiverse/internal/cache"
	"indiverse/internal/database"
	"indiverse/internal/models"
	"indiverse/internal/repository"
	"indiverse/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSeeder(t *testing.T) (*Seeder, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewSeeder(
		repository.NewCatalogRepository(db),
		repository.NewUserRepository(db, cache.New(nil)),
		repository.NewPostRepository(db, log),
		log,
	)
	return s, db
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "heritage.json", `[
		{"id": "taj", "name": "Taj Mahal", "city": "Agra"},
		{"id": 7, "name": "Konark"}
	]`)
	writeFile(t, dir, "blogs.json", `[{"id": "b1", "date": "2024-03-01", "title": "Stepwells"}]`)
	writeFile(t, dir, "states.yaml", `
rajasthan:
  name: Rajasthan
  capital: Jaipur
kerala:
  id: kl
  name: Kerala
`)
	writeFile(t, dir, "tours.yml", `
- id: golden
  title: Golden Triangle
  monumentIds: [qutub, taj]
`)
	writeFile(t, dir, "quizzes.json", `{
		"taj": [{"q": "Which river?", "a": "Yamuna"}],
		"konark": {"questions": []}
	}`)

	cat, err := LoadCatalog(dir)
	require.NoError(t, err)

	require.Len(t, cat.Sites, 2)
	assert.Equal(t, "taj", cat.Sites[0].SiteID)
	assert.Equal(t, "Taj Mahal", cat.Sites[0].Name)
	assert.JSONEq(t, `{"id":"taj","name":"Taj Mahal","city":"Agra"}`, string(cat.Sites[0].Document))
	assert.Equal(t, "7", cat.Sites[1].SiteID, "numeric ids are stringified")

	require.Len(t, cat.Blogs, 1)
	assert.Equal(t, "2024-03-01", cat.Blogs[0].Date)

	require.Len(t, cat.States, 2)
	assert.Equal(t, "kl", cat.States[0].ID, "explicit id wins over the key")
	assert.Equal(t, "rajasthan", cat.States[1].ID)
	assert.JSONEq(t, `{"id":"rajasthan","name":"Rajasthan","capital":"Jaipur"}`, string(cat.States[1].Document))

	require.Len(t, cat.Tours, 1)
	assert.Equal(t, []string{"qutub", "taj"}, []string(cat.Tours[0].MonumentIDs))

	require.Len(t, cat.Quizzes, 2)
	assert.Equal(t, "konark", cat.Quizzes[0].MonumentID)
	assert.Equal(t, "taj", cat.Quizzes[1].MonumentID)
	assert.JSONEq(t, `{"monumentId":"taj","questions":[{"q":"Which river?","a":"Yamuna"}]}`, string(cat.Quizzes[1].Document))
}

func TestLoadCatalog_MissingFilesAreEmpty(t *testing.T) {
	cat, err := LoadCatalog(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cat.Sites)
	assert.Empty(t, cat.Quizzes)
}

func TestLoadCatalog_Errors(t *testing.T) {
	tests := []struct {
		name, file, content string
	}{
		{"malformed json", "heritage.json", `[{"id": "taj"`},
		{"missing id", "blogs.json", `[{"title": "no id"}]`},
		{"scalar document", "tours.json", `"tours"`},
		{"non-object entry", "states.json", `["rajasthan"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, tt.file, tt.content)
			_, err := LoadCatalog(dir)
			assert.Error(t, err)
		})
	}
}

func TestSeedCatalog_Upserts(t *testing.T) {
	s, db := newSeeder(t)
	ctx := context.Background()

	dir := t.TempDir()
	writeFile(t, dir, "heritage.json", `[{"id": "taj", "name": "Taj Mahal"}]`)
	cat, err := LoadCatalog(dir)
	require.NoError(t, err)

	require.NoError(t, s.SeedCatalog(ctx, cat))
	require.NoError(t, s.SeedCatalog(ctx, cat), "re-seeding replaces rows")

	var count int64
	require.NoError(t, db.Model(&models.HeritageSite{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSeedCommunity(t *testing.T) {
	s, db := newSeeder(t)
	ctx := context.Background()
	opts := CommunityOptions{Users: 4, PostsPerUser: 2, MaxComments: 3, BcryptCost: bcrypt.MinCost, Seed: 42}

	res, err := s.SeedCommunity(ctx, opts)
	require.NoError(t, err)
	require.Len(t, res.Users, 4)
	assert.Len(t, res.Posts, 8)

	for _, u := range res.Users {
		assert.NoError(t, validation.ValidateUsername(u.Username), u.Username)
		assert.NoError(t, validation.ValidateEmail(u.Email), u.Email)
	}

	var posts []models.Post
	require.NoError(t, db.Find(&posts).Error)
	comments, replies, likes := 0, 0, 0
	for _, p := range posts {
		assert.Equal(t, len(p.LikedBy), p.Likes)
		likes += p.Likes
		comments += len(p.Comments)
		for _, c := range p.Comments {
			replies += len(c.Replies)
		}
	}
	assert.Equal(t, res.Comments, comments)
	assert.Equal(t, res.Replies, replies)
	assert.Equal(t, res.Likes, likes)

	var refs int64
	require.NoError(t, db.Model(&models.CommentRef{}).Count(&refs).Error)
	assert.Equal(t, int64(comments), refs)

	// The same seed yields the same accounts, which are reused.
	again, err := s.SeedCommunity(ctx, opts)
	require.NoError(t, err)
	for i := range res.Users {
		assert.Equal(t, res.Users[i].ID, again.Users[i].ID)
	}
	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Equal(t, int64(4), users)
}

func TestFakeUsername(t *testing.T) {
	assert.Equal(t, "Smith123_0", fakeUsername("Smith123", 0))
	assert.Equal(t, "user_5", fakeUsername("--", 5))
	long := fakeUsername("Abcdefghijklmnopqrstuvwxyz0123456789", 12)
	assert.Len(t, long, 30)
	assert.NoError(t, validation.ValidateUsername(long))
}

func TestLoadCatalog_BundledData(t *testing.T) {
	cat, err := LoadCatalog(filepath.Join("..", "..", "data"))
	require.NoError(t, err)
	assert.NotEmpty(t, cat.Sites)
	assert.NotEmpty(t, cat.Blogs)
	assert.NotEmpty(t, cat.States)
	assert.NotEmpty(t, cat.Quizzes)

	sites := map[string]bool{}
	for _, s := range cat.Sites {
		sites[s.SiteID] = true
	}
	require.NotEmpty(t, cat.Tours)
	for _, tour := range cat.Tours {
		for _, id := range tour.MonumentIDs {
			assert.True(t, sites[id], "tour %s references unknown site %s", tour.ID, id)
		}
	}
}
