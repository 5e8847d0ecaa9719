package seed

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"indiverse/internal/models"
	"indiverse/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Seeder writes catalog content and demo community data through the
// repositories, so the feed goes to whichever store is configured.
type Seeder struct {
	catalog repository.CatalogRepository
	users   repository.UserRepository
	posts   repository.PostRepository
	logger  *slog.Logger
}

// NewSeeder creates a Seeder.
func NewSeeder(catalog repository.CatalogRepository, users repository.UserRepository, posts repository.PostRepository, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{catalog: catalog, users: users, posts: posts, logger: logger}
}

// SeedCatalog upserts every non-empty section of cat. Running it again with
// the same data leaves the catalog unchanged.
func (s *Seeder) SeedCatalog(ctx context.Context, cat *Catalog) error {
	sections := []struct {
		name    string
		count   int
		records any
	}{
		{HeritageFile, len(cat.Sites), &cat.Sites},
		{BlogsFile, len(cat.Blogs), &cat.Blogs},
		{StatesFile, len(cat.States), &cat.States},
		{ToursFile, len(cat.Tours), &cat.Tours},
		{QuizzesFile, len(cat.Quizzes), &cat.Quizzes},
	}
	for _, sec := range sections {
		if sec.count == 0 {
			s.logger.Info("no catalog data", slog.String("section", sec.name))
			continue
		}
		if err := s.catalog.Upsert(ctx, sec.records); err != nil {
			return fmt.Errorf("seed %s: %w", sec.name, err)
		}
		s.logger.Info("seeded catalog", slog.String("section", sec.name), slog.Int("records", sec.count))
	}
	return nil
}

// CommunityOptions sizes the generated community.
type CommunityOptions struct {
	Users        int
	PostsPerUser int
	MaxComments  int // per post
	// Password is shared by every generated account.
	Password   string
	BcryptCost int
	// Seed fixes the generated content; 0 picks a random seed.
	Seed int64
}

// CommunityResult lists what SeedCommunity created or reused.
type CommunityResult struct {
	Users    []models.User
	Posts    []string
	Comments int
	Replies  int
	Likes    int
}

var usernameStrip = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// SeedCommunity creates fake users with posts, comments, replies and likes.
// Users whose email already exists are reused.
func (s *Seeder) SeedCommunity(ctx context.Context, opts CommunityOptions) (*CommunityResult, error) {
	if opts.Users <= 0 {
		return &CommunityResult{}, nil
	}
	if opts.Password == "" {
		opts.Password = "heritage2024"
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	faker := gofakeit.New(opts.Seed)

	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	res := &CommunityResult{}
	for i := range opts.Users {
		user, err := s.ensureUser(ctx, faker, i, string(hash))
		if err != nil {
			return nil, err
		}
		res.Users = append(res.Users, *user)
	}

	now := time.Now().UTC()
	for _, author := range res.Users {
		for range opts.PostsPerUser {
			post := &models.Post{
				URL:         fmt.Sprintf("https://picsum.photos/seed/%s/800/600", faker.UUID()),
				Description: faker.Sentence(faker.Number(6, 14)),
				AuthorID:    author.ID,
				CreatedAt:   now.Add(-time.Duration(faker.Number(1, 90*24)) * time.Hour),
			}
			if err := s.posts.Create(ctx, post); err != nil {
				return nil, fmt.Errorf("create post: %w", err)
			}
			res.Posts = append(res.Posts, post.ID)

			if err := s.discuss(ctx, faker, post, opts.MaxComments, res); err != nil {
				return nil, err
			}
		}
	}

	s.logger.Info("seeded community",
		slog.Int("users", len(res.Users)),
		slog.Int("posts", len(res.Posts)),
		slog.Int("comments", res.Comments),
		slog.Int("replies", res.Replies),
		slog.Int("likes", res.Likes),
	)
	return res, nil
}

func (s *Seeder) ensureUser(ctx context.Context, faker *gofakeit.Faker, i int, hash string) (*models.User, error) {
	username := fakeUsername(faker.Username(), i)
	email := fmt.Sprintf("%s@indiverse.test", strings.ToLower(username))

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	user := &models.User{Username: username, Email: email, Password: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user %s: %w", username, err)
	}
	return user, nil
}

// discuss adds comments, replies and likes from random community members.
func (s *Seeder) discuss(ctx context.Context, faker *gofakeit.Faker, post *models.Post, maxComments int, res *CommunityResult) error {
	users := res.Users
	pick := func() models.User { return users[faker.Number(0, len(users)-1)] }
	at := post.CreatedAt

	for range faker.Number(0, max(maxComments, 0)) {
		author := pick()
		at = at.Add(time.Duration(faker.Number(1, 600)) * time.Minute)
		comment := models.Comment{
			ID:        uuid.NewString(),
			Text:      faker.Sentence(faker.Number(3, 12)),
			Author:    models.AuthorSnapshot{ID: author.ID, Username: author.Username},
			CreatedAt: at,
			Replies:   []models.Reply{},
		}
		if _, err := s.posts.AddComment(ctx, post.ID, comment); err != nil {
			return fmt.Errorf("add comment: %w", err)
		}
		res.Comments++

		if faker.Bool() {
			replier := pick()
			reply := models.Reply{
				ID:        uuid.NewString(),
				Text:      faker.Sentence(faker.Number(2, 8)),
				Author:    models.AuthorSnapshot{ID: replier.ID, Username: replier.Username},
				CreatedAt: at.Add(time.Duration(faker.Number(1, 120)) * time.Minute),
			}
			if _, err := s.posts.AddReply(ctx, comment.ID, reply); err != nil {
				return fmt.Errorf("add reply: %w", err)
			}
			res.Replies++
		}
	}

	for _, u := range users {
		if faker.Number(0, 99) >= 30 {
			continue
		}
		if _, err := s.posts.ToggleLike(ctx, post.ID, u.ID); err != nil {
			return fmt.Errorf("like post: %w", err)
		}
		res.Likes++
	}
	return nil
}

// fakeUsername makes a generated name pass username validation and keeps it
// unique by index.
func fakeUsername(name string, i int) string {
	suffix := fmt.Sprintf("_%d", i)
	base := usernameStrip.ReplaceAllString(name, "")
	if len(base) < 3 {
		base = "user" + base
	}
	if len(base)+len(suffix) > 30 {
		base = base[:30-len(suffix)]
	}
	return base + suffix
}
