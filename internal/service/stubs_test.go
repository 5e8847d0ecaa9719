package service

import (
	"context"
	"sync"

	"indiverse/internal/models"
	"indiverse/internal/notifications"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn        func(context.Context, *models.Post) error
	getByIDFn       func(context.Context, string) (*models.Post, error)
	listFn          func(context.Context, int, int) ([]models.Post, error)
	deleteFn        func(context.Context, string) error
	toggleLikeFn    func(context.Context, string, uint) (*models.Post, error)
	addCommentFn    func(context.Context, string, models.Comment) (*models.Post, error)
	removeCommentFn func(context.Context, string, string) (*models.Post, error)
	addReplyFn      func(context.Context, string, models.Reply) (*models.Post, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id string) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) List(ctx context.Context, limit, offset int) ([]models.Post, error) {
	return s.listFn(ctx, limit, offset)
}
func (s *postRepoStub) Delete(ctx context.Context, id string) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) ToggleLike(ctx context.Context, postID string, userID uint) (*models.Post, error) {
	return s.toggleLikeFn(ctx, postID, userID)
}
func (s *postRepoStub) AddComment(ctx context.Context, postID string, c models.Comment) (*models.Post, error) {
	return s.addCommentFn(ctx, postID, c)
}
func (s *postRepoStub) RemoveComment(ctx context.Context, postID, commentID string) (*models.Post, error) {
	return s.removeCommentFn(ctx, postID, commentID)
}
func (s *postRepoStub) AddReply(ctx context.Context, commentID string, r models.Reply) (*models.Post, error) {
	return s.addReplyFn(ctx, commentID, r)
}
func (s *postRepoStub) Ping(context.Context) error { return nil }

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn    func(context.Context, uint) (*models.User, error)
	getByEmailFn func(context.Context, string) (*models.User, error)
	getByIDsFn   func(context.Context, []uint) ([]models.User, error)
	createFn     func(context.Context, *models.User) error
	deleteFn     func(context.Context, uint) error
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	return s.getByIDsFn(ctx, ids)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

// usersByID returns a userRepoStub whose lookups resolve from users.
func usersByID(users ...models.User) *userRepoStub {
	byID := make(map[uint]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			u, ok := byID[id]
			if !ok {
				return nil, models.NewNotFoundError("User", id)
			}
			return &u, nil
		},
		getByEmailFn: func(_ context.Context, email string) (*models.User, error) {
			for _, u := range byID {
				if u.Email == email {
					return &u, nil
				}
			}
			return nil, nil
		},
		getByIDsFn: func(_ context.Context, ids []uint) ([]models.User, error) {
			out := []models.User{}
			for _, id := range ids {
				if u, ok := byID[id]; ok {
					out = append(out, models.User{ID: u.ID, Username: u.Username})
				}
			}
			return out, nil
		},
		createFn: func(_ context.Context, u *models.User) error { return nil },
		deleteFn: func(_ context.Context, _ uint) error { return nil },
	}
}

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []notifications.FeedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev notifications.FeedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}
