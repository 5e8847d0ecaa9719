package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"indiverse/internal/cache"
	"indiverse/internal/models"
	"indiverse/internal/notifications"
	"indiverse/internal/observability"
	"indiverse/internal/repository"

	"github.com/google/uuid"
)

const (
	maxURLLength         = 2048
	maxDescriptionLength = 2000
	maxCommentLength     = 1000
)

// EventPublisher receives committed feed mutations.
type EventPublisher interface {
	Publish(ctx context.Context, ev notifications.FeedEvent) error
}

// FeedService implements the community feed: posts, likes, comments and
// replies, each returned with its author resolved.
type FeedService struct {
	posts   repository.PostRepository
	users   repository.UserRepository
	cache   *cache.Cache
	postTTL time.Duration
	events  EventPublisher
	logger  *slog.Logger
	now     func() time.Time
}

type FeedServiceConfig struct {
	// PostTTL bounds how long post documents and list pages stay cached.
	PostTTL time.Duration
	Events  EventPublisher
	Logger  *slog.Logger
}

func NewFeedService(posts repository.PostRepository, users repository.UserRepository, c *cache.Cache, cfg FeedServiceConfig) *FeedService {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &FeedService{
		posts:   posts,
		users:   users,
		cache:   c,
		postTTL: cfg.PostTTL,
		events:  cfg.Events,
		logger:  cfg.Logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ListPosts returns a page of posts newest first.
func (s *FeedService) ListPosts(ctx context.Context, limit, offset int) ([]*models.PostView, error) {
	gen := s.cache.Generation(ctx, cache.PostListGeneration)

	var posts []models.Post
	err := s.cache.Aside(ctx, "post_list", cache.PostListKey(gen, limit, offset), &posts, s.postTTL, func() error {
		var err error
		posts, err = s.posts.List(ctx, limit, offset)
		return err
	})
	if err != nil {
		return nil, err
	}

	ptrs := make([]*models.Post, len(posts))
	for i := range posts {
		ptrs[i] = &posts[i]
	}
	return s.project(ctx, ptrs...)
}

// GetPost returns one post.
func (s *FeedService) GetPost(ctx context.Context, postID string) (*models.PostView, error) {
	gen := s.cache.Generation(ctx, cache.PostGeneration(postID))

	var post models.Post
	err := s.cache.Aside(ctx, "post", cache.PostKey(postID, gen), &post, s.postTTL, func() error {
		found, err := s.posts.GetByID(ctx, postID)
		if err != nil {
			return err
		}
		post = *found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.projectOne(ctx, &post)
}

// CreatePost stores a new post authored by identity.
func (s *FeedService) CreatePost(ctx context.Context, identity *models.Identity, url, description string) (view *models.PostView, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "feed", "CreatePost")
	defer func() { observability.EndSpan(span, err) }()
	defer func() { observability.RecordFeedMutation("create_post", err) }()

	url = strings.TrimSpace(url)
	description = strings.TrimSpace(description)
	if url == "" {
		return nil, models.NewValidationError("Image URL is required")
	}
	if len(url) > maxURLLength {
		return nil, models.NewValidationError("Image URL is too long")
	}
	if len(description) > maxDescriptionLength {
		return nil, models.NewValidationError("Description too long (max 2000 characters)")
	}

	post := &models.Post{
		URL:         url,
		Description: description,
		AuthorID:    identity.UserID,
		CreatedAt:   s.now(),
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.publish(ctx, notifications.FeedEvent{Type: notifications.EventPostCreated, PostID: post.ID, ActorID: identity.UserID})

	author := identity.Snapshot()
	return models.NewPostView(post, &author), nil
}

// DeletePost removes a post owned by identity.
func (s *FeedService) DeletePost(ctx context.Context, identity *models.Identity, postID string) (err error) {
	ctx, span := observability.StartServiceSpan(ctx, "feed", "DeletePost", observability.PostIDAttr(postID))
	defer func() { observability.EndSpan(span, err) }()
	defer func() { observability.RecordFeedMutation("delete_post", err) }()

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != identity.UserID {
		return models.NewForbiddenError("You can only delete your own posts")
	}
	if err := s.posts.Delete(ctx, postID); err != nil {
		return err
	}

	s.invalidate(ctx, postID)
	s.publish(ctx, notifications.FeedEvent{Type: notifications.EventPostDeleted, PostID: postID, ActorID: identity.UserID})
	return nil
}

// ToggleLike likes the post for identity, or removes an existing like.
func (s *FeedService) ToggleLike(ctx context.Context, identity *models.Identity, postID string) (view *models.PostView, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "feed", "ToggleLike", observability.PostIDAttr(postID))
	defer func() { observability.EndSpan(span, err) }()
	defer func() { observability.RecordFeedMutation("toggle_like", err) }()

	post, err := s.posts.ToggleLike(ctx, postID, identity.UserID)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, postID)
	likes := post.Likes
	evType := notifications.EventPostUnliked
	if post.LikedByUser(identity.UserID) {
		evType = notifications.EventPostLiked
	}
	s.publish(ctx, notifications.FeedEvent{Type: evType, PostID: postID, ActorID: identity.UserID, Likes: &likes})
	return s.projectOne(ctx, post)
}

// AddComment appends a comment by identity to the post.
func (s *FeedService) AddComment(ctx context.Context, identity *models.Identity, postID, text string) (view *models.PostView, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "feed", "AddComment", observability.PostIDAttr(postID))
	defer func() { observability.EndSpan(span, err) }()
	defer func() { observability.RecordFeedMutation("add_comment", err) }()

	text, err = validateText(text, "Comment")
	if err != nil {
		return nil, err
	}

	comment := models.Comment{
		ID:        uuid.NewString(),
		Text:      text,
		Author:    identity.Snapshot(),
		CreatedAt: s.now(),
		Replies:   []models.Reply{},
	}
	post, err := s.posts.AddComment(ctx, postID, comment)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, postID)
	s.publish(ctx, notifications.FeedEvent{Type: notifications.EventCommentAdded, PostID: postID, CommentID: comment.ID, ActorID: identity.UserID})
	return s.projectOne(ctx, post)
}

// DeleteComment removes a comment. The post author may remove any comment on
// the post; anyone else only their own.
func (s *FeedService) DeleteComment(ctx context.Context, identity *models.Identity, postID, commentID string) (view *models.PostView, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "feed", "DeleteComment", observability.PostIDAttr(postID))
	defer func() { observability.EndSpan(span, err) }()
	defer func() { observability.RecordFeedMutation("delete_comment", err) }()

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	comment := post.FindComment(commentID)
	if comment == nil {
		return nil, models.NewNotFoundError("Comment", commentID)
	}
	if post.AuthorID != identity.UserID && comment.Author.ID != identity.UserID {
		return nil, models.NewForbiddenError("You can only delete your own comments")
	}

	updated, err := s.posts.RemoveComment(ctx, postID, commentID)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, postID)
	s.publish(ctx, notifications.FeedEvent{Type: notifications.EventCommentDeleted, PostID: postID, CommentID: commentID, ActorID: identity.UserID})
	return s.projectOne(ctx, updated)
}

// AddReply attaches a reply to the comment, wherever it lives. The result is
// the projection of postID, or of the post owning the comment when postID
// does not exist.
func (s *FeedService) AddReply(ctx context.Context, identity *models.Identity, postID, commentID, text string) (view *models.PostView, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "feed", "AddReply", observability.PostIDAttr(postID))
	defer func() { observability.EndSpan(span, err) }()
	defer func() { observability.RecordFeedMutation("add_reply", err) }()

	text, err = validateText(text, "Reply")
	if err != nil {
		return nil, err
	}

	reply := models.Reply{
		ID:        uuid.NewString(),
		Text:      text,
		Author:    identity.Snapshot(),
		CreatedAt: s.now(),
	}
	owner, err := s.posts.AddReply(ctx, commentID, reply)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, owner.ID, postID)
	s.publish(ctx, notifications.FeedEvent{Type: notifications.EventReplyAdded, PostID: owner.ID, CommentID: commentID, ReplyID: reply.ID, ActorID: identity.UserID})

	if owner.ID == postID {
		return s.projectOne(ctx, owner)
	}
	target, err := s.posts.GetByID(ctx, postID)
	if models.HasCode(err, models.CodeNotFound) {
		return s.projectOne(ctx, owner)
	}
	if err != nil {
		return nil, err
	}
	return s.projectOne(ctx, target)
}

func validateText(text, what string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", models.NewValidationError(what + " text is required")
	}
	if len([]rune(text)) > maxCommentLength {
		return "", models.NewValidationError(what + " too long (max 1000 characters)")
	}
	return text, nil
}

func (s *FeedService) projectOne(ctx context.Context, post *models.Post) (*models.PostView, error) {
	views, err := s.project(ctx, post)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// project resolves the authors of posts with a single batch lookup. Authors
// that no longer exist project as nil.
func (s *FeedService) project(ctx context.Context, posts ...*models.Post) ([]*models.PostView, error) {
	ids := make([]uint, 0, len(posts))
	seen := make(map[uint]struct{}, len(posts))
	for _, p := range posts {
		if _, ok := seen[p.AuthorID]; ok {
			continue
		}
		seen[p.AuthorID] = struct{}{}
		ids = append(ids, p.AuthorID)
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	authors := make(map[uint]*models.AuthorSnapshot, len(users))
	for _, u := range users {
		authors[u.ID] = &models.AuthorSnapshot{ID: u.ID, Username: u.Username}
	}

	views := make([]*models.PostView, len(posts))
	for i, p := range posts {
		views[i] = models.NewPostView(p, authors[p.AuthorID])
	}
	return views, nil
}

// invalidate moves the given posts and the list to a new generation, so
// copies cached by reads still in flight are never served, then drops the
// copies under the old generation.
func (s *FeedService) invalidate(ctx context.Context, postIDs ...string) {
	keys := make([]string, 0, len(postIDs))
	for _, id := range postIDs {
		genKey := cache.PostGeneration(id)
		keys = append(keys, cache.PostKey(id, s.cache.Generation(ctx, genKey)))
		s.cache.Bump(ctx, genKey)
	}
	s.cache.Invalidate(ctx, keys...)
	s.cache.Bump(ctx, cache.PostListGeneration)
}

func (s *FeedService) publish(ctx context.Context, ev notifications.FeedEvent) {
	if s.events == nil {
		return
	}
	ev.At = s.now()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "feed event not published",
			slog.String("type", ev.Type),
			slog.String("post_id", ev.PostID),
			slog.String("error", err.Error()),
		)
	}
}
