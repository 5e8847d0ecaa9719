package repository

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"indiverse/internal/models"
	"indiverse/internal/observability"

	"gorm.io/gorm"
)

// DefaultMaxRetries bounds optimistic update attempts per mutation.
const DefaultMaxRetries = 5

// PostRepository stores post aggregates. Every mutation is atomic per post
// and returns the post as written.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	// List returns posts newest first. limit 0 returns every post from offset.
	List(ctx context.Context, limit, offset int) ([]models.Post, error)
	Delete(ctx context.Context, id string) error
	ToggleLike(ctx context.Context, postID string, userID uint) (*models.Post, error)
	AddComment(ctx context.Context, postID string, comment models.Comment) (*models.Post, error)
	RemoveComment(ctx context.Context, postID, commentID string) (*models.Post, error)
	// AddReply locates the comment by its id alone and returns the post that owns it.
	AddReply(ctx context.Context, commentID string, reply models.Reply) (*models.Post, error)
	Ping(ctx context.Context) error
}

// PostRepositoryOption tunes a post store.
type PostRepositoryOption func(*postOptions)

type postOptions struct {
	maxRetries int
}

// WithMaxRetries sets how many optimistic attempts a mutation makes before
// giving up with a conflict.
func WithMaxRetries(n int) PostRepositoryOption {
	return func(o *postOptions) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}

func buildPostOptions(opts []PostRepositoryOption) postOptions {
	o := postOptions{maxRetries: DefaultMaxRetries}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type postRepository struct {
	db   *gorm.DB
	opts postOptions
	log  *observability.RepoLogger
}

// NewPostRepository returns the SQL-backed post store. The aggregate lives in
// one row; writes are conditional on the row version and retried on conflict.
func NewPostRepository(db *gorm.DB, logger *slog.Logger, opts ...PostRepositoryOption) PostRepository {
	return &postRepository{
		db:   db,
		opts: buildPostOptions(opts),
		log:  observability.NewRepoLogger(logger, "posts"),
	}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", "posts")()

	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return classify(err, "Post", post.ID)
	}
	r.log.LogWrite(ctx, "create", slog.String("post_id", post.ID))
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	defer observability.TrackQuery("get", "posts")()

	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		return nil, classify(err, "Post", id)
	}
	post.Normalize()
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, limit, offset int) ([]models.Post, error) {
	defer observability.TrackQuery("list", "posts")()

	limit, offset = clampPage(limit, offset)
	q := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var posts []models.Post
	err := q.Find(&posts).Error
	if err != nil {
		return nil, classify(err, "Post", "list")
	}
	for i := range posts {
		posts[i].Normalize()
	}
	return posts, nil
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	defer observability.TrackQuery("delete", "posts")()

	// The post row goes first so a missing post touches nothing else.
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.Post{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Post", id)
		}
		return tx.Where("post_id = ?", id).Delete(&models.CommentRef{}).Error
	})
	if err != nil {
		return classify(err, "Post", id)
	}
	r.log.LogWrite(ctx, "delete", slog.String("post_id", id))
	return nil
}

func (r *postRepository) ToggleLike(ctx context.Context, postID string, userID uint) (*models.Post, error) {
	return r.mutate(ctx, "toggle_like", postID, func(p *models.Post) (refChange, error) {
		p.ToggleLike(userID)
		return refChange{}, nil
	})
}

func (r *postRepository) AddComment(ctx context.Context, postID string, comment models.Comment) (*models.Post, error) {
	return r.mutate(ctx, "add_comment", postID, func(p *models.Post) (refChange, error) {
		p.AppendComment(comment)
		return refChange{add: []models.CommentRef{{CommentID: comment.ID, PostID: postID}}}, nil
	})
}

func (r *postRepository) RemoveComment(ctx context.Context, postID, commentID string) (*models.Post, error) {
	return r.mutate(ctx, "remove_comment", postID, func(p *models.Post) (refChange, error) {
		if !p.RemoveComment(commentID) {
			return refChange{}, models.NewNotFoundError("Comment", commentID)
		}
		return refChange{remove: []string{commentID}}, nil
	})
}

func (r *postRepository) AddReply(ctx context.Context, commentID string, reply models.Reply) (*models.Post, error) {
	var ref models.CommentRef
	if err := r.db.WithContext(ctx).First(&ref, "comment_id = ?", commentID).Error; err != nil {
		return nil, classify(err, "Comment", commentID)
	}

	post, err := r.mutate(ctx, "add_reply", ref.PostID, func(p *models.Post) (refChange, error) {
		if !p.AppendReply(commentID, reply) {
			return refChange{}, models.NewNotFoundError("Comment", commentID)
		}
		return refChange{}, nil
	})
	if models.HasCode(err, models.CodeNotFound) {
		// The post behind the index entry is gone; the comment went with it.
		return nil, models.NewNotFoundError("Comment", commentID)
	}
	return post, err
}

func (r *postRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return classify(err, "Post", "ping")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return models.NewStoreUnavailableError(err)
	}
	return nil
}

// refChange lists comment index rows to write with the post update.
type refChange struct {
	add    []models.CommentRef
	remove []string
}

func (c refChange) apply(tx *gorm.DB) error {
	if len(c.add) > 0 {
		if err := tx.Create(&c.add).Error; err != nil {
			return err
		}
	}
	if len(c.remove) > 0 {
		if err := tx.Where("comment_id IN ?", c.remove).Delete(&models.CommentRef{}).Error; err != nil {
			return err
		}
	}
	return nil
}

// mutate loads the post, applies fn, and writes the result only if the row
// version is unchanged since the load. A lost race reloads and retries.
func (r *postRepository) mutate(ctx context.Context, op, postID string, fn func(p *models.Post) (refChange, error)) (post *models.Post, err error) {
	ctx, span := observability.StartRepositorySpan(ctx, r.db.Dialector.Name(), op, "posts")
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery(op, "posts")()

	for attempt := 0; attempt < r.opts.maxRetries; attempt++ {
		if attempt > 0 {
			observability.FeedRetries.WithLabelValues(op).Inc()
			if err := backoff(ctx, attempt); err != nil {
				return nil, classify(err, "Post", postID)
			}
		}

		var current models.Post
		if err := r.db.WithContext(ctx).First(&current, "id = ?", postID).Error; err != nil {
			return nil, classify(err, "Post", postID)
		}
		current.Normalize()

		change, err := fn(&current)
		if err != nil {
			return nil, err
		}

		expected := current.Version
		written := false
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.Post{}).
				Where("id = ? AND version = ?", postID, expected).
				Updates(map[string]any{
					"likes":    current.Likes,
					"liked_by": current.LikedBy,
					"comments": current.Comments,
					"version":  gorm.Expr("version + 1"),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}
			written = true
			return change.apply(tx)
		})
		if err != nil {
			r.log.LogError(ctx, err, op)
			return nil, classify(err, "Post", postID)
		}
		if written {
			current.Version = expected + 1
			r.log.LogWrite(ctx, op, slog.String("post_id", postID), slog.Int("attempt", attempt+1))
			return &current, nil
		}
	}

	return nil, models.NewConflictError("Post was modified concurrently, please retry", nil)
}

// backoff sleeps a short, jittered interval that grows with attempt.
func backoff(ctx context.Context, attempt int) error {
	d := time.Duration(attempt)*2*time.Millisecond + time.Duration(rand.IntN(2000))*time.Microsecond
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
