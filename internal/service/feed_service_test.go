package service

import (
	"context"
	"testing"
	"time"

	"indiverse/internal/cache"
	"indiverse/internal/models"
	"indiverse/internal/notifications"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	asha  = &models.Identity{UserID: 1, Username: "asha"}
	ravi  = &models.Identity{UserID: 2, Username: "ravi"}
	meera = &models.Identity{UserID: 3, Username: "meera"}
)

func feedUsers() *userRepoStub {
	return usersByID(
		models.User{ID: 1, Username: "asha"},
		models.User{ID: 2, Username: "ravi"},
		models.User{ID: 3, Username: "meera"},
	)
}

// postWithComment is post p1 by asha carrying comment c1 by ravi.
func postWithComment() *models.Post {
	p := &models.Post{ID: "p1", URL: "x.jpg", AuthorID: 1}
	p.AppendComment(models.Comment{ID: "c1", Text: "nice", Author: ravi.Snapshot()})
	p.Normalize()
	return p
}

func fixedPostRepo(p *models.Post) *postRepoStub {
	return &postRepoStub{
		getByIDFn: func(_ context.Context, id string) (*models.Post, error) {
			if id != p.ID {
				return nil, models.NewNotFoundError("Post", id)
			}
			cp := *p
			return &cp, nil
		},
	}
}

func newFeed(posts *postRepoStub, users *userRepoStub) (*FeedService, *recordingPublisher) {
	pub := &recordingPublisher{}
	return NewFeedService(posts, users, cache.New(nil), FeedServiceConfig{Events: pub}), pub
}

func TestFeedService_CreatePost(t *testing.T) {
	var created *models.Post
	posts := &postRepoStub{createFn: func(_ context.Context, p *models.Post) error {
		p.ID = "new"
		created = p
		return nil
	}}
	svc, pub := newFeed(posts, feedUsers())

	view, err := svc.CreatePost(context.Background(), asha, "  https://img/x.jpg ", "")
	require.NoError(t, err)
	assert.Equal(t, "new", view.ID)
	assert.Equal(t, "https://img/x.jpg", view.URL)
	assert.Equal(t, "", view.Description)
	require.NotNil(t, view.Author)
	assert.Equal(t, models.AuthorSnapshot{ID: 1, Username: "asha"}, *view.Author)
	assert.Equal(t, uint(1), created.AuthorID)
	assert.Equal(t, []string{notifications.EventPostCreated}, pub.types())

	_, err = svc.CreatePost(context.Background(), asha, "   ", "desc")
	assert.True(t, models.HasCode(err, models.CodeValidation))
}

func TestFeedService_ListProjectsAuthorsInOneBatch(t *testing.T) {
	now := time.Now().UTC()
	users := feedUsers()
	batches := 0
	lookup := users.getByIDsFn
	users.getByIDsFn = func(ctx context.Context, ids []uint) ([]models.User, error) {
		batches++
		assert.ElementsMatch(t, []uint{1, 2, 42}, ids, "ids are deduplicated")
		return lookup(ctx, ids)
	}
	posts := &postRepoStub{listFn: func(_ context.Context, limit, offset int) ([]models.Post, error) {
		assert.Equal(t, 10, limit)
		assert.Equal(t, 5, offset)
		return []models.Post{
			{ID: "a", AuthorID: 1, CreatedAt: now},
			{ID: "b", AuthorID: 42, CreatedAt: now.Add(-time.Minute)},
			{ID: "c", AuthorID: 2, CreatedAt: now.Add(-2 * time.Minute)},
			{ID: "d", AuthorID: 1, CreatedAt: now.Add(-3 * time.Minute)},
		}, nil
	}}
	svc, _ := newFeed(posts, users)

	views, err := svc.ListPosts(context.Background(), 10, 5)
	require.NoError(t, err)
	require.Len(t, views, 4)
	assert.Equal(t, 1, batches)
	assert.Equal(t, "asha", views[0].Author.Username)
	assert.Nil(t, views[1].Author, "deleted author projects as null")
	assert.Equal(t, "ravi", views[2].Author.Username)
	assert.NotNil(t, views[3].LikedBy)
	assert.NotNil(t, views[3].Comments)
}

func TestFeedService_GetPostNotFound(t *testing.T) {
	svc, _ := newFeed(fixedPostRepo(postWithComment()), feedUsers())

	_, err := svc.GetPost(context.Background(), "missing")
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	view, err := svc.GetPost(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "asha", view.Author.Username)
}

func TestFeedService_DeletePostRequiresAuthor(t *testing.T) {
	deleted := 0
	posts := fixedPostRepo(postWithComment())
	posts.deleteFn = func(_ context.Context, id string) error {
		deleted++
		return nil
	}
	svc, pub := newFeed(posts, feedUsers())

	err := svc.DeletePost(context.Background(), ravi, "p1")
	assert.True(t, models.HasCode(err, models.CodeForbidden))
	assert.Zero(t, deleted)

	require.NoError(t, svc.DeletePost(context.Background(), asha, "p1"))
	assert.Equal(t, 1, deleted)
	assert.Equal(t, []string{notifications.EventPostDeleted}, pub.types())

	err = svc.DeletePost(context.Background(), asha, "missing")
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestFeedService_ToggleLike(t *testing.T) {
	posts := &postRepoStub{toggleLikeFn: func(_ context.Context, id string, uid uint) (*models.Post, error) {
		if id != "p1" {
			return nil, models.NewNotFoundError("Post", id)
		}
		p := &models.Post{ID: "p1", AuthorID: 1}
		p.ToggleLike(uid)
		return p, nil
	}}
	svc, pub := newFeed(posts, feedUsers())

	view, err := svc.ToggleLike(context.Background(), ravi, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, view.Likes)
	assert.Equal(t, []uint{2}, []uint(view.LikedBy))
	assert.Equal(t, "asha", view.Author.Username)

	require.Len(t, pub.events, 1)
	require.NotNil(t, pub.events[0].Likes)
	assert.Equal(t, 1, *pub.events[0].Likes)
	assert.Equal(t, uint(2), pub.events[0].ActorID)

	_, err = svc.ToggleLike(context.Background(), ravi, "nope")
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestFeedService_AddComment(t *testing.T) {
	var got models.Comment
	posts := &postRepoStub{addCommentFn: func(_ context.Context, id string, c models.Comment) (*models.Post, error) {
		got = c
		p := postWithComment()
		p.AppendComment(c)
		return p, nil
	}}
	svc, _ := newFeed(posts, feedUsers())

	view, err := svc.AddComment(context.Background(), meera, "p1", "  lovely  ")
	require.NoError(t, err)
	require.Len(t, view.Comments, 2)
	assert.Equal(t, "lovely", view.Comments[1].Text)
	assert.Equal(t, models.AuthorSnapshot{ID: 3, Username: "meera"}, got.Author)
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.CreatedAt.IsZero())
	assert.NotNil(t, got.Replies)

	_, err = svc.AddComment(context.Background(), meera, "p1", " ")
	assert.True(t, models.HasCode(err, models.CodeValidation))
}

func TestFeedService_DeleteCommentAuthorization(t *testing.T) {
	removed := 0
	posts := fixedPostRepo(postWithComment())
	posts.removeCommentFn = func(_ context.Context, postID, commentID string) (*models.Post, error) {
		removed++
		p := postWithComment()
		p.RemoveComment(commentID)
		return p, nil
	}
	svc, _ := newFeed(posts, feedUsers())
	ctx := context.Background()

	_, err := svc.DeleteComment(ctx, meera, "p1", "c1")
	assert.True(t, models.HasCode(err, models.CodeForbidden), "third party")

	view, err := svc.DeleteComment(ctx, ravi, "p1", "c1")
	require.NoError(t, err, "comment author")
	assert.Empty(t, view.Comments)

	_, err = svc.DeleteComment(ctx, asha, "p1", "c1")
	require.NoError(t, err, "post author")
	assert.Equal(t, 2, removed)

	_, err = svc.DeleteComment(ctx, asha, "p1", "c404")
	assert.True(t, models.HasCode(err, models.CodeNotFound))
	_, err = svc.DeleteComment(ctx, asha, "p404", "c1")
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestFeedService_AddReplyProjection(t *testing.T) {
	owner := postWithComment()
	other := &models.Post{ID: "p2", URL: "y.jpg", AuthorID: 2}

	posts := &postRepoStub{
		addReplyFn: func(_ context.Context, commentID string, r models.Reply) (*models.Post, error) {
			if commentID != "c1" {
				return nil, models.NewNotFoundError("Comment", commentID)
			}
			p := postWithComment()
			p.AppendReply(commentID, r)
			return p, nil
		},
		getByIDFn: func(_ context.Context, id string) (*models.Post, error) {
			switch id {
			case owner.ID:
				return postWithComment(), nil
			case other.ID:
				cp := *other
				return &cp, nil
			}
			return nil, models.NewNotFoundError("Post", id)
		},
	}
	svc, pub := newFeed(posts, feedUsers())
	ctx := context.Background()

	view, err := svc.AddReply(ctx, meera, "p1", "c1", "agreed")
	require.NoError(t, err)
	assert.Equal(t, "p1", view.ID)
	require.Len(t, view.Comments[0].Replies, 1)
	assert.Equal(t, "meera", view.Comments[0].Replies[0].Author.Username)

	view, err = svc.AddReply(ctx, meera, "gone", "c1", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "p1", view.ID, "falls back to the owning post")

	view, err = svc.AddReply(ctx, meera, "p2", "c1", "elsewhere")
	require.NoError(t, err)
	assert.Equal(t, "p2", view.ID, "projects the post named in the request")
	assert.Equal(t, "ravi", view.Author.Username)

	_, err = svc.AddReply(ctx, meera, "p1", "c404", "lost")
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	_, err = svc.AddReply(ctx, meera, "p1", "c1", "")
	assert.True(t, models.HasCode(err, models.CodeValidation))

	for _, ev := range pub.events {
		assert.Equal(t, notifications.EventReplyAdded, ev.Type)
		assert.Equal(t, "p1", ev.PostID)
	}
}

func TestFeedService_CacheInvalidatedOnMutation(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	reads := 0
	lists := 0
	posts := &postRepoStub{
		getByIDFn: func(_ context.Context, id string) (*models.Post, error) {
			reads++
			return postWithComment(), nil
		},
		listFn: func(context.Context, int, int) ([]models.Post, error) {
			lists++
			return []models.Post{*postWithComment()}, nil
		},
		toggleLikeFn: func(_ context.Context, _ string, uid uint) (*models.Post, error) {
			p := postWithComment()
			p.ToggleLike(uid)
			return p, nil
		},
	}
	svc := NewFeedService(posts, feedUsers(), cache.New(rdb), FeedServiceConfig{PostTTL: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.GetPost(ctx, "p1")
		require.NoError(t, err)
		_, err = svc.ListPosts(ctx, 20, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, reads)
	assert.Equal(t, 1, lists)

	_, err := svc.ToggleLike(ctx, ravi, "p1")
	require.NoError(t, err)

	_, err = svc.GetPost(ctx, "p1")
	require.NoError(t, err)
	_, err = svc.ListPosts(ctx, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, reads)
	assert.Equal(t, 2, lists)
}

func TestFeedService_InFlightReadCannotRecacheStalePost(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	var svc *FeedService
	state := postWithComment()
	reads := 0
	posts := &postRepoStub{
		getByIDFn: func(context.Context, string) (*models.Post, error) {
			reads++
			snapshot := *state
			if reads == 1 {
				// A like commits while this read is still in flight.
				_, err := svc.ToggleLike(ctx, ravi, "p1")
				require.NoError(t, err)
			}
			return &snapshot, nil
		},
		toggleLikeFn: func(_ context.Context, _ string, uid uint) (*models.Post, error) {
			state.ToggleLike(uid)
			cp := *state
			return &cp, nil
		},
	}
	svc = NewFeedService(posts, feedUsers(), cache.New(rdb), FeedServiceConfig{PostTTL: time.Minute})

	stale, err := svc.GetPost(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, stale.Likes)
	assert.True(t, mr.Exists(cache.PostKey("p1", 0)), "the in-flight read cached under the old generation")

	fresh, err := svc.GetPost(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, reads)
	assert.Equal(t, 1, fresh.Likes)
	assert.Equal(t, []uint{ravi.UserID}, []uint(fresh.LikedBy))

	_, err = svc.GetPost(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, reads, "the fresh copy is cached under the new generation")
}
