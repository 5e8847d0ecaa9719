package notifications

import (
	"context"
	"testing"
	"time"

	"indiverse/internal/featureflags"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestNotifier_NilClientIsNoop(t *testing.T) {
	n := NewNotifier(nil, featureflags.NewManager("feed_events=on"), nil)
	assert.NoError(t, n.Publish(context.Background(), FeedEvent{Type: EventPostCreated, PostID: "p1"}))

	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.Publish(context.Background(), FeedEvent{}))
}

func TestNotifier_PublishAndSubscribe(t *testing.T) {
	rdb := newRedis(t)
	n := NewNotifier(rdb, featureflags.NewManager("feed_events=on"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan FeedEvent, 1)
	require.NoError(t, n.Subscribe(ctx, func(ev FeedEvent) { events <- ev }))

	likes := 3
	require.NoError(t, n.Publish(context.Background(), FeedEvent{
		Type:    EventPostLiked,
		PostID:  "p1",
		ActorID: 7,
		Likes:   &likes,
	}))

	select {
	case ev := <-events:
		assert.Equal(t, EventPostLiked, ev.Type)
		assert.Equal(t, "p1", ev.PostID)
		assert.Equal(t, uint(7), ev.ActorID)
		require.NotNil(t, ev.Likes)
		assert.Equal(t, 3, *ev.Likes)
		assert.False(t, ev.At.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestNotifier_FlagOffSuppressesEvents(t *testing.T) {
	rdb := newRedis(t)
	n := NewNotifier(rdb, featureflags.NewManager("feed_events=off"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan FeedEvent, 1)
	require.NoError(t, n.Subscribe(ctx, func(ev FeedEvent) { events <- ev }))
	require.NoError(t, n.Publish(context.Background(), FeedEvent{Type: EventPostCreated, PostID: "p1", ActorID: 1}))

	assert.Never(t, func() bool {
		select {
		case <-events:
			return true
		default:
			return false
		}
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestNotifier_SubscriberSurvivesBadPayloads(t *testing.T) {
	rdb := newRedis(t)
	n := NewNotifier(rdb, featureflags.NewManager("feed_events=on"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan FeedEvent, 2)
	calls := 0
	require.NoError(t, n.Subscribe(ctx, func(ev FeedEvent) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		events <- ev
	}))

	require.NoError(t, rdb.Publish(context.Background(), FeedChannel, "not json").Err())
	require.NoError(t, n.Publish(context.Background(), FeedEvent{Type: EventCommentAdded, PostID: "p1", ActorID: 1}))
	require.NoError(t, n.Publish(context.Background(), FeedEvent{Type: EventReplyAdded, PostID: "p1", ActorID: 1}))

	select {
	case ev := <-events:
		assert.Equal(t, EventReplyAdded, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber stopped after a panic")
	}
}
