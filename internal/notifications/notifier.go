// Package notifications publishes feed activity to Redis subscribers.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"indiverse/internal/featureflags"
	"indiverse/internal/observability"

	"github.com/redis/go-redis/v9"
)

// FeedChannel carries every feed event.
const FeedChannel = "feed:events"

// Feed event types.
const (
	EventPostCreated    = "post_created"
	EventPostDeleted    = "post_deleted"
	EventPostLiked      = "post_liked"
	EventPostUnliked    = "post_unliked"
	EventCommentAdded   = "comment_added"
	EventCommentDeleted = "comment_deleted"
	EventReplyAdded     = "reply_added"
)

// FeedEvent describes one committed feed mutation.
type FeedEvent struct {
	Type      string    `json:"type"`
	PostID    string    `json:"post_id"`
	CommentID string    `json:"comment_id,omitempty"`
	ReplyID   string    `json:"reply_id,omitempty"`
	ActorID   uint      `json:"actor_id"`
	Likes     *int      `json:"likes,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier publishes feed events. A Notifier with a nil client drops events.
type Notifier struct {
	rdb    *redis.Client
	flags  *featureflags.Manager
	logger *slog.Logger
}

// NewNotifier creates a Notifier. Events are published only for actors the
// feed_events flag is enabled for.
func NewNotifier(rdb *redis.Client, flags *featureflags.Manager, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{rdb: rdb, flags: flags, logger: logger}
}

// Publish sends ev on FeedChannel.
func (n *Notifier) Publish(ctx context.Context, ev FeedEvent) error {
	if n == nil || n.rdb == nil || !n.flags.Enabled(featureflags.FeedEvents, ev.ActorID) {
		return nil
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal feed event: %w", err)
	}
	if err := n.rdb.Publish(ctx, FeedChannel, payload).Err(); err != nil {
		observability.RedisErrors.WithLabelValues("publish").Inc()
		return fmt.Errorf("publish feed event: %w", err)
	}
	return nil
}

// Subscribe delivers decoded events to onEvent until ctx is done. It returns
// once the subscription is confirmed.
func (n *Notifier) Subscribe(ctx context.Context, onEvent func(FeedEvent)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, FeedChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", FeedChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				n.dispatch(msg.Payload, onEvent)
			}
		}
	}()
	return nil
}

func (n *Notifier) dispatch(payload string, onEvent func(FeedEvent)) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("panic in feed subscriber", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
		}
	}()
	var ev FeedEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		n.logger.Warn("dropping malformed feed event", slog.String("error", err.Error()))
		return
	}
	onEvent(ev)
}
