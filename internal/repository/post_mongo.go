package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"indiverse/internal/models"
	"indiverse/internal/observability"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
)

// PostsCollection is the collection holding post documents.
const PostsCollection = "communityposts"

type mongoPostRepository struct {
	coll *mongo.Collection
	opts postOptions
	log  *observability.RepoLogger
}

// NewMongoPostRepository returns a post store backed by MongoDB. Every
// mutation is a single conditional update on the post document, so no
// version column is needed.
func NewMongoPostRepository(ctx context.Context, db *mongo.Database, logger *slog.Logger, opts ...PostRepositoryOption) (PostRepository, error) {
	coll := db.Collection(PostsCollection)

	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "comments._id", Value: 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("create post indexes: %w", classifyMongo(err, "Post", "indexes"))
	}

	return &mongoPostRepository{
		coll: coll,
		opts: buildPostOptions(opts),
		log:  observability.NewRepoLogger(logger, PostsCollection),
	}, nil
}

// ConnectMongo dials uri and verifies the primary answers.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

func classifyMongo(err error, resource string, id any) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	var selectionErr topology.ServerSelectionError
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.NewNotFoundError(resource, id)
	case mongo.IsNetworkError(err), mongo.IsTimeout(err), errors.As(err, &selectionErr), isUnavailable(err):
		return models.NewStoreUnavailableError(err)
	case mongo.IsDuplicateKeyError(err):
		return models.NewConflictError(resource+" already exists", err)
	default:
		return models.NewInternalError(err)
	}
}

func afterUpdate() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}

func (r *mongoPostRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", PostsCollection)()

	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	post.Normalize()
	if _, err := r.coll.InsertOne(ctx, post); err != nil {
		r.log.LogError(ctx, err, "create")
		return classifyMongo(err, "Post", post.ID)
	}
	r.log.LogWrite(ctx, "create", slog.String("post_id", post.ID))
	return nil
}

func (r *mongoPostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	defer observability.TrackQuery("get", PostsCollection)()

	var post models.Post
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&post); err != nil {
		return nil, classifyMongo(err, "Post", id)
	}
	post.Normalize()
	return &post, nil
}

func (r *mongoPostRepository) List(ctx context.Context, limit, offset int) ([]models.Post, error) {
	defer observability.TrackQuery("list", PostsCollection)()

	limit, offset = clampPage(limit, offset)
	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset))
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}

	cur, err := r.coll.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, classifyMongo(err, "Post", "list")
	}
	posts := []models.Post{}
	if err := cur.All(ctx, &posts); err != nil {
		return nil, classifyMongo(err, "Post", "list")
	}
	for i := range posts {
		posts[i].Normalize()
	}
	return posts, nil
}

func (r *mongoPostRepository) Delete(ctx context.Context, id string) error {
	defer observability.TrackQuery("delete", PostsCollection)()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return classifyMongo(err, "Post", id)
	}
	if res.DeletedCount == 0 {
		return models.NewNotFoundError("Post", id)
	}
	r.log.LogWrite(ctx, "delete", slog.String("post_id", id))
	return nil
}

// ToggleLike issues two membership-guarded updates: pull-and-decrement only
// matches when the user is in the set, add-and-increment only when they are
// not. Neither can leave likes out of step with liked_by. When neither
// matches, membership flipped between the two calls and the pair is retried.
func (r *mongoPostRepository) ToggleLike(ctx context.Context, postID string, userID uint) (post *models.Post, err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "mongodb", "toggle_like", PostsCollection)
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery("toggle_like", PostsCollection)()

	uid := int64(userID)
	unlike := bson.M{"$pull": bson.M{"liked_by": uid}, "$inc": bson.M{"likes": -1}}
	like := bson.M{"$addToSet": bson.M{"liked_by": uid}, "$inc": bson.M{"likes": 1}}

	for attempt := 0; attempt < r.opts.maxRetries; attempt++ {
		if attempt > 0 {
			observability.FeedRetries.WithLabelValues("toggle_like").Inc()
		}

		updated, err := r.findOneAndUpdate(ctx, bson.M{"_id": postID, "liked_by": uid}, unlike)
		if err != nil || updated != nil {
			return updated, err
		}
		updated, err = r.findOneAndUpdate(ctx, bson.M{"_id": postID, "liked_by": bson.M{"$ne": uid}}, like)
		if err != nil || updated != nil {
			return updated, err
		}

		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": postID})
		if err != nil {
			return nil, classifyMongo(err, "Post", postID)
		}
		if n == 0 {
			return nil, models.NewNotFoundError("Post", postID)
		}
	}
	return nil, models.NewConflictError("Post was modified concurrently, please retry", nil)
}

func (r *mongoPostRepository) AddComment(ctx context.Context, postID string, comment models.Comment) (*models.Post, error) {
	defer observability.TrackQuery("add_comment", PostsCollection)()

	if comment.Replies == nil {
		comment.Replies = []models.Reply{}
	}
	post, err := r.findOneAndUpdate(ctx, bson.M{"_id": postID}, bson.M{"$push": bson.M{"comments": comment}})
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, models.NewNotFoundError("Post", postID)
	}
	return post, nil
}

func (r *mongoPostRepository) RemoveComment(ctx context.Context, postID, commentID string) (*models.Post, error) {
	defer observability.TrackQuery("remove_comment", PostsCollection)()

	post, err := r.findOneAndUpdate(ctx,
		bson.M{"_id": postID, "comments._id": commentID},
		bson.M{"$pull": bson.M{"comments": bson.M{"_id": commentID}}},
	)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, models.NewNotFoundError("Comment", commentID)
	}
	return post, nil
}

func (r *mongoPostRepository) AddReply(ctx context.Context, commentID string, reply models.Reply) (*models.Post, error) {
	defer observability.TrackQuery("add_reply", PostsCollection)()

	post, err := r.findOneAndUpdate(ctx,
		bson.M{"comments._id": commentID},
		bson.M{"$push": bson.M{"comments.$.replies": reply}},
	)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, models.NewNotFoundError("Comment", commentID)
	}
	return post, nil
}

func (r *mongoPostRepository) Ping(ctx context.Context) error {
	if err := r.coll.Database().Client().Ping(ctx, readpref.Primary()); err != nil {
		return models.NewStoreUnavailableError(err)
	}
	return nil
}

// findOneAndUpdate returns (nil, nil) when filter matches nothing.
func (r *mongoPostRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*models.Post, error) {
	var post models.Post
	err := r.coll.FindOneAndUpdate(ctx, filter, update, afterUpdate()).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		r.log.LogError(ctx, err, "update")
		return nil, classifyMongo(err, "Post", filter["_id"])
	}
	post.Normalize()
	return &post, nil
}
