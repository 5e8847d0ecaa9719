// Package bootstrap opens the stores a process needs from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"indiverse/internal/cache"
	"indiverse/internal/config"
	"indiverse/internal/database"
	"indiverse/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// Runtime holds open store connections. Redis and Mongo may be nil; Posts is
// always set.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client
	Mongo *mongo.Client
	Posts repository.PostRepository
}

// InitRuntime connects to the database, Redis, and the configured feed store.
// An unreachable database or feed store is an error; Redis is optional.
func InitRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	db, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	rt := &Runtime{DB: db}

	// Nil when unreachable; the cache, rate limiter and events degrade.
	rt.Redis = cache.InitRedis(ctx, cfg.RedisURL, logger)

	retries := repository.WithMaxRetries(cfg.FeedMaxRetries)
	switch strings.ToLower(cfg.FeedStore) {
	case config.FeedStoreMongo:
		if cfg.MongoURI == "" {
			_ = rt.Close(ctx)
			return nil, errors.New("MONGO_URI is required when FEED_STORE=mongo")
		}
		client, err := repository.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("mongo connection failed: %w", err)
		}
		rt.Mongo = client
		posts, err := repository.NewMongoPostRepository(ctx, client.Database(cfg.MongoDB), logger, retries)
		if err != nil {
			_ = rt.Close(ctx)
			return nil, err
		}
		rt.Posts = posts
		logger.Info("feed store ready", slog.String("store", config.FeedStoreMongo), slog.String("db", cfg.MongoDB))
	default:
		rt.Posts = repository.NewPostRepository(db, logger, retries)
		logger.Info("feed store ready", slog.String("store", config.FeedStoreSQL))
	}

	return rt, nil
}

// Close releases every open connection.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.Mongo != nil {
		errs = append(errs, rt.Mongo.Disconnect(ctx))
	}
	if rt.Redis != nil {
		errs = append(errs, rt.Redis.Close())
	}
	if rt.DB != nil {
		if sqlDB, err := rt.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
