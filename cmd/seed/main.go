// Command main loads catalog data and optional demo community content.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"indiverse/internal/bootstrap"
	"indiverse/internal/cache"
	"indiverse/internal/config"
	"indiverse/internal/observability"
	"indiverse/internal/repository"
	"indiverse/internal/seed"
)

func main() {
	dataDir := flag.String("data", "", "Directory holding catalog files (default SEED_DATA_DIR)")
	skipCatalog := flag.Bool("skip-catalog", false, "Do not load catalog files")
	community := flag.Int("community", 0, "Number of fake community users to create")
	postsPerUser := flag.Int("posts-per-user", 2, "Posts per fake user")
	maxComments := flag.Int("max-comments", 4, "Maximum comments per fake post")
	fakerSeed := flag.Int64("seed", 0, "Seed for generated content (0 = random)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := observability.NewLogger(os.Stdout, cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	rt, err := bootstrap.InitRuntime(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = rt.Close(context.Background()) }()

	s := seed.NewSeeder(
		repository.NewCatalogRepository(rt.DB),
		repository.NewUserRepository(rt.DB, cache.New(rt.Redis)),
		rt.Posts,
		logger,
	)

	if !*skipCatalog {
		dir := *dataDir
		if dir == "" {
			dir = cfg.SeedDataDir
		}
		cat, err := seed.LoadCatalog(dir)
		if err != nil {
			log.Fatalf("Failed to load catalog from %s: %v", dir, err)
		}
		if err := s.SeedCatalog(ctx, cat); err != nil {
			log.Fatalf("Catalog seeding failed: %v", err)
		}
	}

	if *community > 0 {
		_, err := s.SeedCommunity(ctx, seed.CommunityOptions{
			Users:        *community,
			PostsPerUser: *postsPerUser,
			MaxComments:  *maxComments,
			Seed:         *fakerSeed,
		})
		if err != nil {
			log.Fatalf("Community seeding failed: %v", err)
		}
	}

	logger.Info("seeding complete", slog.String("store", cfg.FeedStore))
}
