// Package main provides account management utilities for IndiVerse.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"indiverse/internal/bootstrap"
	"indiverse/internal/cache"
	"indiverse/internal/config"
	"indiverse/internal/models"
	"indiverse/internal/notifications"
	"indiverse/internal/observability"
	"indiverse/internal/repository"
)

// Account lookups and removal. Removed users keep their posts; the feed
// shows them with a null author.
func main() {
	if len(os.Args) < 2 || (os.Args[1] != "watch" && len(os.Args) < 3) {
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/admin/main.go find <email>          - Show a user by email")
		fmt.Println("  go run ./cmd/admin/main.go delete <user_id>      - Remove a user account")
		fmt.Println("  go run ./cmd/admin/main.go watch                 - Print feed events until interrupted")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := observability.NewLogger(os.Stderr, cfg.Env)

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = rt.Close(ctx) }()

	users := repository.NewUserRepository(rt.DB, cache.New(rt.Redis))

	switch command := os.Args[1]; command {
	case "find":
		findUser(ctx, users, os.Args[2])
	case "delete":
		deleteUser(ctx, users, os.Args[2])
	case "watch":
		if rt.Redis == nil {
			log.Fatal("Feed events need Redis; set REDIS_URL")
		}
		watchFeed(ctx, notifications.NewNotifier(rt.Redis, nil, logger))
	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func findUser(ctx context.Context, users repository.UserRepository, email string) {
	user, err := users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		log.Fatalf("Database error: %v", err)
	}
	if user == nil {
		fmt.Printf("No user with email %s\n", email)
		os.Exit(1)
	}
	fmt.Printf("ID: %d | Username: %s | Email: %s | Joined: %s\n",
		user.ID, user.Username, user.Email, user.CreatedAt.Format("2006-01-02"))
}

func deleteUser(ctx context.Context, users repository.UserRepository, rawID string) {
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || id == 0 {
		fmt.Printf("Invalid user ID %q\n", rawID)
		os.Exit(1)
	}

	if err := users.Delete(ctx, uint(id)); err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			fmt.Printf("User with ID %d not found\n", id)
			os.Exit(1)
		}
		log.Fatalf("Failed to delete user: %v", err)
	}
	fmt.Printf("✅ Removed user %d; existing tokens now fail with UNKNOWN_SUBJECT\n", id)
}

func watchFeed(ctx context.Context, events *notifications.Notifier) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := events.Subscribe(ctx, func(ev notifications.FeedEvent) {
		fmt.Printf("%s %-16s post=%s actor=%d\n", ev.At.Format(time.RFC3339), ev.Type, ev.PostID, ev.ActorID)
	}); err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}
	fmt.Printf("Watching %s, Ctrl+C to stop\n", notifications.FeedChannel)
	<-ctx.Done()
}
