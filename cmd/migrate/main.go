// Command migrate manages the IndiVerse SQL schema.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"indiverse/internal/config"
	"indiverse/internal/database"
	"indiverse/internal/observability"

	"gorm.io/gorm"
)

type command struct {
	help string
	run  func(ctx context.Context, db *gorm.DB, logger *slog.Logger, args []string) error
}

var commands = map[string]command{
	"up": {"apply pending SQL migrations", func(ctx context.Context, db *gorm.DB, logger *slog.Logger, _ []string) error {
		return database.RunMigrations(ctx, db, logger)
	}},
	"auto": {"sync tables from the gorm models", func(ctx context.Context, db *gorm.DB, logger *slog.Logger, _ []string) error {
		return database.ApplySchema(ctx, db, logger)
	}},
	"status": {"list applied and pending versions", status},
	"down": {"roll back one version: down <version>", func(ctx context.Context, db *gorm.DB, logger *slog.Logger, args []string) error {
		if len(args) < 1 {
			return errors.New("down needs a version")
		}
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return database.RollbackMigration(ctx, db, logger, version)
	}},
}

func main() {
	flag.Usage = usage
	flag.Parse()

	name := strings.ToLower(strings.TrimSpace(flag.Arg(0)))
	cmd, ok := commands[name]
	if !ok {
		usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := observability.NewLogger(os.Stderr, cfg.Env)

	ctx := context.Background()
	db, err := database.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}

	if err := cmd.run(ctx, db, logger, flag.Args()[1:]); err != nil {
		log.Fatalf("%s: %v", name, err)
	}
	logger.Info("migrate finished", slog.String("command", name), slog.String("driver", db.Dialector.Name()))
}

func status(ctx context.Context, db *gorm.DB, _ *slog.Logger, _ []string) error {
	applied, pending, err := database.MigrationStatus(ctx, db)
	if err != nil {
		return err
	}
	fmt.Printf("applied: %v\n", applied)
	if len(pending) == 0 {
		fmt.Println("pending: none")
	}
	for _, m := range pending {
		fmt.Printf("pending: %s\n", m)
	}
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: migrate <command> [args]")
	for _, name := range []string{"up", "auto", "status", "down"} {
		fmt.Fprintf(os.Stderr, "  %-7s %s\n", name, commands[name].help)
	}
}
