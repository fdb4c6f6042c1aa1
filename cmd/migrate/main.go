// Command migrate applies or reverts the embedded schema migrations.
//
// Usage:
//
//	migrate [-database-url URL] up
//	migrate [-database-url URL] down [-steps N]
//	migrate [-database-url URL] version
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/geovoyager/geovoyager/internal/migrate"
	"github.com/geovoyager/geovoyager/migrations"
)

func main() {
	_ = godotenv.Load(".env")

	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		steps       = flag.Int("steps", 1, "Number of migrations to revert with down")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [flags] up|down|version")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *databaseURL, flag.Arg(0), *steps, logger); err != nil {
		logger.Error("migration failed", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL, command string, steps int, logger *slog.Logger) error {
	db, err := migrate.Open(databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	runner, err := migrate.NewRunner(db, migrations.FS, logger)
	if err != nil {
		return err
	}

	switch command {
	case "up":
		n, err := runner.Up(ctx)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", "count", n)
	case "down":
		if steps < 1 {
			return fmt.Errorf("steps must be >= 1, got %d", steps)
		}
		n, err := runner.Down(ctx, steps)
		if err != nil {
			return err
		}
		logger.Info("migrations reverted", "count", n)
	case "version":
		v, err := runner.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Println(v)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}
