// Migration runner for the Power Control Center database.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/NotCoffee418/power-control-center/internal/infrastructure/storage"
	"github.com/NotCoffee418/power-control-center/migrations"
)

var (
	command      string
	databasePath string
)

func init() {
	flag.StringVar(&command, "command", "up", "Migration command: init, up, down, status")
	flag.StringVar(&databasePath, "database-path", "", "SQLite database path (overrides PCC_DATABASE_PATH)")
}

func main() {
	flag.Parse()

	// Load .env file if exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	dbPath := databasePath
	if dbPath == "" {
		dbPath = os.Getenv("PCC_DATABASE_PATH")
	}
	if dbPath == "" {
		slog.Error("database path is required")
		os.Exit(1)
	}

	db, err := storage.NewDB(&storage.Config{
		Path:  dbPath,
		Debug: os.Getenv("DEBUG") == "true",
	})
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer storage.Close(db)

	migrator, err := storage.NewMigrator(db, migrations.FS)
	if err != nil {
		slog.Error("failed to create migrator", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	switch command {
	case "init":
		err = migrator.Init(ctx)
	case "up":
		err = migrator.Up(ctx)
	case "down":
		err = migrator.Down(ctx)
	case "status":
		err = migrator.Status(ctx)
	default:
		slog.Error("unknown command", "command", command)
		os.Exit(1)
	}

	if err != nil {
		slog.Error("migration command failed", "command", command, "error", err)
		os.Exit(1)
	}
}
