package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"genienews/internal/auth"
	"genienews/internal/core"
	"genienews/internal/features/news"
)

func main() {
	// Load .env file if it exists
	godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:          "genienews",
		Short:        "genienews - AI news ingestion, curation and audio digests",
		Long:         "Pulls RSS/Atom feeds, enriches new articles with AI summaries, tags and scores, and narrates a daily audio digest.",
		SilenceUsage: true,
	}

	root.AddCommand(
		serveCmd(),
		ingestCmd(),
		curateCmd(),
		digestCmd(),
		importSourcesCmd(),
		migrateCmd(),
		hashPasswordCmd(),
	)

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app holds what every command needs
type app struct {
	config *core.Config
	logger *core.Logger
	db     *core.Database
	news   *news.Feature
}

func openApp(ctx context.Context) (*app, error) {
	config, err := core.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := core.NewLogger(config.Log)

	db, err := core.OpenDatabase(config.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	authService, err := auth.NewService(config.Auth, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	feature, err := news.NewFeature(ctx, logger, db, news.NewConfig(config), auth.NewMiddleware(authService, logger))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create news feature: %w", err)
	}

	return &app{
		config: config,
		logger: logger,
		db:     db,
		news:   feature,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close database", "error", err)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
