package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"genienews/internal/auth"
)

func importSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-sources FILE",
		Short: "Create sources from a YAML file or a \"Name: URL\" list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open sources file: %w", err)
			}
			defer f.Close()

			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.news.Migrate(ctx); err != nil {
				return err
			}

			result, err := a.news.Importer().Import(ctx, f)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func migrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if down {
				if err := a.news.Rollback(ctx); err != nil {
					return err
				}
			} else if err := a.news.Migrate(ctx); err != nil {
				return err
			}
			status, err := a.news.MigrationStatus(ctx)
			if err != nil {
				return err
			}
			a.logger.Info("Migrations done", "path", a.config.Database.Path, "pending", len(status.Pending))
			return printJSON(status)
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "Roll back the most recent migration instead")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password PASSWORD",
		Short: "Print the bcrypt hash to use as NEWS_ADMIN_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}
}
