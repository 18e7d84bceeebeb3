package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"genienews/internal/features/news/models"
)

func ingestCmd() *cobra.Command {
	var sourceID int
	var chain bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch due sources once and store new articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.news.Migrate(ctx); err != nil {
				return err
			}
			a.news.StartPipeline(ctx, chain)
			defer a.news.StopPipeline()

			if sourceID > 0 {
				result, err := a.news.Ingestor().IngestSource(ctx, sourceID)
				if err != nil {
					return err
				}
				return printJSON(result)
			}

			result, err := a.news.Ingestor().IngestDue(ctx)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().IntVar(&sourceID, "source-id", 0, "Ingest only this source, even when it is not due")
	cmd.Flags().BoolVar(&chain, "chain", false, "Curate and build the digest after new articles arrive")
	return cmd
}

func curateCmd() *cobra.Command {
	var chain bool

	cmd := &cobra.Command{
		Use:   "curate",
		Short: "Enrich one batch of pending articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.news.Migrate(ctx); err != nil {
				return err
			}
			a.news.StartPipeline(ctx, chain)
			defer a.news.StopPipeline()

			result, err := a.news.Curator().CurateBatch(ctx)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().BoolVar(&chain, "chain", false, "Build the digest after articles are curated")
	return cmd
}

func digestCmd() *cobra.Command {
	var dateFlag string

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Generate the audio digest for a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			date := time.Now()
			if dateFlag != "" {
				parsed, err := time.Parse(models.DigestDateLayout, dateFlag)
				if err != nil {
					return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", dateFlag)
				}
				date = parsed
			}

			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.news.Migrate(ctx); err != nil {
				return err
			}
			a.news.StartPipeline(ctx, false)
			defer a.news.StopPipeline()

			result := a.news.Digest().Generate(ctx, date)
			if err := printJSON(result); err != nil {
				return err
			}
			if result.Status == models.DigestFailed {
				return fmt.Errorf("digest failed: %s", result.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dateFlag, "date", "", "Day to generate (YYYY-MM-DD), defaults to today")
	return cmd
}
