package main

import (
	"github.com/spf13/cobra"

	"genienews/internal/core"
	"genienews/internal/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server with the background scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			registry := core.NewRegistry(a.logger)
			if err := registry.Register(a.news); err != nil {
				return err
			}

			return server.New(a.config, a.logger, a.db, registry).Run(cmd.Context())
		},
	}
}
