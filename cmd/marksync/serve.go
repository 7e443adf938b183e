package main

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/marksync/internal/app"
	"github.com/MrSnakeDoc/marksync/internal/config"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the snapshot server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.LoadServer()
			log := app.NewLogger(cfg.Common)
			defer func() { _ = log.Sync() }()

			srv, err := app.NewServer(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			return srv.Run()
		},
	}
}
