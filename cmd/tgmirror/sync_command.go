package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"tgmirror/internal/config"
	"tgmirror/internal/ingest"
	"tgmirror/internal/logging"
	"tgmirror/internal/store"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch recent messages and record them in the archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store, logger *slog.Logger) error {
				src, err := ctx.newSource(cfg)
				if err != nil {
					return err
				}
				ing := ingest.New(st, src, cfg, logging.WithComponent(logger, "ingest"))
				return ing.Run(cmd.Context(), limit)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of messages to fetch (0 fetches all available)")
	return cmd
}
