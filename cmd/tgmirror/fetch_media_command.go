package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"tgmirror/internal/config"
	"tgmirror/internal/download"
	"tgmirror/internal/logging"
	"tgmirror/internal/store"
)

func newFetchMediaCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch-media",
		Short: "Download media for messages whose files are still pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store, logger *slog.Logger) error {
				src, err := ctx.newSource(cfg)
				if err != nil {
					return err
				}
				sched := download.New(st, src, cfg, logging.WithComponent(logger, "download"))
				return sched.Run(cmd.Context())
			})
		},
	}
}
