package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"tgmirror/internal/config"
	"tgmirror/internal/export"
	"tgmirror/internal/logging"
	"tgmirror/internal/store"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Render the archive as a Markdown document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store, logger *slog.Logger) error {
				exp := export.New(st, cfg, logging.WithComponent(logger, "export"))
				if err := exp.Run(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", cfg.OutputPath())
				return nil
			})
		},
	}
}
