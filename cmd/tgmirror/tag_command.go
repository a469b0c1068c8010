package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"tgmirror/internal/config"
	"tgmirror/internal/logging"
	"tgmirror/internal/store"
	"tgmirror/internal/tagging"
)

func newTagCommand(ctx *commandContext) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Classify untagged message text into topic tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store, logger *slog.Logger) error {
				classifier, err := ctx.newClassifier(cfg)
				if err != nil {
					return err
				}
				tagger := tagging.New(st, classifier, logging.WithComponent(logger, "tagging"), tagging.Options{
					BatchSize:              cfg.Tagging.BatchSize,
					PersistNegativeResults: cfg.Tagging.PersistNegativeResults,
				})
				return tagger.Run(cmd.Context(), overwrite)
			})
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Re-classify messages that already carry tags")
	return cmd
}
