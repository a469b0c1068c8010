package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"tgmirror/internal/config"
	"tgmirror/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show archive counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store, logger *slog.Logger) error {
				stats, err := st.Stats(cmd.Context())
				if err != nil {
					return err
				}

				rows := [][]string{
					{"Messages", strconv.Itoa(stats.Messages)},
					{"Messages tagged", strconv.Itoa(stats.MessagesTagged)},
					{"Files registered", strconv.Itoa(stats.FilesTotal)},
					{"Files downloaded", strconv.Itoa(stats.FilesDownloaded)},
					{"Files pending", strconv.Itoa(stats.FilesPending)},
				}

				out := cmd.OutOrStdout()
				if isTerminal(out) {
					fmt.Fprintln(out, renderCounters([2]string{"Metric", "Count"}, rows))
					return nil
				}
				for _, row := range rows {
					fmt.Fprintf(out, "%s: %s\n", row[0], row[1])
				}
				return nil
			})
		},
	}
}

func isTerminal(w any) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
