// Package ingest pulls messages from the source collaborator into the store
// and registers their media for download.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"

	"tgmirror/internal/config"
	"tgmirror/internal/source"
	"tgmirror/internal/store"
)

// markdownFilesPrefix is the attachment path prefix used inside the
// rendered document, relative to the export directory.
const markdownFilesPrefix = "files"

// Ingester mirrors recent messages into the store.
type Ingester struct {
	store  *store.Store
	source source.Client
	cfg    *config.Config
	logger *slog.Logger
}

// New constructs an Ingester.
func New(st *store.Store, src source.Client, cfg *config.Config, logger *slog.Logger) *Ingester {
	return &Ingester{store: st, source: src, cfg: cfg, logger: logger}
}

// Run fetches up to limit messages (0 = all) and upserts each one. Media
// classification failures are isolated per message: the message record still
// lands, the error is logged, and the run continues. Store failures abort.
func (i *Ingester) Run(ctx context.Context, limit int) error {
	me, err := i.source.Me(ctx)
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}
	i.logger.Info("logged in", slog.String("name", me.FirstName), slog.Int64("id", me.ID))

	messages, err := i.source.RecentMessages(ctx, limit)
	if err != nil {
		return fmt.Errorf("fetch recent messages: %w", err)
	}
	i.logger.Info("fetched messages", slog.Int("count", len(messages)))

	for idx, msg := range messages {
		i.logger.Debug("processing message",
			slog.Int("n", idx+1),
			slog.Int("total", len(messages)),
			slog.Int64("id", msg.ID))

		if err := i.store.UpsertMessage(ctx, msg.ID, string(msg.Payload), msg.Date); err != nil {
			return err
		}
		if err := i.registerMedia(ctx, msg); err != nil {
			i.logger.Error("register media failed",
				slog.Int64("message_id", msg.ID),
				slog.Any("error", err))
		}
	}

	i.logger.Info("sync complete", slog.Int("stored", len(messages)))
	return nil
}

func (i *Ingester) registerMedia(ctx context.Context, msg source.RawMessage) error {
	att, ok := classifyMedia(msg.ID, msg.Media)
	if !ok {
		return nil
	}
	storagePath := filepath.Join(i.cfg.FilesDir(), att.FileName)
	markdownPath := path.Join(markdownFilesPrefix, att.FileName)
	return i.store.RegisterFile(ctx, msg.ID, storagePath, markdownPath, att.Kind)
}
