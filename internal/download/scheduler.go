// Package download transfers registered media from the source under a fixed
// concurrency cap.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"

	"tgmirror/internal/config"
	"tgmirror/internal/source"
	"tgmirror/internal/store"
)

// Scheduler drains the pending-file set. Re-running the scheduler is the
// retry mechanism: failed transfers stay pending and are picked up by the
// next invocation. No in-process retry or backoff is attempted.
type Scheduler struct {
	store       *store.Store
	source      source.Client
	cfg         *config.Config
	logger      *slog.Logger
	concurrency int
}

// New constructs a Scheduler honoring the configured concurrency cap.
func New(st *store.Store, src source.Client, cfg *config.Config, logger *slog.Logger) *Scheduler {
	concurrency := cfg.Download.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{store: st, source: src, cfg: cfg, logger: logger, concurrency: concurrency}
}

// Run transfers every pending file, at most the configured number in flight
// at once. Per-file failures are logged and leave the row pending; only
// store-level errors abort.
func (s *Scheduler) Run(ctx context.Context) error {
	pending, err := s.store.ListPendingFiles(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		s.logger.Info("no files to download")
		return nil
	}
	if err := s.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure export directories: %w", err)
	}
	s.logger.Info("downloading files", slog.Int("count", len(pending)))

	slots := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for _, file := range pending {
		wg.Add(1)
		go func(file store.PendingFile) {
			defer wg.Done()
			slots <- struct{}{}
			defer func() { <-slots }()
			if err := s.transfer(ctx, file); err != nil {
				s.logger.Error("download failed",
					slog.Int64("message_id", file.MessageID),
					slog.String("path", file.Path),
					slog.Any("error", err))
			}
		}(file)
	}
	wg.Wait()

	s.logger.Info("download pass complete")
	return nil
}

// transfer moves one file. The owning message is re-resolved at the source
// first; sources that cannot address messages by id fall back to the cached
// payload, and their live transfer handle is refreshed inside DownloadMedia.
func (s *Scheduler) transfer(ctx context.Context, file store.PendingFile) error {
	msg, err := s.source.MessageByID(ctx, file.MessageID)
	if errors.Is(err, source.ErrMessageNotAvailable) {
		msg, err = source.DecodeMessage([]byte(file.MessageJSON))
	}
	if err != nil {
		return fmt.Errorf("resolve message %d: %w", file.MessageID, err)
	}

	s.logger.Info("downloading", slog.Int64("message_id", file.MessageID), slog.String("path", file.Path))

	var markErr error
	onProgress := func(current, total int64) {
		s.logger.Debug("progress",
			slog.Int64("message_id", file.MessageID),
			slog.String("received", humanize.Bytes(uint64(current))),
			slog.String("size", humanize.Bytes(uint64(total))))
		if current == total && markErr == nil {
			markErr = s.store.MarkFileDownloaded(ctx, file.MessageID, file.Path)
		}
	}

	if err := s.source.DownloadMedia(ctx, msg, file.Path, onProgress); err != nil {
		return err
	}
	if markErr != nil {
		return fmt.Errorf("record completion: %w", markErr)
	}

	s.logger.Info("downloaded", slog.Int64("message_id", file.MessageID), slog.String("path", file.Path))
	return nil
}
