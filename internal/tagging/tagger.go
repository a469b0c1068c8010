// Package tagging selects untagged messages, drives the reusable
// classification session, and persists the returned tags in batches.
package tagging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"tgmirror/internal/store"
)

// Meta keys holding the reusable classification session identifiers.
const (
	MetaAssistantID = "assistant_id"
	MetaThreadID    = "thread_id"
)

// Classifier is the external batched labeling collaborator.
type Classifier interface {
	CreateAssistant(ctx context.Context) (string, error)
	CreateThread(ctx context.Context) (string, error)
	SubmitBatch(ctx context.Context, threadID, assistantID string, articles map[int64]string) (map[int64][]string, error)
}

// Tagger runs the batched tagging protocol.
type Tagger struct {
	store      *store.Store
	classifier Classifier
	logger     *slog.Logger
	batchSize  int
	// persistNegative stores an empty tag list when the classifier reports
	// no tags, so the message is not resubmitted on the next run.
	persistNegative bool
}

// Options tune the tagging run.
type Options struct {
	BatchSize              int
	PersistNegativeResults bool
}

// New constructs a Tagger.
func New(st *store.Store, classifier Classifier, logger *slog.Logger, opts Options) *Tagger {
	batchSize := opts.BatchSize
	if batchSize < 1 {
		batchSize = 50
	}
	return &Tagger{
		store:           st,
		classifier:      classifier,
		logger:          logger,
		batchSize:       batchSize,
		persistNegative: opts.PersistNegativeResults,
	}
}

type candidate struct {
	id   int64
	text string
}

// Run tags every candidate message. Batches are submitted sequentially;
// a batch failure aborts the run, but tags persisted by earlier batches
// are kept.
func (t *Tagger) Run(ctx context.Context, overwrite bool) error {
	candidates, err := t.selectCandidates(ctx, overwrite)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		t.logger.Info("no messages to tag")
		return nil
	}

	assistantID, threadID, err := t.ensureSession(ctx)
	if err != nil {
		return err
	}

	batches := (len(candidates) + t.batchSize - 1) / t.batchSize
	t.logger.Info("tagging messages",
		slog.Int("candidates", len(candidates)),
		slog.Int("batches", batches))

	for start := 0; start < len(candidates); start += t.batchSize {
		end := start + t.batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		if err := t.submitBatch(ctx, threadID, assistantID, candidates[start:end]); err != nil {
			return fmt.Errorf("batch %d/%d: %w", start/t.batchSize+1, batches, err)
		}
	}

	t.logger.Info("tagging complete")
	return nil
}

// selectCandidates walks the archive in listing order and keeps messages
// with non-empty text that are still untagged (or all of them when
// overwrite is set).
func (t *Tagger) selectCandidates(ctx context.Context, overwrite bool) ([]candidate, error) {
	messages, err := t.store.ListMessages(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []candidate
	for _, msg := range messages {
		text := strings.TrimSpace(messageText(msg.JSONData))
		if text == "" {
			continue
		}
		if !overwrite {
			_, tagged, err := t.store.GetTags(ctx, msg.ID)
			if err != nil {
				return nil, err
			}
			if tagged {
				continue
			}
		}
		candidates = append(candidates, candidate{id: msg.ID, text: text})
	}
	return candidates, nil
}

// ensureSession returns the reusable assistant and thread ids, creating and
// persisting them on first use.
func (t *Tagger) ensureSession(ctx context.Context) (assistantID, threadID string, err error) {
	assistantID, ok, err := t.store.GetMeta(ctx, MetaAssistantID)
	if err != nil {
		return "", "", err
	}
	if !ok {
		assistantID, err = t.classifier.CreateAssistant(ctx)
		if err != nil {
			return "", "", fmt.Errorf("bootstrap assistant: %w", err)
		}
		if err := t.store.SetMeta(ctx, MetaAssistantID, assistantID); err != nil {
			return "", "", err
		}
		t.logger.Info("created assistant", slog.String("id", assistantID))
	}

	threadID, ok, err = t.store.GetMeta(ctx, MetaThreadID)
	if err != nil {
		return "", "", err
	}
	if !ok {
		threadID, err = t.classifier.CreateThread(ctx)
		if err != nil {
			return "", "", fmt.Errorf("bootstrap thread: %w", err)
		}
		if err := t.store.SetMeta(ctx, MetaThreadID, threadID); err != nil {
			return "", "", err
		}
		t.logger.Info("created thread", slog.String("id", threadID))
	}

	return assistantID, threadID, nil
}

func (t *Tagger) submitBatch(ctx context.Context, threadID, assistantID string, batch []candidate) error {
	articles := make(map[int64]string, len(batch))
	for _, c := range batch {
		articles[c.id] = c.text
	}

	result, err := t.classifier.SubmitBatch(ctx, threadID, assistantID, articles)
	if err != nil {
		return err
	}

	for _, c := range batch {
		tags, ok := result[c.id]
		if !ok || tags == nil {
			// The classifier judged the message tag-less (link-only
			// content). Without persist_negative_results no record is
			// written and the message is retried next run.
			if t.persistNegative {
				if err := t.store.SetTags(ctx, c.id, []string{}); err != nil {
					return err
				}
			}
			continue
		}
		if err := t.store.SetTags(ctx, c.id, tags); err != nil {
			return err
		}
	}
	return nil
}

// messageText extracts the text body from a stored payload. Captioned media
// messages fall back to the caption, matching what ingestion fetched.
func messageText(jsonData string) string {
	var payload struct {
		Text    string `json:"text"`
		Caption string `json:"caption"`
	}
	if err := json.Unmarshal([]byte(jsonData), &payload); err != nil {
		return ""
	}
	if payload.Text != "" {
		return payload.Text
	}
	return payload.Caption
}
