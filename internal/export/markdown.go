// Package export renders the mirrored archive to a Markdown document. It
// reads messages, downloaded attachments, and tags; it never writes them.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"tgmirror/internal/config"
	"tgmirror/internal/store"
)

// Exporter renders the archive.
type Exporter struct {
	store  *store.Store
	cfg    *config.Config
	logger *slog.Logger
}

// New constructs an Exporter.
func New(st *store.Store, cfg *config.Config, logger *slog.Logger) *Exporter {
	return &Exporter{store: st, cfg: cfg, logger: logger}
}

// payloadView is the slice of the stored payload the renderer reads.
type payloadView struct {
	Text    string `json:"text"`
	Caption string `json:"caption"`
	Date    int64  `json:"date"`
	Chat    *struct {
		ID       int64  `json:"id"`
		Type     string `json:"type"`
		Username string `json:"username"`
	} `json:"chat"`
	ForwardFromChat *struct {
		ID       int64  `json:"id"`
		Type     string `json:"type"`
		Username string `json:"username"`
		Title    string `json:"title"`
	} `json:"forward_from_chat"`
	ForwardFromMessageID int64  `json:"forward_from_message_id"`
	ForwardSenderName    string `json:"forward_sender_name"`
	ForwardFrom          *struct {
		FirstName string `json:"first_name"`
	} `json:"forward_from"`
}

// Run writes the Markdown document. Per-message formatting errors produce an
// error placeholder block and the run continues; I/O errors abort.
func (e *Exporter) Run(ctx context.Context) error {
	if err := e.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure export directories: %w", err)
	}

	location, err := time.LoadLocation(e.cfg.Export.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	messages, err := e.store.ListMessages(ctx)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		e.logger.Info("no messages to export")
		return nil
	}
	e.logger.Info("exporting messages", slog.Int("count", len(messages)))

	out, err := os.Create(e.cfg.OutputPath())
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer out.Close()

	var doc strings.Builder
	doc.WriteString("# Telegram Saved Messages Export\n\n")
	doc.WriteString(fmt.Sprintf("**Export Date:** %s\n\n", time.Now().In(location).Format("2006-01-02 15:04:05")))
	doc.WriteString(fmt.Sprintf("**Total Messages:** %d\n\n", len(messages)))
	doc.WriteString("---\n\n")
	if _, err := out.WriteString(doc.String()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, msg := range messages {
		block, err := e.formatMessage(ctx, msg, location)
		if err != nil {
			e.logger.Error("format message failed",
				slog.Int64("message_id", msg.ID),
				slog.Any("error", err))
			block = fmt.Sprintf("## Message %d\n\n**Error processing this message**\n\n---\n\n", msg.ID)
		}
		if _, err := out.WriteString(block); err != nil {
			return fmt.Errorf("write message block: %w", err)
		}
	}

	e.logger.Info("export complete", slog.String("path", e.cfg.OutputPath()))
	return nil
}

func (e *Exporter) formatMessage(ctx context.Context, msg store.Message, location *time.Location) (string, error) {
	var view payloadView
	if err := json.Unmarshal([]byte(msg.JSONData), &view); err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Message %d\n\n", msg.ID)
	fmt.Fprintf(&b, "**Date:** %s\n\n", formatDate(msg, view, location))
	fmt.Fprintf(&b, "[View Original Message](%s)\n\n", originalLink(msg.ID, view))

	if link, name := forwardedOrigin(view); link != "" {
		fmt.Fprintf(&b, "[View Forwarded Message](%s)\n\n", link)
	} else if name != "" {
		fmt.Fprintf(&b, "**Forwarded from:** %s\n\n", name)
	}

	refs, err := e.store.FileReferences(ctx, msg.ID)
	if err != nil {
		return "", err
	}
	if len(refs) > 0 {
		b.WriteString("### Attachments\n\n")
		for _, ref := range refs {
			switch ref.Kind {
			case store.FileKindPhoto, store.FileKindImage:
				fmt.Fprintf(&b, "![Image](%s)\n\n", ref.MarkdownPath)
			default:
				fmt.Fprintf(&b, "- [%s](%s)\n", path.Base(ref.MarkdownPath), ref.MarkdownPath)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("### Message Text\n\n")
	text := strings.TrimSpace(view.Text)
	if text == "" {
		text = strings.TrimSpace(view.Caption)
	}
	if text != "" {
		fmt.Fprintf(&b, "%s\n\n", text)
	} else {
		b.WriteString("_No text provided_\n\n")
	}

	records, err := e.store.AllTags(ctx, msg.ID)
	if err != nil {
		return "", err
	}
	var hashtags []string
	for _, record := range records {
		for _, tag := range record.Tags {
			if trimmed := strings.TrimSpace(tag); trimmed != "" {
				hashtags = append(hashtags, "#"+trimmed)
			}
		}
	}
	if len(hashtags) > 0 {
		b.WriteString("### Tags\n\n")
		fmt.Fprintf(&b, "%s\n\n", strings.Join(hashtags, ", "))
	}

	b.WriteString("---\n\n")
	return b.String(), nil
}

func formatDate(msg store.Message, view payloadView, location *time.Location) string {
	date := msg.Date
	if date.IsZero() && view.Date > 0 {
		date = time.Unix(view.Date, 0)
	}
	if date.IsZero() {
		return "Unknown date"
	}
	return date.In(location).Format("Monday, January 02, 2006 at 15:04:05")
}

// originalLink builds a t.me link for the message. Channels and supergroups
// without a public username use the /c/ form with the -100 prefix stripped.
func originalLink(messageID int64, view payloadView) string {
	if view.Chat == nil {
		return fmt.Sprintf("tg://msg?id=%d", messageID)
	}
	if view.Chat.Username != "" {
		return fmt.Sprintf("https://t.me/%s/%d", view.Chat.Username, messageID)
	}
	if view.Chat.Type == "channel" || view.Chat.Type == "supergroup" {
		return fmt.Sprintf("https://t.me/c/%s/%d", stripChannelPrefix(view.Chat.ID), messageID)
	}
	return fmt.Sprintf("tg://msg?id=%d", messageID)
}

// forwardedOrigin returns a link to the forwarded source when it is
// addressable, otherwise a display name for attribution.
func forwardedOrigin(view payloadView) (link, name string) {
	if view.ForwardFromChat != nil && view.ForwardFromMessageID > 0 {
		if view.ForwardFromChat.Username != "" {
			return fmt.Sprintf("https://t.me/%s/%d", view.ForwardFromChat.Username, view.ForwardFromMessageID), ""
		}
		return fmt.Sprintf("https://t.me/c/%s/%d", stripChannelPrefix(view.ForwardFromChat.ID), view.ForwardFromMessageID), ""
	}
	if view.ForwardSenderName != "" {
		return "", view.ForwardSenderName
	}
	if view.ForwardFrom != nil && view.ForwardFrom.FirstName != "" {
		return "", view.ForwardFrom.FirstName
	}
	if view.ForwardFromChat != nil && view.ForwardFromChat.Title != "" {
		return "", view.ForwardFromChat.Title
	}
	return "", ""
}

func stripChannelPrefix(chatID int64) string {
	id := strconv.FormatInt(chatID, 10)
	return strings.TrimPrefix(id, "-100")
}
