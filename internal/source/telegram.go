package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	updatesPageSize   = 100
	downloadChunkSize = 64 * 1024
)

// botAPI is the slice of *tgbotapi.BotAPI this adapter needs, split out so
// tests can substitute a scripted bot.
type botAPI interface {
	GetMe() (tgbotapi.User, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
}

// TelegramClient reads one chat's archive through the Telegram Bot API.
type TelegramClient struct {
	bot        botAPI
	token      string
	chatID     int64
	httpClient *http.Client
}

// NewTelegramClient authenticates against the Bot API. An empty apiEndpoint
// selects the public endpoint.
func NewTelegramClient(token string, chatID int64, apiEndpoint string) (*TelegramClient, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram: token is required")
	}
	endpoint := apiEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, http.DefaultClient)
	if err != nil {
		return nil, fmt.Errorf("telegram: authenticate: %w", err)
	}
	return &TelegramClient{
		bot:        bot,
		token:      token,
		chatID:     chatID,
		httpClient: http.DefaultClient,
	}, nil
}

// Me implements Client.
func (c *TelegramClient) Me(ctx context.Context) (Identity, error) {
	user, err := c.bot.GetMe()
	if err != nil {
		return Identity{}, fmt.Errorf("telegram: get me: %w", err)
	}
	return Identity{ID: user.ID, Username: user.UserName, FirstName: user.FirstName}, nil
}

// RecentMessages drains pending updates for the configured chat and returns
// them most recent first. A limit of 0 returns everything available.
func (c *TelegramClient) RecentMessages(ctx context.Context, limit int) ([]RawMessage, error) {
	var collected []RawMessage
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cfg := tgbotapi.NewUpdate(offset)
		cfg.Limit = updatesPageSize
		updates, err := c.bot.GetUpdates(cfg)
		if err != nil {
			return nil, fmt.Errorf("telegram: get updates: %w", err)
		}
		if len(updates) == 0 {
			break
		}
		for _, update := range updates {
			msg := update.Message
			if msg == nil {
				msg = update.ChannelPost
			}
			if msg == nil || msg.Chat == nil || msg.Chat.ID != c.chatID {
				continue
			}
			raw, err := fromBotMessage(msg)
			if err != nil {
				return nil, err
			}
			collected = append(collected, raw)
		}
		offset = updates[len(updates)-1].UpdateID + 1
	}

	sort.Slice(collected, func(i, j int) bool { return collected[i].ID > collected[j].ID })
	if limit > 0 && len(collected) > limit {
		collected = collected[:limit]
	}
	return collected, nil
}

// MessageByID implements Client. The Bot API cannot fetch arbitrary messages
// by id, so this always reports ErrMessageNotAvailable; downloads proceed
// from the cached payload instead, and the live transfer handle is refreshed
// inside DownloadMedia via GetFile.
func (c *TelegramClient) MessageByID(ctx context.Context, id int64) (RawMessage, error) {
	return RawMessage{}, ErrMessageNotAvailable
}

// DownloadMedia implements Client. GetFile exchanges the stored file id for
// a short-lived download path, which is the Bot API's re-resolution step.
func (c *TelegramClient) DownloadMedia(ctx context.Context, msg RawMessage, targetPath string, onProgress func(current, total int64)) error {
	if msg.Media.Kind == MediaNone || msg.Media.FileID == "" {
		return fmt.Errorf("telegram: message %d has no downloadable media", msg.ID)
	}

	file, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: msg.Media.FileID})
	if err != nil {
		return fmt.Errorf("telegram: get file %s: %w", msg.Media.FileID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(c.token), nil)
	if err != nil {
		return fmt.Errorf("telegram: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: download %s: %w", msg.Media.FileID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram: download %s: unexpected status %d", msg.Media.FileID, resp.StatusCode)
	}

	total := int64(file.FileSize)
	if total <= 0 {
		total = resp.ContentLength
	}

	return streamToFile(resp.Body, targetPath, total, onProgress)
}

func streamToFile(body io.Reader, targetPath string, total int64, onProgress func(current, total int64)) error {
	out, err := os.Create(targetPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", targetPath, err)
	}
	defer out.Close()

	var written int64
	buf := make([]byte, downloadChunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("write %s: %w", targetPath, writeErr)
			}
			written += int64(n)
			if onProgress != nil && total > 0 {
				onProgress(written, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read media stream: %w", readErr)
		}
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", targetPath, err)
	}
	// Sources that never declared a length still need the terminal callback.
	if onProgress != nil && (total <= 0 || written != total) {
		onProgress(written, written)
	}
	return nil
}

func fromBotMessage(msg *tgbotapi.Message) (RawMessage, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return RawMessage{}, fmt.Errorf("telegram: encode message %d: %w", msg.MessageID, err)
	}
	raw := RawMessage{
		ID:      int64(msg.MessageID),
		Text:    messageText(msg.Text, msg.Caption),
		Date:    time.Unix(int64(msg.Date), 0).UTC(),
		Media:   classifyBotMedia(msg),
		Payload: payload,
	}
	return raw, nil
}

func messageText(text, caption string) string {
	if text != "" {
		return text
	}
	return caption
}

func classifyBotMedia(msg *tgbotapi.Message) Media {
	switch {
	case len(msg.Photo) > 0:
		// Telegram lists photo renditions smallest first.
		best := msg.Photo[len(msg.Photo)-1]
		return Media{Kind: MediaPhoto, FileID: best.FileID}
	case msg.Document != nil:
		return Media{
			Kind:     MediaDocument,
			FileName: msg.Document.FileName,
			MimeType: msg.Document.MimeType,
			FileID:   msg.Document.FileID,
		}
	case msg.Audio != nil || msg.Video != nil || msg.Voice != nil ||
		msg.VideoNote != nil || msg.Sticker != nil || msg.Animation != nil ||
		msg.Location != nil || msg.Contact != nil || msg.Poll != nil:
		return Media{Kind: MediaOther}
	default:
		return Media{Kind: MediaNone}
	}
}

// DecodeMessage rebuilds a RawMessage from a stored payload. It reads the
// same fields the Telegram adapter serializes, so a cached message can stand
// in when the source cannot re-resolve by id.
func DecodeMessage(payload []byte) (RawMessage, error) {
	var msg tgbotapi.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return RawMessage{}, fmt.Errorf("decode message payload: %w", err)
	}
	return fromBotMessage(&msg)
}
