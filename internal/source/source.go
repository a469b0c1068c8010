// Package source defines the message-archive collaborator contract and its
// Telegram Bot API implementation.
package source

import (
	"context"
	"errors"
	"time"
)

// MediaKind classifies a message's media descriptor. The set is closed:
// kinds this tool does not handle map to MediaOther and are skipped by
// ingestion rather than failing it.
type MediaKind int

const (
	MediaNone MediaKind = iota
	MediaPhoto
	MediaDocument
	MediaOther
)

// Media describes a message attachment at the source.
type Media struct {
	Kind MediaKind
	// FileName is the declared document filename, when the source provides one.
	FileName string
	// MimeType is the declared document MIME type, possibly empty.
	MimeType string
	// FileID addresses the media bytes at the source.
	FileID string
}

// Identity describes the authenticated account at the source.
type Identity struct {
	ID        int64
	Username  string
	FirstName string
}

// RawMessage is one archive entry as fetched from the source. Payload holds
// the source's full JSON representation, a superset of what this tool reads.
type RawMessage struct {
	ID      int64
	Text    string
	Date    time.Time
	Media   Media
	Payload []byte
}

// ErrMessageNotAvailable reports that the source cannot address a message by
// id. Callers holding a cached payload fall back to DecodeMessage.
var ErrMessageNotAvailable = errors.New("source: message not addressable by id")

// Client is the message source collaborator.
type Client interface {
	// Me returns the authenticated identity.
	Me(ctx context.Context) (Identity, error)
	// RecentMessages fetches up to limit messages, most recent first.
	// A limit of 0 means unbounded.
	RecentMessages(ctx context.Context, limit int) ([]RawMessage, error)
	// MessageByID re-resolves one message. Implementations that cannot
	// address messages by id return ErrMessageNotAvailable.
	MessageByID(ctx context.Context, id int64) (RawMessage, error)
	// DownloadMedia streams the message's media to targetPath, invoking
	// onProgress after every chunk with cumulative and total byte counts.
	DownloadMedia(ctx context.Context, msg RawMessage, targetPath string, onProgress func(current, total int64)) error
}
