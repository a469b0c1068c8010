package ingest

import (
	"fmt"
	"strings"

	"tgmirror/internal/source"
	"tgmirror/internal/store"
)

// attachment is a classified media descriptor ready for registration.
type attachment struct {
	FileName string
	Kind     string
}

// classifyMedia maps a message's media descriptor to a deterministic file
// name and kind. The empty boolean result means the message registers no
// file (no media, or a kind this tool does not mirror).
func classifyMedia(messageID int64, media source.Media) (attachment, bool) {
	switch media.Kind {
	case source.MediaPhoto:
		return attachment{
			FileName: sanitizeFileName(fmt.Sprintf("%d_photo.jpg", messageID)),
			Kind:     store.FileKindPhoto,
		}, true
	case source.MediaDocument:
		name := media.FileName
		if name == "" {
			name = fmt.Sprintf("%d_document.%s", messageID, extensionFromMime(media.MimeType))
		}
		kind := store.FileKindDocument
		if strings.HasPrefix(media.MimeType, "image/") {
			kind = store.FileKindImage
		}
		return attachment{FileName: sanitizeFileName(name), Kind: kind}, true
	default:
		// MediaNone and unhandled kinds register nothing.
		return attachment{}, false
	}
}

// extensionFromMime derives a file extension from a declared MIME type,
// falling back to a generic one when the type is absent or malformed.
func extensionFromMime(mimeType string) string {
	slash := strings.LastIndex(mimeType, "/")
	if slash < 0 || slash == len(mimeType)-1 {
		return "file"
	}
	return mimeType[slash+1:]
}

// sanitizeFileName substitutes characters illegal in file paths with an
// underscore. The substitution is deterministic and performs no collision
// resolution: two raw names that collide after substitution map to the same
// target path.
func sanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\\', '/', '*', '?', ':', '"', '<', '>', '|':
			return '_'
		default:
			return r
		}
	}, name)
}
