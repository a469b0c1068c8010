package store

import "time"

// File kinds recorded for registered attachments.
const (
	FileKindPhoto    = "photo"
	FileKindImage    = "image"
	FileKindDocument = "document"
)

// Message is a mirrored message row. JSONData holds the full source payload
// so the renderer can reach fields this tool never interprets.
type Message struct {
	ID             int64
	JSONData       string
	FileDownloaded bool
	Date           time.Time
}

// PendingFile is a registered file awaiting download, joined with the owning
// message payload so the transfer can re-resolve the message at the source.
type PendingFile struct {
	MessageID   int64
	Path        string
	MessageJSON string
}

// FileReference points the renderer at a downloaded attachment.
type FileReference struct {
	MarkdownPath string
	Kind         string
}

// TagRecord is one language slot of a message's tags.
type TagRecord struct {
	Language string
	Tags     []string
}

// Stats aggregates store contents for diagnostic output.
type Stats struct {
	Messages        int
	MessagesTagged  int
	FilesTotal      int
	FilesDownloaded int
	FilesPending    int
}
