package testsupport

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"tgmirror/internal/source"
)

// FakeSource is a scripted source.Client. It serves messages from a fixed
// slice, fabricates media bytes on download, and records transfer counters
// so tests can assert on concurrency and retry behavior.
type FakeSource struct {
	IdentityValue source.Identity
	Messages      []source.RawMessage
	// MediaSize is the byte length of every fabricated download.
	MediaSize int64
	// TransferDelay is injected between download chunks to widen the window
	// in which transfers overlap.
	TransferDelay time.Duration
	// FailDownloads lists message ids whose downloads fail.
	FailDownloads map[int64]bool

	mu          sync.Mutex
	downloads   int
	inFlight    int
	maxInFlight int
}

var _ source.Client = (*FakeSource)(nil)

// Me implements source.Client.
func (f *FakeSource) Me(ctx context.Context) (source.Identity, error) {
	return f.IdentityValue, nil
}

// RecentMessages implements source.Client; messages are assumed scripted in
// most-recent-first order.
func (f *FakeSource) RecentMessages(ctx context.Context, limit int) ([]source.RawMessage, error) {
	msgs := f.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	out := make([]source.RawMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

// MessageByID implements source.Client by scanning the scripted messages.
func (f *FakeSource) MessageByID(ctx context.Context, id int64) (source.RawMessage, error) {
	for _, msg := range f.Messages {
		if msg.ID == id {
			return msg, nil
		}
	}
	return source.RawMessage{}, fmt.Errorf("no scripted message %d", id)
}

// DownloadMedia implements source.Client with fabricated bytes.
func (f *FakeSource) DownloadMedia(ctx context.Context, msg source.RawMessage, targetPath string, onProgress func(current, total int64)) error {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.FailDownloads[msg.ID] {
		return fmt.Errorf("scripted failure for message %d", msg.ID)
	}

	total := f.MediaSize
	if total <= 0 {
		total = 1024
	}
	const chunk = 256
	data := make([]byte, 0, total)
	var written int64
	for written < total {
		if f.TransferDelay > 0 {
			time.Sleep(f.TransferDelay)
		}
		n := int64(chunk)
		if total-written < n {
			n = total - written
		}
		data = append(data, make([]byte, n)...)
		written += n
		if onProgress != nil {
			onProgress(written, total)
		}
	}
	if err := os.WriteFile(targetPath, data, 0o644); err != nil {
		return err
	}

	f.mu.Lock()
	f.downloads++
	f.mu.Unlock()
	return nil
}

// Downloads reports completed transfers.
func (f *FakeSource) Downloads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads
}

// MaxInFlight reports the highest number of overlapping transfers observed.
func (f *FakeSource) MaxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}
