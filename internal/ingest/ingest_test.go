package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tgmirror/internal/source"
	"tgmirror/internal/store"
	"tgmirror/internal/testsupport"
)

func TestClassifyMedia(t *testing.T) {
	tests := []struct {
		name     string
		media    source.Media
		wantName string
		wantKind string
		wantOK   bool
	}{
		{
			name:     "photo",
			media:    source.Media{Kind: source.MediaPhoto},
			wantName: "42_photo.jpg",
			wantKind: store.FileKindPhoto,
			wantOK:   true,
		},
		{
			name:     "named document",
			media:    source.Media{Kind: source.MediaDocument, FileName: "report.pdf", MimeType: "application/pdf"},
			wantName: "report.pdf",
			wantKind: store.FileKindDocument,
			wantOK:   true,
		},
		{
			name:     "image document",
			media:    source.Media{Kind: source.MediaDocument, FileName: "scan.png", MimeType: "image/png"},
			wantName: "scan.png",
			wantKind: store.FileKindImage,
			wantOK:   true,
		},
		{
			name:     "nameless document derives extension from mime",
			media:    source.Media{Kind: source.MediaDocument, MimeType: "application/pdf"},
			wantName: "42_document.pdf",
			wantKind: store.FileKindDocument,
			wantOK:   true,
		},
		{
			name:     "nameless document without mime",
			media:    source.Media{Kind: source.MediaDocument},
			wantName: "42_document.file",
			wantKind: store.FileKindDocument,
			wantOK:   true,
		},
		{
			name:     "nameless document with malformed mime",
			media:    source.Media{Kind: source.MediaDocument, MimeType: "a/b/c"},
			wantName: "42_document.c",
			wantKind: store.FileKindDocument,
			wantOK:   true,
		},
		{
			name:  "no media",
			media: source.Media{Kind: source.MediaNone},
		},
		{
			name:  "unhandled kind",
			media: source.Media{Kind: source.MediaOther},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			att, ok := classifyMedia(42, tc.media)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if att.FileName != tc.wantName {
				t.Fatalf("file name = %q, want %q", att.FileName, tc.wantName)
			}
			if att.Kind != tc.wantKind {
				t.Fatalf("kind = %q, want %q", att.Kind, tc.wantKind)
			}
		})
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`re\port.pdf`, "re_port.pdf"},
		{"a/b*c?.txt", "a_b_c_.txt"},
		{`q:"u"<o>t|e`, "q__u__o_t_e"},
		{"plain-name_1.jpg", "plain-name_1.jpg"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := sanitizeFileName(tc.in); got != tc.want {
			t.Errorf("sanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRunStoresMessagesAndRegistersMedia(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	src := &testsupport.FakeSource{
		Messages: []source.RawMessage{
			{
				ID:      3,
				Text:    "photo message",
				Date:    time.Now(),
				Media:   source.Media{Kind: source.MediaPhoto, FileID: "f3"},
				Payload: []byte(`{"text":"photo message"}`),
			},
			{
				ID:      2,
				Text:    "plain text",
				Date:    time.Now(),
				Payload: []byte(`{"text":"plain text"}`),
			},
			{
				ID:      1,
				Date:    time.Now(),
				Media:   source.Media{Kind: source.MediaDocument, MimeType: "application/pdf", FileID: "f1"},
				Payload: []byte(`{}`),
			},
		},
	}

	ing := New(st, src, cfg, testsupport.NewLogger(t))
	if err := ing.Run(context.Background(), 0); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ctx := context.Background()
	messages, err := st.ListMessages(ctx)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 stored messages, got %d", len(messages))
	}

	pending, err := st.ListPendingFiles(ctx)
	if err != nil {
		t.Fatalf("ListPendingFiles: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending files, got %d", len(pending))
	}
	wantPaths := map[int64]string{
		3: filepath.Join(cfg.FilesDir(), "3_photo.jpg"),
		1: filepath.Join(cfg.FilesDir(), "1_document.pdf"),
	}
	for _, p := range pending {
		if want := wantPaths[p.MessageID]; p.Path != want {
			t.Fatalf("message %d path = %q, want %q", p.MessageID, p.Path, want)
		}
	}
}

func TestRunHonorsLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	src := &testsupport.FakeSource{
		Messages: []source.RawMessage{
			{ID: 5, Date: time.Now(), Payload: []byte(`{}`)},
			{ID: 4, Date: time.Now(), Payload: []byte(`{}`)},
			{ID: 3, Date: time.Now(), Payload: []byte(`{}`)},
		},
	}

	ing := New(st, src, cfg, testsupport.NewLogger(t))
	if err := ing.Run(context.Background(), 1); err != nil {
		t.Fatalf("Run: %v", err)
	}

	messages, err := st.ListMessages(context.Background())
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(messages) != 1 || messages[0].ID != 5 {
		t.Fatalf("expected only most recent message stored, got %+v", messages)
	}
}

func TestRunIsIdempotentAcrossSyncs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	src := &testsupport.FakeSource{
		Messages: []source.RawMessage{
			{
				ID:      1,
				Date:    time.Now(),
				Media:   source.Media{Kind: source.MediaPhoto, FileID: "f1"},
				Payload: []byte(`{}`),
			},
		},
	}

	ing := New(st, src, cfg, testsupport.NewLogger(t))
	for i := 0; i < 2; i++ {
		if err := ing.Run(context.Background(), 0); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}

	ctx := context.Background()
	messages, err := st.ListMessages(ctx)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message after replay, got %d", len(messages))
	}
	pending, err := st.ListPendingFiles(ctx)
	if err != nil {
		t.Fatalf("ListPendingFiles: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending file after replay, got %d", len(pending))
	}

	// A sync after the file was fetched must not resurrect the transfer.
	if err := st.MarkFileDownloaded(ctx, 1, pending[0].Path); err != nil {
		t.Fatalf("MarkFileDownloaded: %v", err)
	}
	if err := ing.Run(ctx, 0); err != nil {
		t.Fatalf("Run after download: %v", err)
	}
	pending, err = st.ListPendingFiles(ctx)
	if err != nil {
		t.Fatalf("ListPendingFiles: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("sync replay re-queued a downloaded file, got %d pending", len(pending))
	}
}
