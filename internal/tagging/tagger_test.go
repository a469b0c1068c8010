package tagging_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"tgmirror/internal/store"
	"tgmirror/internal/tagging"
	"tgmirror/internal/testsupport"
)

func seedMessage(t *testing.T, st *store.Store, id int64, payload string) {
	t.Helper()
	if err := st.UpsertMessage(context.Background(), id, payload, time.Now()); err != nil {
		t.Fatalf("UpsertMessage %d: %v", id, err)
	}
}

func TestRunTagsTextMessagesAndSkipsEmptyOnes(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	seedMessage(t, st, 1, `{"text":"hello world"}`)
	seedMessage(t, st, 2, `{"text":""}`)
	seedMessage(t, st, 3, `{"text":"https://example.com"}`)

	classifier := &testsupport.FakeClassifier{
		Responses: map[int64][]string{
			1: {"greeting"},
			// 3 is scripted tag-less: link-only content.
		},
	}

	tagger := tagging.New(st, classifier, testsupport.NewLogger(t), tagging.Options{BatchSize: 50})
	if err := tagger.Run(context.Background(), false); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ctx := context.Background()
	tags, ok, err := st.GetTags(ctx, 1)
	if err != nil {
		t.Fatalf("GetTags: %v", err)
	}
	if !ok || len(tags) != 1 || tags[0] != "greeting" {
		t.Fatalf("unexpected tags for message 1: %v (ok=%v)", tags, ok)
	}

	// Empty text never reaches the classifier; tag-less results are not
	// persisted by default.
	for _, id := range []int64{2, 3} {
		if _, ok, err := st.GetTags(ctx, id); err != nil {
			t.Fatalf("GetTags %d: %v", id, err)
		} else if ok {
			t.Fatalf("expected no tag record for message %d", id)
		}
	}

	batches := classifier.Batches()
	if len(batches) != 1 {
		t.Fatalf("expected one batch, got %d", len(batches))
	}
	if _, submitted := batches[0][2]; submitted {
		t.Fatal("empty message must not be submitted")
	}
	if _, submitted := batches[0][3]; !submitted {
		t.Fatal("link-only message should still be submitted")
	}
}

func TestRunPersistsNegativeResultsWhenConfigured(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	seedMessage(t, st, 1, `{"text":"https://example.com"}`)

	classifier := &testsupport.FakeClassifier{}
	tagger := tagging.New(st, classifier, testsupport.NewLogger(t), tagging.Options{
		BatchSize:              50,
		PersistNegativeResults: true,
	})
	if err := tagger.Run(context.Background(), false); err != nil {
		t.Fatalf("Run: %v", err)
	}

	tags, ok, err := st.GetTags(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetTags: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted negative result")
	}
	if len(tags) != 0 {
		t.Fatalf("expected empty tag list, got %v", tags)
	}

	// The persisted record keeps the message out of the next run.
	if err := tagger.Run(context.Background(), false); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if got := len(classifier.Batches()); got != 1 {
		t.Fatalf("expected no resubmission, got %d batches", got)
	}
}

func TestRunSkipsTaggedUnlessOverwrite(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	seedMessage(t, st, 1, `{"text":"old news"}`)
	if err := st.SetTags(context.Background(), 1, []string{"stale"}); err != nil {
		t.Fatalf("SetTags: %v", err)
	}

	classifier := &testsupport.FakeClassifier{
		Responses: map[int64][]string{1: {"fresh"}},
	}
	tagger := tagging.New(st, classifier, testsupport.NewLogger(t), tagging.Options{BatchSize: 50})

	if err := tagger.Run(context.Background(), false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(classifier.Batches()); got != 0 {
		t.Fatalf("tagged message must be skipped, got %d batches", got)
	}
	tags, _, err := st.GetTags(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetTags: %v", err)
	}
	if len(tags) != 1 || tags[0] != "stale" {
		t.Fatalf("tags must be preserved, got %v", tags)
	}

	if err := tagger.Run(context.Background(), true); err != nil {
		t.Fatalf("overwrite Run: %v", err)
	}
	tags, _, err = st.GetTags(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetTags: %v", err)
	}
	if len(tags) != 1 || tags[0] != "fresh" {
		t.Fatalf("overwrite must replace tags, got %v", tags)
	}
}

func TestRunSplitsCandidatesIntoBatches(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	responses := make(map[int64][]string)
	for id := int64(1); id <= 5; id++ {
		seedMessage(t, st, id, `{"text":"message body"}`)
		responses[id] = []string{"topic"}
	}

	classifier := &testsupport.FakeClassifier{Responses: responses}
	tagger := tagging.New(st, classifier, testsupport.NewLogger(t), tagging.Options{BatchSize: 2})
	if err := tagger.Run(context.Background(), false); err != nil {
		t.Fatalf("Run: %v", err)
	}

	batches := classifier.Batches()
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches for 5 candidates at size 2, got %d", len(batches))
	}
	seen := make(map[int64]bool)
	for _, batch := range batches {
		if len(batch) > 2 {
			t.Fatalf("batch exceeds size cap: %d", len(batch))
		}
		for id := range batch {
			if seen[id] {
				t.Fatalf("message %d submitted twice", id)
			}
			seen[id] = true
		}
	}
	if len(seen) != 5 {
		t.Fatalf("expected every candidate submitted exactly once, got %d", len(seen))
	}
}

func TestRunReusesPersistedSession(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	seedMessage(t, st, 1, `{"text":"first"}`)

	classifier := &testsupport.FakeClassifier{
		Responses: map[int64][]string{1: {"a"}, 2: {"b"}},
	}
	tagger := tagging.New(st, classifier, testsupport.NewLogger(t), tagging.Options{BatchSize: 50})
	if err := tagger.Run(context.Background(), false); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	ctx := context.Background()
	assistantID, ok, err := st.GetMeta(ctx, tagging.MetaAssistantID)
	if err != nil || !ok {
		t.Fatalf("assistant id not persisted (ok=%v, err=%v)", ok, err)
	}
	if assistantID == "" {
		t.Fatal("empty assistant id")
	}
	if _, ok, err := st.GetMeta(ctx, tagging.MetaThreadID); err != nil || !ok {
		t.Fatalf("thread id not persisted (ok=%v, err=%v)", ok, err)
	}

	seedMessage(t, st, 2, `{"text":"second"}`)
	if err := tagger.Run(ctx, false); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if got := classifier.CreateAssistantCalls(); got != 1 {
		t.Fatalf("assistant created %d times, want 1", got)
	}
	if got := classifier.CreateThreadCalls(); got != 1 {
		t.Fatalf("thread created %d times, want 1", got)
	}
}

func TestRunAbortsOnBatchFailureButKeepsEarlierTags(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	seedMessage(t, st, 1, `{"text":"caption fallback"}`)

	classifier := &testsupport.FakeClassifier{SubmitErr: errors.New("run failed")}
	tagger := tagging.New(st, classifier, testsupport.NewLogger(t), tagging.Options{BatchSize: 50})
	if err := tagger.Run(context.Background(), false); err == nil {
		t.Fatal("expected batch failure to surface")
	}
}

func TestCaptionFallsBackAsText(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	seedMessage(t, st, 1, `{"caption":"photo caption"}`)

	classifier := &testsupport.FakeClassifier{Responses: map[int64][]string{1: {"photo"}}}
	tagger := tagging.New(st, classifier, testsupport.NewLogger(t), tagging.Options{BatchSize: 50})
	if err := tagger.Run(context.Background(), false); err != nil {
		t.Fatalf("Run: %v", err)
	}

	batches := classifier.Batches()
	if len(batches) != 1 {
		t.Fatalf("expected one batch, got %d", len(batches))
	}
	if batches[0][1] != "photo caption" {
		t.Fatalf("expected caption submitted as text, got %q", batches[0][1])
	}
}
