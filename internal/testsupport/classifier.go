package testsupport

import (
	"context"
	"sync"
)

// FakeClassifier is a scripted tagging.Classifier. Responses maps message
// ids to tag lists; ids absent from the map (or mapped to nil) are reported
// as tag-less, mirroring the collaborator's null result.
type FakeClassifier struct {
	Responses map[int64][]string
	// SubmitErr fails every SubmitBatch call when set.
	SubmitErr error

	mu                   sync.Mutex
	createAssistantCalls int
	createThreadCalls    int
	batches              []map[int64]string
}

// CreateAssistant implements tagging.Classifier.
func (f *FakeClassifier) CreateAssistant(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createAssistantCalls++
	return "asst_fake", nil
}

// CreateThread implements tagging.Classifier.
func (f *FakeClassifier) CreateThread(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createThreadCalls++
	return "thread_fake", nil
}

// SubmitBatch implements tagging.Classifier.
func (f *FakeClassifier) SubmitBatch(ctx context.Context, threadID, assistantID string, articles map[int64]string) (map[int64][]string, error) {
	if f.SubmitErr != nil {
		return nil, f.SubmitErr
	}

	recorded := make(map[int64]string, len(articles))
	result := make(map[int64][]string, len(articles))
	for id, text := range articles {
		recorded[id] = text
		result[id] = f.Responses[id]
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, recorded)
	return result, nil
}

// CreateAssistantCalls reports how many assistants were created.
func (f *FakeClassifier) CreateAssistantCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createAssistantCalls
}

// CreateThreadCalls reports how many threads were created.
func (f *FakeClassifier) CreateThreadCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createThreadCalls
}

// Batches returns the submitted batches in order.
func (f *FakeClassifier) Batches() []map[int64]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[int64]string, len(f.batches))
	copy(out, f.batches)
	return out
}
