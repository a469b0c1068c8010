// Package openai implements the tag classification collaborator over the
// OpenAI Assistants API. The session is stateful: an assistant and a thread
// are created once and reused across runs.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL      = "https://api.openai.com/v1"
	defaultModel        = "gpt-4o-mini"
	defaultHTTPTimeout  = 60 * time.Second
	defaultPollInterval = 2 * time.Second
	assistantName       = "tgmirror categorizer"
	betaHeader          = "assistants=v2"
)

// Client wraps the OpenAI Assistants API.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	httpClient   *http.Client
	pollInterval time.Duration
}

// Option customizes the OpenAI client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithModel overrides the assistant model.
func WithModel(model string) Option {
	return func(c *Client) {
		model = strings.TrimSpace(model)
		if model != "" {
			c.model = model
		}
	}
}

// WithPollInterval overrides the delay between run status polls.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// NewClient constructs an OpenAI Assistants client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:       strings.TrimSpace(apiKey),
		baseURL:      defaultBaseURL,
		model:        defaultModel,
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// CreateAssistant registers the reusable tagging assistant and returns its id.
func (c *Client) CreateAssistant(ctx context.Context) (string, error) {
	body := map[string]any{
		"model":           c.model,
		"name":            fmt.Sprintf("%s %s-%s", assistantName, c.model, time.Now().UTC().Format("2006-01-02")),
		"instructions":    assistantInstructions,
		"response_format": map[string]string{"type": "json_object"},
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/assistants", body, &resp); err != nil {
		return "", fmt.Errorf("create assistant: %w", err)
	}
	if resp.ID == "" {
		return "", errors.New("create assistant: empty id in response")
	}
	return resp.ID, nil
}

// CreateThread opens the reusable conversation thread, seeded with the fixed
// framing instructions, and returns its id.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	messages := make([]map[string]string, 0, len(threadSeedInstructions))
	for _, content := range threadSeedInstructions {
		messages = append(messages, map[string]string{"role": "user", "content": content})
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/threads", map[string]any{"messages": messages}, &resp); err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	if resp.ID == "" {
		return "", errors.New("create thread: empty id in response")
	}
	return resp.ID, nil
}

// SubmitBatch sends one id-to-text map to the session and returns the
// classifier's id-to-tags map. A nil value for an id means the classifier
// judged the message tag-less. Any transport or run failure is returned and
// is fatal to the tagging run.
func (c *Client) SubmitBatch(ctx context.Context, threadID, assistantID string, articles map[int64]string) (map[int64][]string, error) {
	if len(articles) == 0 {
		return map[int64][]string{}, nil
	}
	request := make(map[string]string, len(articles))
	for id, text := range articles {
		request[strconv.FormatInt(id, 10)] = text
	}
	content, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("submit batch: encode request: %w", err)
	}

	messageBody := map[string]any{"role": "user", "content": string(content)}
	if err := c.post(ctx, "/threads/"+threadID+"/messages", messageBody, nil); err != nil {
		return nil, fmt.Errorf("submit batch: post message: %w", err)
	}

	var run struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := c.post(ctx, "/threads/"+threadID+"/runs", map[string]any{"assistant_id": assistantID}, &run); err != nil {
		return nil, fmt.Errorf("submit batch: create run: %w", err)
	}

	if err := c.awaitRun(ctx, threadID, run.ID, run.Status); err != nil {
		return nil, err
	}

	raw, err := c.latestRunMessage(ctx, threadID, run.ID)
	if err != nil {
		return nil, err
	}

	var decoded map[string][]string
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("submit batch: parse classifier payload: %w", err)
	}
	result := make(map[int64][]string, len(decoded))
	for key, tags := range decoded {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("submit batch: non-numeric article id %q in response", key)
		}
		result[id] = tags
	}
	return result, nil
}

// awaitRun polls until the run reaches a terminal status.
func (c *Client) awaitRun(ctx context.Context, threadID, runID, status string) error {
	for {
		switch status {
		case "completed":
			return nil
		case "failed", "cancelled", "expired", "incomplete", "requires_action":
			return fmt.Errorf("run %s ended with status %s", runID, status)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}

		var run struct {
			Status    string `json:"status"`
			LastError *struct {
				Message string `json:"message"`
			} `json:"last_error"`
		}
		if err := c.get(ctx, "/threads/"+threadID+"/runs/"+runID, &run); err != nil {
			return fmt.Errorf("poll run %s: %w", runID, err)
		}
		if run.Status == "failed" && run.LastError != nil {
			return fmt.Errorf("run %s failed: %s", runID, strings.TrimSpace(run.LastError.Message))
		}
		status = run.Status
	}
}

// latestRunMessage returns the text of the newest assistant message the run
// produced.
func (c *Client) latestRunMessage(ctx context.Context, threadID, runID string) (string, error) {
	var list struct {
		Data []struct {
			Content []struct {
				Type string `json:"type"`
				Text struct {
					Value string `json:"value"`
				} `json:"text"`
			} `json:"content"`
		} `json:"data"`
	}
	path := "/threads/" + threadID + "/messages?" + url.Values{"run_id": {runID}, "limit": {"1"}}.Encode()
	if err := c.get(ctx, path, &list); err != nil {
		return "", fmt.Errorf("list run messages: %w", err)
	}
	if len(list.Data) == 0 || len(list.Data[0].Content) == 0 {
		return "", errors.New("run produced no message content")
	}
	for _, content := range list.Data[0].Content {
		if content.Type == "text" {
			return content.Text.Value, nil
		}
	}
	return "", errors.New("run message has no text content")
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(encoded), out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	if c.apiKey == "" {
		return errors.New("api key required")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OpenAI-Beta", betaHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
