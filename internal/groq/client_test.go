package groq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"intelbrief/backend/internal/config"
)

func TestChatCompletionReturnsContentAndUsage(t *testing.T) {
	var receivedAuth string
	var receivedBody completionAPIRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&receivedBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
		  "choices": [{"message": {"content": "  hello  "}}],
		  "usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
		}`))
	}))
	defer server.Close()

	client := NewClient(config.Config{GroqAPIKey: "groq-key", GroqBaseURL: server.URL}, server.Client())

	content, usage, err := client.ChatCompletion(context.Background(), Request{
		Model:       "llama-3.3-70b-versatile",
		Messages:    []Message{{Role: "user", Content: "hi"}},
		Temperature: 0.2,
		JSONOnly:    true,
	})
	if err != nil {
		t.Fatalf("chat completion: %v", err)
	}

	if receivedAuth != "Bearer groq-key" {
		t.Fatalf("unexpected auth header: %q", receivedAuth)
	}
	if receivedBody.ResponseFormat == nil || receivedBody.ResponseFormat.Type != "json_object" {
		t.Fatalf("expected json_object response format, got %+v", receivedBody.ResponseFormat)
	}
	if content != "hello" {
		t.Fatalf("unexpected content: %q", content)
	}
	if usage.TotalTokens != 16 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
}

func TestChatCompletionReturnsErrMissingAPIKey(t *testing.T) {
	client := NewClient(config.Config{GroqAPIKey: ""}, nil)

	_, _, err := client.ChatCompletion(context.Background(), Request{
		Model:    "m",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != ErrMissingAPIKey {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestChatCompletionSurfacesUpstreamStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	client := NewClient(config.Config{GroqAPIKey: "k", GroqBaseURL: server.URL}, server.Client())

	_, _, err := client.ChatCompletion(context.Background(), Request{
		Model:    "m",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil || !strings.Contains(err.Error(), "groq returned 429") {
		t.Fatalf("expected upstream status error, got %v", err)
	}
}

func TestCompleteJSONRetriesWithStrictPrompt(t *testing.T) {
	calls := 0
	var secondSystem string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req completionAPIRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "no json here"}}]}`))
			return
		}
		if len(req.Messages) > 0 && req.Messages[0].Role == "system" {
			secondSystem = req.Messages[0].Content
		}
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "{\"ok\":true}"}}]}`))
	}))
	defer server.Close()

	client := NewClient(config.Config{GroqAPIKey: "k", GroqBaseURL: server.URL}, server.Client())

	content, _, err := client.CompleteJSON(context.Background(), Request{
		Model:       "m",
		Temperature: 0.4,
		Messages: []Message{
			{Role: "system", Content: "plan searches"},
			{Role: "user", Content: "topic"},
		},
	})
	if err != nil {
		t.Fatalf("complete json: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
	if !strings.Contains(secondSystem, "ONLY a single valid JSON object") {
		t.Fatalf("expected tightened system prompt, got %q", secondSystem)
	}
	if content != `{"ok":true}` {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestCompleteJSONAcceptsFirstValidObject(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "{\"ready\":1}"}}]}`))
	}))
	defer server.Close()

	client := NewClient(config.Config{GroqAPIKey: "k", GroqBaseURL: server.URL}, server.Client())

	if _, _, err := client.CompleteJSON(context.Background(), Request{
		Model:    "m",
		Messages: []Message{{Role: "user", Content: "hi"}},
	}); err != nil {
		t.Fatalf("complete json: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}
