package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newAnthropicTestServer(t *testing.T, capture *anthropicRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(capture); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicContent{{Type: "text", Text: "hello"}},
			Model:   "claude-test",
			Usage:   anthropicUsage{InputTokens: 5, OutputTokens: 7},
		})
	}))
}

func TestAnthropicSeparatesSystemMessages(t *testing.T) {
	var captured anthropicRequest
	srv := newAnthropicTestServer(t, &captured)
	defer srv.Close()

	p := NewAnthropicProvider("key")
	p.baseURL = srv.URL

	resp, err := p.Complete(context.Background(), "claude-test", CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "be helpful"},
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "hello"},
			{Role: RoleUser, Content: "bye"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if captured.System != "be helpful" {
		t.Errorf("expected system field, got %q", captured.System)
	}
	if len(captured.Messages) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(captured.Messages))
	}
	if resp.Content != "hello" || resp.Usage.InputTokens != 5 {
		t.Errorf("response mismatch: %+v", resp)
	}
}

func TestAnthropicPromotesFinalSystemMessage(t *testing.T) {
	var captured anthropicRequest
	srv := newAnthropicTestServer(t, &captured)
	defer srv.Close()

	p := NewAnthropicProvider("key")
	p.baseURL = srv.URL

	_, err := p.Complete(context.Background(), "claude-test", CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "preamble one"},
			{Role: RoleSystem, Content: "actual task"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(captured.Messages) != 1 {
		t.Fatalf("expected 1 promoted turn, got %d", len(captured.Messages))
	}
	if captured.Messages[0].Role != "user" || captured.Messages[0].Content != "actual task" {
		t.Errorf("promotion mismatch: %+v", captured.Messages[0])
	}
	if captured.System != "preamble one" {
		t.Errorf("remaining system messages should stay in the preamble, got %q", captured.System)
	}
}

func TestAnthropicPromotionKeepsJSONInstruction(t *testing.T) {
	var captured anthropicRequest
	srv := newAnthropicTestServer(t, &captured)
	defer srv.Close()

	p := NewAnthropicProvider("key")
	p.baseURL = srv.URL

	_, err := p.Complete(context.Background(), "claude-test", CompletionRequest{
		Messages: []Message{{Role: RoleSystem, Content: "summarize as JSON"}},
		JSONMode: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(captured.Messages) != 1 {
		t.Fatalf("expected 1 promoted turn, got %d", len(captured.Messages))
	}
	if !strings.Contains(captured.Messages[0].Content, jsonOnlyInstruction) {
		t.Errorf("promoted message lost the JSON instruction: %q", captured.Messages[0].Content)
	}
	if strings.Count(captured.Messages[0].Content, jsonOnlyInstruction) != 1 {
		t.Errorf("JSON instruction duplicated: %q", captured.Messages[0].Content)
	}
}

func TestAnthropicSurfacesClientErrorsWithoutRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("key")
	p.baseURL = srv.URL

	_, err := p.Complete(context.Background(), "claude-test", CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("4xx must not be retried, got %d calls", calls)
	}
}
