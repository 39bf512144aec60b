package brain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/roadsense/companiond/internal/capability"
)

func newTestClient(endpoint string) *OpenRouterClient {
	return NewOpenRouterClient(OpenRouterConfig{
		Endpoint: endpoint,
		APIKey:   "test-key",
		Model:    "deepseek/deepseek-r1",
		Referer:  "https://example.test",
		Title:    "Companion Test",
	})
}

func TestCompleteSuccess(t *testing.T) {
	var gotBody completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if got := r.Header.Get("HTTP-Referer"); got != "https://example.test" {
			t.Errorf("unexpected referer header %q", got)
		}
		if got := r.Header.Get("X-Title"); got != "Companion Test" {
			t.Errorf("unexpected title header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"Turn left in 200 meters."}}]}`))
	}))
	defer srv.Close()

	reply, err := newTestClient(srv.URL).Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "You are helpful."},
		{Role: RoleUser, Content: "Where do I turn?"},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply != "Turn left in 200 meters." {
		t.Fatalf("unexpected reply %q", reply)
	}
	if gotBody.Model != "deepseek/deepseek-r1" {
		t.Fatalf("unexpected model %q", gotBody.Model)
	}
	if len(gotBody.Messages) != 2 {
		t.Fatalf("expected full history in request, got %d messages", len(gotBody.Messages))
	}
}

func TestCompleteEmptyChoicesFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	reply, err := newTestClient(srv.URL).Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply != fallbackReply {
		t.Fatalf("expected fallback reply, got %q", reply)
	}
}

func TestCompleteMissingAPIKey(t *testing.T) {
	c := NewOpenRouterClient(OpenRouterConfig{Endpoint: "http://127.0.0.1:1", Model: "m"})

	_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	f, ok := capability.AsFailure(err)
	if !ok {
		t.Fatalf("expected a capability failure, got %v", err)
	}
	if f.Code != capability.CodeAuthMissing {
		t.Fatalf("expected auth_missing, got %s", f.Code)
	}
}

func TestCompleteRemoteErrorExtractsMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"model not found"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	f, ok := capability.AsFailure(err)
	if !ok {
		t.Fatalf("expected a capability failure, got %v", err)
	}
	if f.Code != capability.CodeRemoteError {
		t.Fatalf("expected remote_error, got %s", f.Code)
	}
	if f.Detail != "model not found" {
		t.Fatalf("expected upstream message in detail, got %q", f.Detail)
	}
	if f.Retryable {
		t.Fatal("expected 400 to be final")
	}
}

func TestCompleteRetryableStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	f, ok := capability.AsFailure(err)
	if !ok {
		t.Fatalf("expected a capability failure, got %v", err)
	}
	if !f.Retryable {
		t.Fatal("expected 503 to be retryable")
	}
}

func TestCompleteNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	f, ok := capability.AsFailure(err)
	if !ok {
		t.Fatalf("expected a capability failure, got %v", err)
	}
	if f.Code != capability.CodeNetworkError {
		t.Fatalf("expected network_error, got %s", f.Code)
	}
	if !f.Retryable {
		t.Fatal("expected network failures to be retryable")
	}
}

func TestCompleteCancelledContext(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := newTestClient(srv.URL).Complete(ctx, []Message{{Role: RoleUser, Content: "hi"}})
	f, ok := capability.AsFailure(err)
	if !ok {
		t.Fatalf("expected a capability failure, got %v", err)
	}
	if f.Code != capability.CodeUserCancelled {
		t.Fatalf("expected user_cancelled, got %s", f.Code)
	}
}
