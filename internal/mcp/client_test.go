package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testConfig(url string) ClientConfig {
	return ClientConfig{
		BaseURL:       url,
		ClientName:    "finsage-test",
		ClientVersion: "0.0.1",
		InitTimeout:   2 * time.Second,
		CallTimeout:   2 * time.Second,
	}
}

func TestInitializeRecordsServerSessionID(t *testing.T) {
	var gotHeader string
	var gotBody rpcRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("Mcp-Session-Id")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Mcp-Session-Id", "server-assigned-42")
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":"2024-11-05"}}`)
	}))
	defer server.Close()

	client := NewClient("local-7", testConfig(server.URL))
	remoteID, err := client.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if remoteID != "server-assigned-42" {
		t.Fatalf("expected server session id, got %q", remoteID)
	}
	if client.RemoteID() != "server-assigned-42" {
		t.Fatalf("RemoteID() = %q, want server-assigned-42", client.RemoteID())
	}
	if gotHeader != "local-7" {
		t.Errorf("initialize carried header %q, want local-7", gotHeader)
	}
	if gotBody.Method != "initialize" {
		t.Errorf("method = %q, want initialize", gotBody.Method)
	}
	if gotBody.Params["protocolVersion"] != "2024-11-05" {
		t.Errorf("protocolVersion = %v", gotBody.Params["protocolVersion"])
	}
	info, ok := gotBody.Params["clientInfo"].(map[string]any)
	if !ok || info["name"] != "finsage-test" {
		t.Errorf("clientInfo = %v", gotBody.Params["clientInfo"])
	}
}

func TestInitializeFallsBackToLocalID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{}}`)
	}))
	defer server.Close()

	client := NewClient("local-9", testConfig(server.URL))
	remoteID, err := client.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if remoteID != "local-9" {
		t.Fatalf("expected local fallback id, got %q", remoteID)
	}
}

func TestCallToolUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient("s1", testConfig(server.URL))
	_, err := client.CallTool(context.Background(), "fetch_net_worth")
	if !errors.Is(err, ErrLoginRequired) {
		t.Fatalf("expected ErrLoginRequired, got %v", err)
	}
}

func TestCallToolRetriesOnceOnExpiredSession(t *testing.T) {
	var calls, inits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		switch req.Method {
		case "initialize":
			inits++
			w.Header().Set("Mcp-Session-Id", "fresh-session")
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{}}`)
		case "tools/call":
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, "session expired or invalid")
				return
			}
			if got := r.Header.Get("Mcp-Session-Id"); got != "fresh-session" {
				t.Errorf("retry carried session %q, want fresh-session", got)
			}
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":2,"result":{"content":[{"type":"text","text":"{\"netWorth\":100}"}]}}`)
		}
	}))
	defer server.Close()

	client := NewClient("stale", testConfig(server.URL))
	result, err := client.CallTool(context.Background(), "fetch_net_worth")
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if result == nil {
		t.Fatal("expected a result after retry")
	}
	if inits != 1 {
		t.Errorf("expected exactly one reinitialize, got %d", inits)
	}
	if calls != 2 {
		t.Errorf("expected exactly two tool calls, got %d", calls)
	}
}

func TestCallToolGivesUpAfterSecondExpiry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Method == "initialize" {
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{}}`)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "session expired")
	}))
	defer server.Close()

	client := NewClient("stale", testConfig(server.URL))
	_, err := client.CallTool(context.Background(), "fetch_epf_details")
	if err == nil {
		t.Fatal("expected an error when session stays invalid")
	}
	if !strings.Contains(err.Error(), "after reinit") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestIsLoginRequiredBothShapes(t *testing.T) {
	topLevel := map[string]any{"status": "login_required", "login_url": "http://x"}
	if !IsLoginRequired(topLevel) {
		t.Error("top-level login_required not detected")
	}

	nested := map[string]any{
		"content": []any{
			map[string]any{"type": "text", "text": `{"status":"login_required","login_url":"http://x"}`},
		},
	}
	if !IsLoginRequired(nested) {
		t.Error("nested login_required not detected")
	}

	ok := map[string]any{
		"content": []any{
			map[string]any{"type": "text", "text": `{"netWorth":{"total":12345}}`},
		},
	}
	if IsLoginRequired(ok) {
		t.Error("successful payload misclassified as login_required")
	}
	if IsLoginRequired(map[string]any{"content": []any{map[string]any{"text": "plain text, not json"}}}) {
		t.Error("non-JSON text misclassified")
	}
	if IsLoginRequired(nil) {
		t.Error("nil result misclassified")
	}
}

func TestCallToolDetectsNestedLoginRequired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Method == "initialize" {
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{}}`)
			return
		}
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":2,"result":{"content":[{"type":"text","text":"{\"status\":\"login_required\"}"}]}}`)
	}))
	defer server.Close()

	client := NewClient("s1", testConfig(server.URL))
	if _, err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	_, err := client.CallTool(context.Background(), "fetch_credit_report")
	if !errors.Is(err, ErrLoginRequired) {
		t.Fatalf("expected ErrLoginRequired, got %v", err)
	}
}

func TestAuthURL(t *testing.T) {
	client := NewClient("abc", ClientConfig{BaseURL: "https://fi.example.com/mcp/stream"})
	want := "https://fi.example.com/mockWebPage?sessionId=abc"
	if got := client.AuthURL(); got != want {
		t.Fatalf("AuthURL() = %q, want %q", got, want)
	}
}
