package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const protocolVersion = "2024-11-05"

// sessionIDHeader carries the remote session identifier on every request and
// may carry the server-assigned one on the initialize response.
const sessionIDHeader = "Mcp-Session-Id"

var (
	// ErrLoginRequired indicates the remote service wants the user to
	// re-authenticate before serving financial data.
	ErrLoginRequired = errors.New("login required")
	// ErrInitFailed indicates the initialize handshake did not produce a
	// usable remote session.
	ErrInitFailed = errors.New("mcp session initialization failed")
)

// Result is the unwrapped JSON-RPC result payload of a tool call.
type Result map[string]any

type rpcRequest struct {
	Jsonrpc string         `json:"jsonrpc"`
	ID      int            `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// Client speaks the JSON-RPC tool protocol of the remote financial-data
// service for a single session. It hides the initialize handshake, session
// cookie handling and the one-shot reinitialize retry on session expiry.
type Client struct {
	baseURL       string
	clientName    string
	clientVersion string
	initTimeout   time.Duration
	callTimeout   time.Duration

	http *resty.Client

	mu        sync.Mutex
	sessionID string // locally generated id, also the cookie value
	remoteID  string // id assigned by the server, falls back to sessionID
	nextID    int
}

// ClientConfig carries the gateway tunables. All durations are per call.
type ClientConfig struct {
	BaseURL       string
	ClientName    string
	ClientVersion string
	InitTimeout   time.Duration
	CallTimeout   time.Duration
}

func NewClient(sessionID string, cfg ClientConfig) *Client {
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = 10 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 15 * time.Second
	}
	if cfg.ClientName == "" {
		cfg.ClientName = "finsage"
	}
	if cfg.ClientVersion == "" {
		cfg.ClientVersion = "1.0.0"
	}

	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	client.SetCookie(&http.Cookie{Name: "client_session_id", Value: sessionID})

	return &Client{
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		clientName:    cfg.ClientName,
		clientVersion: cfg.ClientVersion,
		initTimeout:   cfg.InitTimeout,
		callTimeout:   cfg.CallTimeout,
		http:          client,
		sessionID:     sessionID,
		nextID:        1,
	}
}

// RemoteID returns the session identifier the server knows this client by.
func (c *Client) RemoteID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remoteID != "" {
		return c.remoteID
	}
	return c.sessionID
}

// AuthURL builds the web page the user must visit to authenticate the
// remote session.
func (c *Client) AuthURL() string {
	base := c.baseURL
	if idx := strings.Index(base, "/mcp"); idx > 0 {
		base = base[:idx]
	}
	return fmt.Sprintf("%s/mockWebPage?sessionId=%s", base, c.RemoteID())
}

// Initialize performs the JSON-RPC initialize handshake and records the
// session identifier the server hands back. Safe to call again to recover
// from an expired remote session.
func (c *Client) Initialize(ctx context.Context) (string, error) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.mu.Unlock()

	req := rpcRequest{
		Jsonrpc: "2.0",
		ID:      id,
		Method:  "initialize",
		Params: map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"clientInfo": map[string]any{
				"name":    c.clientName,
				"version": c.clientVersion,
			},
		},
	}

	callCtx, cancel := context.WithTimeout(ctx, c.initTimeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(callCtx).
		SetHeader(sessionIDHeader, c.sessionID).
		SetBody(req).
		Post(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInitFailed, err)
	}
	if resp.StatusCode() >= 400 {
		return "", fmt.Errorf("%w: server returned status %d", ErrInitFailed, resp.StatusCode())
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(resp.Body(), &rpcResp); err != nil {
		return "", fmt.Errorf("%w: invalid response: %v", ErrInitFailed, err)
	}
	if len(rpcResp.Error) > 0 {
		return "", fmt.Errorf("%w: %s", ErrInitFailed, string(rpcResp.Error))
	}

	remoteID := resp.Header().Get(sessionIDHeader)
	if remoteID == "" {
		remoteID = c.sessionID
	}

	c.mu.Lock()
	c.remoteID = remoteID
	c.mu.Unlock()

	return remoteID, nil
}

// CallTool invokes a remote tool with empty arguments. A 400 response that
// looks like a session expiry triggers exactly one reinitialize-and-retry;
// every other failure surfaces directly.
func (c *Client) CallTool(ctx context.Context, toolName string) (Result, error) {
	result, err := c.callOnce(ctx, toolName)
	if err == nil || !errors.Is(err, errSessionExpired) {
		return result, err
	}

	log.Printf("mcp: session expired calling %s, reinitializing", toolName)
	if _, initErr := c.Initialize(ctx); initErr != nil {
		return nil, fmt.Errorf("session expired and reinit failed: %w", initErr)
	}
	result, err = c.callOnce(ctx, toolName)
	if errors.Is(err, errSessionExpired) {
		return nil, fmt.Errorf("tool %s: session still invalid after reinit", toolName)
	}
	return result, err
}

// errSessionExpired is internal: CallTool converts it into the single
// reinit-and-retry pass and never lets it escape.
var errSessionExpired = errors.New("mcp session expired")

func (c *Client) callOnce(ctx context.Context, toolName string) (Result, error) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	remoteID := c.remoteID
	c.mu.Unlock()
	if remoteID == "" {
		remoteID = c.sessionID
	}

	req := rpcRequest{
		Jsonrpc: "2.0",
		ID:      id,
		Method:  "tools/call",
		Params: map[string]any{
			"name":      toolName,
			"arguments": map[string]any{},
		},
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(callCtx).
		SetHeader(sessionIDHeader, remoteID).
		SetBody(req).
		Post(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %v", toolName, err)
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		return nil, ErrLoginRequired
	case resp.StatusCode() == http.StatusBadRequest && isSessionExpiredBody(resp.Body()):
		return nil, errSessionExpired
	case resp.StatusCode() >= 400:
		return nil, fmt.Errorf("tool %s: server returned status %d", toolName, resp.StatusCode())
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(resp.Body(), &rpcResp); err != nil {
		return nil, fmt.Errorf("tool %s: invalid JSON response: %v", toolName, err)
	}

	if len(rpcResp.Error) > 0 {
		return nil, fmt.Errorf("tool %s: rpc error: %s", toolName, string(rpcResp.Error))
	}
	if len(rpcResp.Result) == 0 {
		return nil, fmt.Errorf("tool %s: no valid response received", toolName)
	}

	var result Result
	if err := json.Unmarshal(rpcResp.Result, &result); err != nil {
		return nil, fmt.Errorf("tool %s: invalid result payload: %v", toolName, err)
	}
	if IsLoginRequired(result) {
		return nil, ErrLoginRequired
	}
	return result, nil
}

func isSessionExpiredBody(body []byte) bool {
	text := strings.ToLower(string(body))
	if !strings.Contains(text, "session") {
		return false
	}
	return strings.Contains(text, "expired") || strings.Contains(text, "invalid")
}

// IsLoginRequired detects the remote service's login-required marker. The
// service emits it either as a top-level {"status":"login_required"} or
// nested inside content[0].text as a JSON-encoded string; both forms
// classify identically.
func IsLoginRequired(result map[string]any) bool {
	if result == nil {
		return false
	}
	if status, ok := result["status"].(string); ok && status == "login_required" {
		return true
	}

	content, ok := result["content"].([]any)
	if !ok || len(content) == 0 {
		return false
	}
	first, ok := content[0].(map[string]any)
	if !ok {
		return false
	}
	text, ok := first["text"].(string)
	if !ok {
		return false
	}
	var nested map[string]any
	if err := json.Unmarshal([]byte(text), &nested); err != nil {
		return false
	}
	status, ok := nested["status"].(string)
	return ok && status == "login_required"
}
