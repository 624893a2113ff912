package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finsage/finsage/internal/mcp"
)

// ErrSessionNotFound indicates the referenced session id is absent from
// the store.
var ErrSessionNotFound = errors.New("session not found")

// RemoteClient is the gateway surface a session needs. *mcp.Client
// implements it; tests substitute fakes.
type RemoteClient interface {
	Initialize(ctx context.Context) (string, error)
	CallTool(ctx context.Context, toolName string) (mcp.Result, error)
	AuthURL() string
	RemoteID() string
}

// Turn is one conversational exchange entry.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	ToolsUsed []string  `json:"tools_used,omitempty"`
}

// Session holds per-user state: the remote gateway handle, cached
// financial data, auth state, and the rolling conversation window.
// Mutable fields are guarded by mu; concurrent requests for the same
// session see consistent state.
type Session struct {
	ID        string
	Client    RemoteClient
	CreatedAt time.Time

	mu            sync.Mutex
	authenticated bool
	lastAuthCheck time.Time
	financialData map[string]mcp.Result
	turns         []Turn
	totalTurns    int
	toolCalls     int

	authTTL  time.Duration
	maxTurns int
}

// Authenticated reports the cached auth state without probing the remote.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// AuthURL returns the login page for this session's remote handle.
func (s *Session) AuthURL() string {
	return s.Client.AuthURL()
}

// CheckAuth probes the remote service with a lightweight financial call
// and caches the answer for the auth window. force bypasses the cache.
func (s *Session) CheckAuth(ctx context.Context, force bool) bool {
	s.mu.Lock()
	if !force && time.Since(s.lastAuthCheck) < s.authTTL {
		cached := s.authenticated
		s.mu.Unlock()
		return cached
	}
	s.mu.Unlock()

	result, err := s.Client.CallTool(ctx, "fetch_net_worth")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAuthCheck = time.Now()
	switch {
	case err == nil:
		s.authenticated = true
		// The probe was a full successful call; keep the data.
		s.financialData["fetch_net_worth"] = result
	case errors.Is(err, mcp.ErrLoginRequired):
		s.authenticated = false
	default:
		// Transport trouble says nothing about auth; keep the previous
		// answer but log it.
		log.Printf("session %s: auth probe failed: %v", s.ID, err)
	}
	return s.authenticated
}

// FetchFinancialData returns the cached result for one of the fixed
// financial tools, calling the remote gateway on a cache miss. A fresh
// successful call always overwrites the cache.
func (s *Session) FetchFinancialData(ctx context.Context, toolName string) (map[string]any, error) {
	s.mu.Lock()
	if cached, ok := s.financialData[toolName]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	result, err := s.Client.CallTool(ctx, toolName)
	if err != nil {
		if errors.Is(err, mcp.ErrLoginRequired) {
			s.mu.Lock()
			s.authenticated = false
			s.lastAuthCheck = time.Now()
			s.mu.Unlock()
		}
		return nil, err
	}

	s.mu.Lock()
	s.financialData[toolName] = result
	s.authenticated = true
	s.lastAuthCheck = time.Now()
	s.mu.Unlock()
	return result, nil
}

// RefreshFinancialData forces a remote fetch, replacing any cached value.
func (s *Session) RefreshFinancialData(ctx context.Context, toolName string) (map[string]any, error) {
	s.mu.Lock()
	delete(s.financialData, toolName)
	s.mu.Unlock()
	return s.FetchFinancialData(ctx, toolName)
}

// PrefetchAll eagerly loads every financial tool result. It stops early
// on LoginRequired since the rest would fail the same way; other per-tool
// failures are logged and skipped.
func (s *Session) PrefetchAll(ctx context.Context, toolNames []string) error {
	for _, name := range toolNames {
		if _, err := s.FetchFinancialData(ctx, name); err != nil {
			if errors.Is(err, mcp.ErrLoginRequired) {
				return err
			}
			log.Printf("session %s: prefetch %s failed: %v", s.ID, name, err)
		}
	}
	return nil
}

// FinancialData returns a copy of the cached tool results.
func (s *Session) FinancialData() map[string]mcp.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]mcp.Result, len(s.financialData))
	for k, v := range s.financialData {
		out[k] = v
	}
	return out
}

// HasFinancialData reports whether any financial tool result is cached.
func (s *Session) HasFinancialData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.financialData) > 0
}

// AddTurn appends a conversation turn, trimming to the most recent
// window when the bound is exceeded.
func (s *Session) AddTurn(role, content string, toolsUsed []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		ToolsUsed: toolsUsed,
	})
	s.totalTurns++
	if len(s.turns) > s.maxTurns {
		s.turns = append([]Turn(nil), s.turns[len(s.turns)-s.maxTurns:]...)
	}
}

// Turns returns a copy of the rolling conversation window.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.turns...)
}

// TurnCount reports how many turns this session has seen in total,
// including ones trimmed out of the window.
func (s *Session) TurnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalTurns
}

// RecordToolCalls adds to the session's running tool-call counter.
func (s *Session) RecordToolCalls(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolCalls += n
}

// ToolCallCount reports how many tool calls this session has executed.
func (s *Session) ToolCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toolCalls
}

// StoreConfig carries session store tunables.
type StoreConfig struct {
	AuthTTL  time.Duration
	MaxTurns int
	// NewRemote builds the gateway client for a new session id.
	NewRemote func(sessionID string) RemoteClient
}

// Store is the shared session map. All access goes through its methods.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cfg      StoreConfig
}

func NewStore(cfg StoreConfig) *Store {
	if cfg.AuthTTL <= 0 {
		cfg.AuthTTL = 5 * time.Minute
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 10
	}
	return &Store{
		sessions: make(map[string]*Session),
		cfg:      cfg,
	}
}

// Create makes a new session and initializes its remote handle. If the
// remote handshake fails, nothing is stored.
func (st *Store) Create(ctx context.Context) (*Session, error) {
	id := uuid.NewString()
	client := st.cfg.NewRemote(id)

	if _, err := client.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("remote session init failed: %w", err)
	}

	sess := &Session{
		ID:            id,
		Client:        client,
		CreatedAt:     time.Now(),
		financialData: make(map[string]mcp.Result),
		authTTL:       st.cfg.AuthTTL,
		maxTurns:      st.cfg.MaxTurns,
	}

	st.mu.Lock()
	st.sessions[id] = sess
	st.mu.Unlock()

	log.Printf("session %s created (remote %s)", id, client.RemoteID())
	return sess, nil
}

// Get resolves a session id.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Delete removes a session. Deleting an unknown id is an error so the
// route layer can report 404.
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(st.sessions, id)
	return nil
}

// Len reports how many sessions are active.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
