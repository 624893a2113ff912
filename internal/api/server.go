package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/finsage/finsage/internal/agent"
	"github.com/finsage/finsage/internal/history"
	"github.com/finsage/finsage/internal/session"
	"github.com/finsage/finsage/internal/tools"
)

// Handlers wires the session store and workflow orchestrator into HTTP
// routes.
type Handlers struct {
	sessions     *session.Store
	orchestrator *agent.Orchestrator
	records      *history.Store
}

func NewHandlers(sessions *session.Store, orchestrator *agent.Orchestrator, records *history.Store) *Handlers {
	return &Handlers{
		sessions:     sessions,
		orchestrator: orchestrator,
		records:      records,
	}
}

// Router builds the HTTP route tree.
func (h *Handlers) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", h.health)

	s := r.Group("/session")
	{
		s.POST("/create", h.createSession)
		s.GET("/:id/status", h.sessionStatus)
		s.GET("/:id/auth-url", h.authURL)
		s.GET("/:id/history", h.sessionHistory)
		s.POST("/:id/chat", h.chat)
		s.POST("/:id/prefetch", h.prefetch)
		s.DELETE("/:id", h.deleteSession)
	}
	return r
}

func (h *Handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": h.sessions.Len(),
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handlers) createSession(c *gin.Context) {
	sess, err := h.sessions.Create(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to initialize remote session: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"session_id": sess.ID,
		"auth_url":   sess.AuthURL(),
		"created_at": sess.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handlers) lookup(c *gin.Context) (*session.Session, bool) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return nil, false
	}
	return sess, true
}

func (h *Handlers) sessionStatus(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	force := c.Query("force") == "true"
	authenticated := sess.CheckAuth(c.Request.Context(), force)
	c.JSON(http.StatusOK, gin.H{
		"session_id":    sess.ID,
		"authenticated": authenticated,
		"data_loaded":   sess.HasFinancialData(),
		"turns":         sess.TurnCount(),
		"tool_calls":    sess.ToolCallCount(),
		"created_at":    sess.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handlers) authURL(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sess.ID,
		"auth_url":   sess.AuthURL(),
	})
}

func (h *Handlers) chat(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}

	var req struct {
		Message  string `json:"message" binding:"required"`
		Workflow string `json:"workflow"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := h.orchestrator.ProcessMessage(c.Request.Context(), sess, req.Message, req.Workflow)
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) prefetch(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := sess.PrefetchAll(c.Request.Context(), tools.FinancialToolNames); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"session_id": sess.ID,
			"status":     "login_required",
			"auth_url":   sess.AuthURL(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sess.ID,
		"status":     "ok",
	})
}

func (h *Handlers) sessionHistory(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	if h.records == nil {
		c.JSON(http.StatusOK, gin.H{"session_id": sess.ID, "messages": sess.Turns()})
		return
	}
	msgs, err := h.records.ListMessages(c.Request.Context(), sess.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sess.ID,
		"messages":   msgs,
		"count":      len(msgs),
	})
}

func (h *Handlers) deleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.sessions.Delete(id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if h.records != nil {
		if err := h.records.DeleteSession(context.Background(), id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "session deleted"})
}
