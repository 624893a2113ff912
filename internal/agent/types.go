package agent

import (
	"time"

	"github.com/finsage/finsage/internal/tools"
)

// WorkflowType selects how a user message is processed.
type WorkflowType string

const (
	WorkflowSimple       WorkflowType = "simple_response"
	WorkflowParallel     WorkflowType = "parallelization"
	WorkflowChain        WorkflowType = "prompt_chaining"
	WorkflowOrchestrator WorkflowType = "orchestrator_workers"
)

// ToolCall is one unit of work handed to the dispatcher.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolExecution records the outcome of a single dispatched tool call.
// Failures stay contained here; they never abort the batch.
type ToolExecution struct {
	Tool     string         `json:"tool"`
	Category tools.Category `json:"category"`
	Success  bool           `json:"success"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration"`
	GroupID  string         `json:"group_id,omitempty"`

	result map[string]any
	cause  error
}

// Result returns the tool envelope from a successful execution.
func (e *ToolExecution) Result() map[string]any { return e.result }

// Cause returns the underlying error for classification.
func (e *ToolExecution) Cause() error { return e.cause }

// ToolSummary is the per-tool slice of a chat response.
type ToolSummary struct {
	Tool       string         `json:"tool"`
	Category   tools.Category `json:"category"`
	Success    bool           `json:"success"`
	DurationMs int64          `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
}

const (
	StatusSuccess       = "success"
	StatusLoginRequired = "login_required"
	StatusError         = "error"
)

// ChatResponse is the workflow outcome returned to the route layer.
type ChatResponse struct {
	SessionID        string        `json:"session_id"`
	Status           string        `json:"status"`
	Workflow         WorkflowType  `json:"workflow"`
	FinalResult      string        `json:"final_result"`
	AuthURL          string        `json:"auth_url,omitempty"`
	ToolsUsed        []ToolSummary `json:"tools_used,omitempty"`
	Rounds           int           `json:"rounds"`
	Turn             int           `json:"turn"`
	ContextRefreshed bool          `json:"context_refreshed"`
	ElapsedMs        int64         `json:"elapsed_ms"`
}
