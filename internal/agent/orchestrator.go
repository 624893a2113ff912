package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/finsage/finsage/internal/history"
	"github.com/finsage/finsage/internal/mcp"
	"github.com/finsage/finsage/internal/session"
	"github.com/finsage/finsage/internal/tools"
)

// Config carries orchestrator tunables.
type Config struct {
	MaxWorkerRounds int
	MaxParallel     int
	BatchTimeout    time.Duration
}

// Orchestrator turns user messages into workflow runs: it routes to a
// workflow, drives the chat model, dispatches tool batches and shapes
// the final response. Workflow failures never escape ProcessMessage.
type Orchestrator struct {
	model   model.ToolCallingChatModel
	market  tools.MarketDataProvider
	funds   tools.FundDataProvider
	search  tools.WebSearcher
	records *history.Store
	router  Router

	mu         sync.RWMutex
	dispatcher *Dispatcher
	maxRounds  int
}

func New(m model.ToolCallingChatModel, market tools.MarketDataProvider, funds tools.FundDataProvider, search tools.WebSearcher, records *history.Store, cfg Config) *Orchestrator {
	maxRounds := cfg.MaxWorkerRounds
	if maxRounds <= 0 {
		maxRounds = 3
	}
	return &Orchestrator{
		model:      m,
		market:     market,
		funds:      funds,
		search:     search,
		dispatcher: NewDispatcher(cfg.MaxParallel, cfg.BatchTimeout),
		records:    records,
		router:     KeywordRouter{},
		maxRounds:  maxRounds,
	}
}

// SetRouter swaps the workflow classifier.
func (o *Orchestrator) SetRouter(r Router) {
	if r != nil {
		o.router = r
	}
}

// SetLimits applies refreshed tunables to a running orchestrator. Used by
// the config reload path; in-flight workflows keep their old limits.
func (o *Orchestrator) SetLimits(maxRounds, maxParallel int, batchTimeout time.Duration) {
	if maxRounds <= 0 {
		maxRounds = 3
	}
	o.mu.Lock()
	o.dispatcher = NewDispatcher(maxParallel, batchTimeout)
	o.maxRounds = maxRounds
	o.mu.Unlock()
}

func (o *Orchestrator) limits() (int, *Dispatcher) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.maxRounds, o.dispatcher
}

// registryFor builds the tool registry for one request. Financial tools
// bind to the session so fetches hit its cache and remote handle.
func (o *Orchestrator) registryFor(sess *session.Session) *tools.Registry {
	r := tools.NewRegistry()
	if err := tools.RegisterFinancialTools(r, sess); err != nil {
		log.Printf("register financial tools: %v", err)
	}
	if o.market != nil {
		if err := tools.RegisterStockTools(r, o.market); err != nil {
			log.Printf("register stock tools: %v", err)
		}
	}
	if o.funds != nil {
		if err := tools.RegisterFundTools(r, o.funds); err != nil {
			log.Printf("register fund tools: %v", err)
		}
	}
	if o.search != nil {
		if err := tools.RegisterWebSearchTool(r, o.search); err != nil {
			log.Printf("register web search tool: %v", err)
		}
	}
	return r
}

// ProcessMessage runs one chat turn end to end. It always returns a
// response; workflow panics and model errors are converted into an
// error-status response at this boundary.
func (o *Orchestrator) ProcessMessage(ctx context.Context, sess *session.Session, message, hint string) (resp *ChatResponse) {
	start := time.Now()
	workflow := o.router.Route(message, hint)
	resp = &ChatResponse{
		SessionID: sess.ID,
		Workflow:  workflow,
		Status:    StatusSuccess,
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("workflow %s panicked for session %s: %v", workflow, sess.ID, r)
			resp.Status = StatusError
			resp.FinalResult = "Something went wrong while processing your message. Please try again."
		}
		resp.ElapsedMs = time.Since(start).Milliseconds()
	}()

	sigBefore := contextSignature(sess)
	reg := o.registryFor(sess)

	var (
		final  string
		execs  []ToolExecution
		rounds int
		err    error
	)
	maxRounds, _ := o.limits()
	switch workflow {
	case WorkflowOrchestrator:
		final, execs, rounds, err = o.runRounds(ctx, sess, reg, message, maxRounds)
	case WorkflowChain:
		final, execs, rounds, err = o.runChain(ctx, sess, reg, message)
	case WorkflowParallel:
		prompt := message + "\n\nFetch everything you need in a single batch of tool calls."
		final, execs, rounds, err = o.runRounds(ctx, sess, reg, prompt, 1)
	default:
		final, execs, rounds, err = o.runRounds(ctx, sess, reg, message, 1)
	}

	resp.ToolsUsed = summarize(execs)
	resp.Rounds = rounds
	resp.ContextRefreshed = contextSignature(sess) != sigBefore

	switch {
	case errors.Is(err, mcp.ErrLoginRequired):
		resp.Status = StatusLoginRequired
		resp.AuthURL = sess.AuthURL()
		resp.FinalResult = "Your financial data session needs a login. Open the auth link and try again."
	case err != nil:
		resp.Status = StatusError
		resp.FinalResult = fmt.Sprintf("The assistant could not complete this request: %v", err)
	default:
		resp.FinalResult = final
	}

	toolNames := make([]string, 0, len(execs))
	for _, e := range execs {
		toolNames = append(toolNames, e.Tool)
	}
	sess.AddTurn("user", message, nil)
	sess.AddTurn("assistant", resp.FinalResult, toolNames)
	sess.RecordToolCalls(len(execs))
	resp.Turn = sess.TurnCount()
	o.persist(ctx, sess.ID, message, resp, toolNames)

	return resp
}

func (o *Orchestrator) persist(ctx context.Context, sessionID, message string, resp *ChatResponse, toolNames []string) {
	if o.records == nil {
		return
	}
	seq, err := o.records.NextSeq(ctx, sessionID)
	if err != nil {
		log.Printf("history seq for %s: %v", sessionID, err)
		return
	}
	userMsg := history.MessageRecord{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      "user",
		Content:   message,
		Seq:       seq,
	}
	assistantMsg := history.MessageRecord{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		Role:         "assistant",
		Content:      resp.FinalResult,
		WorkflowType: string(resp.Workflow),
		ToolsUsed:    strings.Join(toolNames, ","),
		Seq:          seq + 1,
	}
	if err := o.records.InsertMessage(ctx, userMsg); err != nil {
		log.Printf("persist user message: %v", err)
	}
	if err := o.records.InsertMessage(ctx, assistantMsg); err != nil {
		log.Printf("persist assistant message: %v", err)
	}
}

// runRounds drives the model with tools bound for up to maxRounds tool
// rounds, then forces a final synthesis without further tool use.
func (o *Orchestrator) runRounds(ctx context.Context, sess *session.Session, reg *tools.Registry, prompt string, maxRounds int) (string, []ToolExecution, int, error) {
	bound, err := o.model.WithTools(reg.Declarations())
	if err != nil {
		return "", nil, 0, fmt.Errorf("bind tools: %w", err)
	}

	msgs := []*schema.Message{buildSystemMessage(sess)}
	msgs = append(msgs, historyMessages(sess)...)
	msgs = append(msgs, schema.UserMessage(prompt))

	_, dispatcher := o.limits()
	var allExecs []ToolExecution
	rounds := 0

	for rounds < maxRounds {
		out, err := bound.Generate(ctx, msgs)
		if err != nil {
			return "", allExecs, rounds, fmt.Errorf("model generate: %w", err)
		}
		if len(out.ToolCalls) == 0 {
			return out.Content, allExecs, rounds, nil
		}

		rounds++
		msgs = append(msgs, out)
		calls := toToolCalls(out.ToolCalls)
		execs := dispatcher.Run(ctx, reg, calls, fmt.Sprintf("round-%d", rounds))
		allExecs = append(allExecs, execs...)
		if err := loginRequired(execs); err != nil {
			return "", allExecs, rounds, err
		}
		for i, e := range execs {
			msgs = append(msgs, schema.ToolMessage(executionText(e), calls[i].ID, schema.WithToolName(e.Tool)))
		}
	}

	// Round bound reached; synthesize unconditionally with no tools.
	msgs = append(msgs, schema.UserMessage("Answer the original question directly from the information above. Do not request any more tools."))
	out, err := o.model.Generate(ctx, msgs)
	if err != nil {
		return "", allExecs, rounds, fmt.Errorf("synthesis generate: %w", err)
	}
	return out.Content, allExecs, rounds, nil
}

// runChain runs the fixed gather-analyze-answer chain: two staged tool
// turns feeding one final no-tools turn.
func (o *Orchestrator) runChain(ctx context.Context, sess *session.Session, reg *tools.Registry, message string) (string, []ToolExecution, int, error) {
	bound, err := o.model.WithTools(reg.Declarations())
	if err != nil {
		return "", nil, 0, fmt.Errorf("bind tools: %w", err)
	}

	msgs := []*schema.Message{buildSystemMessage(sess)}
	msgs = append(msgs, historyMessages(sess)...)

	stages := []string{
		"Step 1 of answering the question below: fetch the live data it needs (market quotes, fund NAVs, web search).\n\nQuestion: " + message,
		"Step 2: examine what was fetched and pull any follow-up data still missing.",
	}

	_, dispatcher := o.limits()
	var allExecs []ToolExecution
	rounds := 0
	for _, stage := range stages {
		msgs = append(msgs, schema.UserMessage(stage))
		out, err := bound.Generate(ctx, msgs)
		if err != nil {
			return "", allExecs, rounds, fmt.Errorf("model generate: %w", err)
		}
		msgs = append(msgs, out)
		if len(out.ToolCalls) == 0 {
			continue
		}
		rounds++
		calls := toToolCalls(out.ToolCalls)
		execs := dispatcher.Run(ctx, reg, calls, fmt.Sprintf("chain-%d", rounds))
		allExecs = append(allExecs, execs...)
		if err := loginRequired(execs); err != nil {
			return "", allExecs, rounds, err
		}
		for i, e := range execs {
			msgs = append(msgs, schema.ToolMessage(executionText(e), calls[i].ID, schema.WithToolName(e.Tool)))
		}
	}

	msgs = append(msgs, schema.UserMessage("Step 3: give the final answer to the original question. Do not request any more tools."))
	out, err := o.model.Generate(ctx, msgs)
	if err != nil {
		return "", allExecs, rounds, fmt.Errorf("synthesis generate: %w", err)
	}
	return out.Content, allExecs, rounds, nil
}

func toToolCalls(calls []schema.ToolCall) []ToolCall {
	out := make([]ToolCall, 0, len(calls))
	for _, tc := range calls {
		args := map[string]any{}
		if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				log.Printf("tool %s: bad arguments %q: %v", tc.Function.Name, raw, err)
			}
		}
		out = append(out, ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: args})
	}
	return out
}

// loginRequired reports whether any execution failed because the remote
// financial session needs a fresh login.
func loginRequired(execs []ToolExecution) error {
	for _, e := range execs {
		if errors.Is(e.cause, mcp.ErrLoginRequired) {
			return mcp.ErrLoginRequired
		}
	}
	return nil
}

func executionText(e ToolExecution) string {
	if e.Success {
		return renderToolResult(e.result)
	}
	return fmt.Sprintf("tool %s failed: %s", e.Tool, e.Error)
}
