package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/finsage/finsage/internal/tools"
)

// ErrBatchTimeout marks every execution of a batch whose shared deadline
// expired before all calls finished.
var ErrBatchTimeout = errors.New("tool batch timed out")

// Dispatcher runs tool batches with bounded parallelism and one shared
// deadline per batch. Individual failures are contained per execution;
// only the batch deadline fails the whole batch.
type Dispatcher struct {
	MaxParallel  int
	BatchTimeout time.Duration
}

func NewDispatcher(maxParallel int, batchTimeout time.Duration) *Dispatcher {
	if maxParallel <= 0 {
		maxParallel = 10
	}
	if batchTimeout <= 0 {
		batchTimeout = 30 * time.Second
	}
	return &Dispatcher{MaxParallel: maxParallel, BatchTimeout: batchTimeout}
}

// Run executes calls against the registry and returns one execution per
// call, in the original order.
func (d *Dispatcher) Run(ctx context.Context, reg *tools.Registry, calls []ToolCall, groupID string) []ToolExecution {
	if len(calls) == 0 {
		return nil
	}

	batchCtx, cancel := context.WithTimeout(ctx, d.BatchTimeout)
	defer cancel()

	results := make([]ToolExecution, len(calls))
	sem := make(chan struct{}, d.MaxParallel)
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(i int, call ToolCall) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = d.runOne(batchCtx, reg, call, groupID)
		}(i, call)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return results
	case <-batchCtx.Done():
		// The shared deadline fails the whole batch; partial results are
		// discarded so callers see a consistent all-failed outcome. The
		// in-flight goroutines drain on their own once the context fires.
		log.Printf("tool batch %s timed out after %s (%d calls)", groupID, d.BatchTimeout, len(calls))
		failed := make([]ToolExecution, len(calls))
		for i, call := range calls {
			failed[i] = ToolExecution{
				Tool:    call.Name,
				Success: false,
				Error:   ErrBatchTimeout.Error(),
				GroupID: groupID,
				cause:   ErrBatchTimeout,
			}
			if def, ok := reg.Get(call.Name); ok {
				failed[i].Category = def.Category
			}
		}
		return failed
	}
}

func (d *Dispatcher) runOne(ctx context.Context, reg *tools.Registry, call ToolCall, groupID string) (exec ToolExecution) {
	start := time.Now()
	exec = ToolExecution{Tool: call.Name, GroupID: groupID}

	defer func() {
		exec.Duration = time.Since(start)
		if r := recover(); r != nil {
			exec.Success = false
			exec.cause = fmt.Errorf("tool %s panicked: %v", call.Name, r)
			exec.Error = exec.cause.Error()
			log.Printf("recovered panic in tool %s: %v", call.Name, r)
		}
	}()

	def, ok := reg.Get(call.Name)
	if !ok {
		exec.cause = fmt.Errorf("unknown tool %q", call.Name)
		exec.Error = exec.cause.Error()
		return exec
	}
	exec.Category = def.Category

	result, err := def.Handler(ctx, call.Args)
	if err != nil {
		exec.cause = err
		exec.Error = err.Error()
		return exec
	}
	if msg, failed := result["error"].(string); failed {
		// Tool-level soft failure reported inside the envelope.
		exec.Error = msg
		exec.result = result
		return exec
	}
	exec.Success = true
	exec.result = result
	return exec
}

// summarize flattens executions for the response payload.
func summarize(execs []ToolExecution) []ToolSummary {
	out := make([]ToolSummary, 0, len(execs))
	for _, e := range execs {
		out = append(out, ToolSummary{
			Tool:       e.Tool,
			Category:   e.Category,
			Success:    e.Success,
			DurationMs: e.Duration.Milliseconds(),
			Error:      e.Error,
		})
	}
	return out
}
