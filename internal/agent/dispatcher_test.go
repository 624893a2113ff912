package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/finsage/finsage/internal/tools"
)

func newBatchRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	defs := []*tools.Definition{
		{
			Name:     "ok_tool",
			Category: tools.CategoryMarketAnalysis,
			Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				return tools.TextResult("ok"), nil
			},
		},
		{
			Name:     "failing_tool",
			Category: tools.CategoryMarketAnalysis,
			Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				return nil, errors.New("upstream unavailable")
			},
		},
		{
			Name:     "panicking_tool",
			Category: tools.CategoryWebSearch,
			Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				panic("boom")
			},
		},
		{
			Name:     "slow_tool",
			Category: tools.CategoryMarketAnalysis,
			Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				select {
				case <-time.After(5 * time.Second):
					return tools.TextResult("late"), nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			},
		},
	}
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			t.Fatalf("register %s: %v", def.Name, err)
		}
	}
	return reg
}

func TestBatchIsolatesFailures(t *testing.T) {
	reg := newBatchRegistry(t)
	d := NewDispatcher(4, 5*time.Second)

	calls := []ToolCall{
		{ID: "c1", Name: "ok_tool"},
		{ID: "c2", Name: "failing_tool"},
		{ID: "c3", Name: "ok_tool"},
	}
	execs := d.Run(context.Background(), reg, calls, "g1")
	if len(execs) != 3 {
		t.Fatalf("expected 3 executions, got %d", len(execs))
	}
	if !execs[0].Success || !execs[2].Success {
		t.Fatalf("expected surrounding calls to succeed: %+v", execs)
	}
	if execs[1].Success {
		t.Fatal("expected middle call to fail")
	}
	if !strings.Contains(execs[1].Error, "upstream unavailable") {
		t.Fatalf("expected failure reason preserved, got %q", execs[1].Error)
	}
	for i, call := range calls {
		if execs[i].Tool != call.Name {
			t.Fatalf("execution %d out of order: got %s want %s", i, execs[i].Tool, call.Name)
		}
	}
}

func TestBatchTimeoutFailsWholeBatch(t *testing.T) {
	reg := newBatchRegistry(t)
	d := NewDispatcher(4, 50*time.Millisecond)

	calls := []ToolCall{
		{ID: "c1", Name: "ok_tool"},
		{ID: "c2", Name: "slow_tool"},
	}
	execs := d.Run(context.Background(), reg, calls, "g1")
	if len(execs) != 2 {
		t.Fatalf("expected 2 executions, got %d", len(execs))
	}
	for i, e := range execs {
		if e.Success {
			t.Fatalf("execution %d should have failed after batch timeout", i)
		}
		if !errors.Is(e.Cause(), ErrBatchTimeout) {
			t.Fatalf("execution %d: expected ErrBatchTimeout, got %v", i, e.Cause())
		}
	}
}

func TestDispatcherRecoversPanic(t *testing.T) {
	reg := newBatchRegistry(t)
	d := NewDispatcher(2, time.Second)

	execs := d.Run(context.Background(), reg, []ToolCall{{ID: "c1", Name: "panicking_tool"}}, "g1")
	if execs[0].Success {
		t.Fatal("expected panicking tool to be reported as failed")
	}
	if !strings.Contains(execs[0].Error, "panicked") {
		t.Fatalf("expected panic noted in error, got %q", execs[0].Error)
	}
}

func TestDispatcherUnknownTool(t *testing.T) {
	reg := newBatchRegistry(t)
	d := NewDispatcher(2, time.Second)

	execs := d.Run(context.Background(), reg, []ToolCall{{ID: "c1", Name: "missing"}}, "g1")
	if execs[0].Success {
		t.Fatal("expected unknown tool to fail")
	}
	if !strings.Contains(execs[0].Error, "unknown tool") {
		t.Fatalf("unexpected error: %q", execs[0].Error)
	}
}

func TestDispatcherSoftErrorEnvelope(t *testing.T) {
	reg := tools.NewRegistry()
	err := reg.Register(&tools.Definition{
		Name:     "soft_fail",
		Category: tools.CategoryMarketAnalysis,
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return tools.ErrorResult("symbols parameter is required"), nil
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	d := NewDispatcher(2, time.Second)

	execs := d.Run(context.Background(), reg, []ToolCall{{ID: "c1", Name: "soft_fail"}}, "g1")
	if execs[0].Success {
		t.Fatal("expected envelope error to mark execution failed")
	}
	if execs[0].Error != "symbols parameter is required" {
		t.Fatalf("expected envelope message surfaced, got %q", execs[0].Error)
	}
}
