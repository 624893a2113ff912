package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cloudwego/eino/schema"
)

// Category tags a tool for result aggregation and routing decisions.
type Category string

const (
	CategoryFinancialData     Category = "financial_data"
	CategoryMarketAnalysis    Category = "market_analysis"
	CategoryWebSearch         Category = "web_search"
	CategoryPortfolioAnalysis Category = "portfolio_analysis"
)

// Handler executes a tool against already-normalized arguments and returns
// a tool-result envelope ({content:[{type:"text",text:...}]} or {error:...}).
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// Definition binds a tool name to its category, LLM-facing parameter schema
// and handler.
type Definition struct {
	Name        string
	Description string
	Category    Category
	Params      map[string]*schema.ParameterInfo
	Handler     Handler
}

// Registry is the single source of truth mapping tool names to definitions.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Definition
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Definition)}
}

// Register adds a tool definition. Names are globally unique.
func (r *Registry) Register(def *Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool definition requires a name")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %s requires a handler", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool %s already registered", def.Name)
	}
	r.tools[def.Name] = def
	return nil
}

// Get resolves a tool name to its definition.
func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByCategory returns the names of every tool tagged with the category.
func (r *Registry) ByCategory(category Category) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name, def := range r.tools {
		if def.Category == category {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Declarations renders every registered tool as an LLM tool declaration,
// ordered by name so prompts stay stable across runs.
func (r *Registry) Declarations() []*schema.ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	infos := make([]*schema.ToolInfo, 0, len(names))
	for _, name := range names {
		def := r.tools[name]
		info := &schema.ToolInfo{
			Name: def.Name,
			Desc: def.Description,
		}
		if len(def.Params) > 0 {
			info.ParamsOneOf = schema.NewParamsOneOfByParams(def.Params)
		} else {
			info.ParamsOneOf = schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{})
		}
		infos = append(infos, info)
	}
	return infos
}

// TextResult wraps rendered tool output in the standard content envelope.
func TextResult(text string) map[string]any {
	return map[string]any{
		"content": []any{
			map[string]any{"type": "text", "text": text},
		},
	}
}

// ErrorResult wraps a tool failure message in the standard error envelope.
func ErrorResult(msg string) map[string]any {
	return map[string]any{"error": msg}
}
