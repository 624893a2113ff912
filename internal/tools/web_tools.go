package tools

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// WebSearcher answers a free-text query with rendered search results. The
// search chain guarantees a non-empty answer and never fails.
type WebSearcher interface {
	Search(ctx context.Context, query string) string
}

// RegisterWebSearchTool wires the web search fallback chain into the
// registry.
func RegisterWebSearchTool(r *Registry, searcher WebSearcher) error {
	def := &Definition{
		Name:        "web_search",
		Description: "Search the web for current financial information, market news, interest rates, and policy updates",
		Category:    CategoryWebSearch,
		Params: map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "Search query, e.g. 'current RBI repo rate' or 'best performing mutual funds 2026'",
				Required: true,
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			query := stringArg(args, "query", "")
			if query == "" {
				return ErrorResult("query parameter is required"), nil
			}
			return TextResult(searcher.Search(ctx, query)), nil
		},
	}
	return r.Register(def)
}
