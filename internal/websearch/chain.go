package websearch

import (
	"context"
	"log"
	"time"

	"github.com/go-resty/resty/v2"
)

// Provider is one strategy in the search fallback chain. An empty result
// or an error means the chain moves to the next provider.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) (string, error)
}

// Chain evaluates providers top to bottom and returns the first non-empty
// result. The last provider is the static responder, which always answers,
// so Search never fails.
type Chain struct {
	providers []Provider
}

// Config carries the optional provider credentials. Providers whose keys
// are absent are skipped entirely.
type Config struct {
	GoogleAPIKey string
	GoogleCSEID  string
	SerpAPIKey   string
}

// NewChain builds the fallback chain: Google Custom Search, SerpAPI,
// Google News RSS, then the static financial-topic responder.
func NewChain(cfg Config) *Chain {
	httpClient := resty.New().SetTimeout(15 * time.Second)

	var providers []Provider
	if cfg.GoogleAPIKey != "" && cfg.GoogleCSEID != "" {
		providers = append(providers, newGoogleCSE(httpClient, cfg.GoogleAPIKey, cfg.GoogleCSEID))
	}
	if cfg.SerpAPIKey != "" {
		providers = append(providers, newSerpAPI(httpClient, cfg.SerpAPIKey))
	}
	providers = append(providers, newNewsRSS(httpClient))
	providers = append(providers, staticResponder{})

	return &Chain{providers: providers}
}

// Search runs the chain for a query. Provider failures degrade to the
// next strategy; the static responder terminates the chain with a
// guaranteed answer.
func (c *Chain) Search(ctx context.Context, query string) string {
	for _, p := range c.providers {
		result, err := p.Search(ctx, query)
		if err != nil {
			log.Printf("websearch: provider %s failed for %q: %v", p.Name(), query, err)
			continue
		}
		if result != "" {
			return result
		}
	}
	// Unreachable: the static responder always returns output. Kept as a
	// safety net if the chain is constructed manually.
	result, _ := staticResponder{}.Search(ctx, query)
	return result
}
