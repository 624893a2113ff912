package dataflows

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const mfAPIBaseURL = "https://api.mfapi.in"

// FundClient fetches Indian mutual fund schemes and NAV history from the
// public mfapi.in registry. The full scheme list is large and changes
// rarely, so it caches aggressively.
type FundClient struct {
	http  *resty.Client
	cache *CacheManager
}

// NewFundClient creates a fund registry client caching under cacheDir.
func NewFundClient(cacheDir string, cacheEnabled bool) *FundClient {
	client := resty.New().
		SetBaseURL(mfAPIBaseURL).
		SetTimeout(20*time.Second).
		SetHeader("Accept", "application/json")

	cache := NewCacheManager(filepath.Join(cacheDir, "mfapi"), 24*time.Hour, cacheEnabled)

	return &FundClient{http: client, cache: cache}
}

// newFundClientForTest builds a client against a local server, bypassing
// the file cache.
func newFundClientForTest(baseURL string) *FundClient {
	return &FundClient{
		http:  resty.New().SetBaseURL(baseURL).SetTimeout(5 * time.Second),
		cache: NewCacheManager("", 0, false),
	}
}

// ListFunds returns every scheme known to the registry.
func (fc *FundClient) ListFunds() ([]FundRef, error) {
	var cached []FundRef
	if fc.cache.Get("mfapi", "list", nil, &cached) {
		return cached, nil
	}

	var funds []FundRef
	err := WithRetry(DefaultRetryConfig(), func() error {
		resp, err := fc.http.R().SetResult(&funds).Get("/mf")
		if err != nil {
			return fmt.Errorf("failed to list funds: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("fund registry returned status %d", resp.StatusCode())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fc.cache.Set("mfapi", "list", nil, funds)

	return funds, nil
}

// GetFund returns scheme metadata plus NAV history for one scheme code.
// The registry lists NAV entries newest first.
func (fc *FundClient) GetFund(schemeCode int) (*Fund, error) {
	var cached Fund
	if fc.cache.Get("mfapi", "fund", schemeCode, &cached) {
		return &cached, nil
	}

	var fund Fund
	err := WithRetry(DefaultRetryConfig(), func() error {
		resp, err := fc.http.R().SetResult(&fund).Get(fmt.Sprintf("/mf/%d", schemeCode))
		if err != nil {
			return fmt.Errorf("failed to get fund %d: %w", schemeCode, err)
		}
		if resp.IsError() {
			return fmt.Errorf("fund registry returned status %d for scheme %d", resp.StatusCode(), schemeCode)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if fund.Meta.SchemeCode == 0 && len(fund.Data) == 0 {
		return nil, fmt.Errorf("scheme %d not found", schemeCode)
	}

	fc.cache.Set("mfapi", "fund", schemeCode, fund)

	return &fund, nil
}

// SearchFunds returns schemes whose name contains the query,
// case-insensitive, capped at limit matches.
func (fc *FundClient) SearchFunds(query string, limit int) ([]FundRef, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if limit <= 0 {
		limit = 20
	}

	funds, err := fc.ListFunds()
	if err != nil {
		return nil, err
	}

	var matches []FundRef
	for _, fund := range funds {
		if strings.Contains(strings.ToLower(fund.SchemeName), query) {
			matches = append(matches, fund)
			if len(matches) >= limit {
				break
			}
		}
	}

	return matches, nil
}
