package websearch

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

const serpAPIURL = "https://serpapi.com/search.json"

type serpResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

// serpAPI is the secondary keyed search provider, localized for India.
type serpAPI struct {
	http   *resty.Client
	apiKey string
	url    string
}

func newSerpAPI(http *resty.Client, apiKey string) *serpAPI {
	return &serpAPI{http: http, apiKey: apiKey, url: serpAPIURL}
}

func (s *serpAPI) Name() string { return "serpapi" }

func (s *serpAPI) Search(ctx context.Context, query string) (string, error) {
	var data serpResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"api_key": s.apiKey,
			"q":       query,
			"engine":  "google",
			"num":     "5",
			"gl":      "in",
			"hl":      "en",
		}).
		SetResult(&data).
		Get(s.url)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("serpapi returned status %d", resp.StatusCode())
	}
	if len(data.OrganicResults) == 0 {
		return "", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Web search results for: %q\n\n", query)
	for i, item := range data.OrganicResults {
		if i >= 4 {
			break
		}
		fmt.Fprintf(&sb, "%d. %s\n   %s\n   %s\n\n", i+1, item.Title, tidySnippet(item.Snippet), item.Link)
	}
	sb.WriteString("Results localized for India.")
	return sb.String(), nil
}
