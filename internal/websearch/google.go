package websearch

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

const googleCSEURL = "https://www.googleapis.com/customsearch/v1"

type cseResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
	SearchInformation struct {
		FormattedTotalResults string `json:"formattedTotalResults"`
	} `json:"searchInformation"`
}

// googleCSE is the primary keyed search provider.
type googleCSE struct {
	http   *resty.Client
	apiKey string
	cseID  string
	url    string
}

func newGoogleCSE(http *resty.Client, apiKey, cseID string) *googleCSE {
	return &googleCSE{http: http, apiKey: apiKey, cseID: cseID, url: googleCSEURL}
}

func (g *googleCSE) Name() string { return "google_cse" }

func (g *googleCSE) Search(ctx context.Context, query string) (string, error) {
	var data cseResponse
	resp, err := g.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key": g.apiKey,
			"cx":  g.cseID,
			"q":   query,
			"num": "5",
			// Prefer results from the last month for freshness.
			"dateRestrict": "m1",
		}).
		SetResult(&data).
		Get(g.url)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("google search returned status %d", resp.StatusCode())
	}
	if len(data.Items) == 0 {
		return "", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Current web search results for: %q\n\n", query)
	for i, item := range data.Items {
		if i >= 4 {
			break
		}
		snippet := tidySnippet(item.Snippet)
		fmt.Fprintf(&sb, "%d. %s\n   %s\n   Source: %s\n\n", i+1, item.Title, snippet, item.Link)
	}
	if data.SearchInformation.FormattedTotalResults != "" {
		fmt.Fprintf(&sb, "Total results found: %s\n", data.SearchInformation.FormattedTotalResults)
	}
	sb.WriteString("This is real-time web search data from Google.")
	return sb.String(), nil
}

func tidySnippet(snippet string) string {
	snippet = strings.TrimSpace(strings.ReplaceAll(snippet, "\n", " "))
	if len(snippet) > 200 {
		snippet = snippet[:200] + "..."
	}
	if snippet == "" {
		snippet = "No description available"
	}
	return snippet
}
