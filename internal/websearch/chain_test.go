package websearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
)

type scriptedProvider struct {
	name   string
	result string
	err    error
	calls  int
}

func (s *scriptedProvider) Name() string { return s.name }
func (s *scriptedProvider) Search(ctx context.Context, query string) (string, error) {
	s.calls++
	return s.result, s.err
}

func TestChainFirstNonEmptyWins(t *testing.T) {
	first := &scriptedProvider{name: "first", result: "answer from first"}
	second := &scriptedProvider{name: "second", result: "answer from second"}
	chain := &Chain{providers: []Provider{first, second}}

	got := chain.Search(context.Background(), "nifty today")
	if got != "answer from first" {
		t.Fatalf("got %q", got)
	}
	if second.calls != 0 {
		t.Error("second provider should not have been called")
	}
}

func TestChainDegradesOnErrorAndEmpty(t *testing.T) {
	failing := &scriptedProvider{name: "failing", err: errors.New("api down")}
	empty := &scriptedProvider{name: "empty", result: ""}
	last := &scriptedProvider{name: "last", result: "final answer"}
	chain := &Chain{providers: []Provider{failing, empty, last}}

	got := chain.Search(context.Background(), "repo rate")
	if got != "final answer" {
		t.Fatalf("got %q", got)
	}
	if failing.calls != 1 || empty.calls != 1 {
		t.Error("earlier providers should each be tried once")
	}
}

func TestChainNeverReturnsEmpty(t *testing.T) {
	// All real providers fail: the static responder still answers.
	failing := &scriptedProvider{name: "failing", err: errors.New("down")}
	chain := &Chain{providers: []Provider{failing, staticResponder{}}}

	got := chain.Search(context.Background(), "anything at all")
	if got == "" {
		t.Fatal("chain returned empty result")
	}
}

func TestNewChainSkipsKeylessProviders(t *testing.T) {
	chain := NewChain(Config{})
	// Without credentials only the RSS provider and the static responder
	// remain.
	if len(chain.providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(chain.providers))
	}

	keyed := NewChain(Config{GoogleAPIKey: "k", GoogleCSEID: "cx", SerpAPIKey: "s"})
	if len(keyed.providers) != 4 {
		t.Fatalf("expected 4 providers, got %d", len(keyed.providers))
	}
}

func TestStaticResponderTopics(t *testing.T) {
	cases := []struct {
		query string
		want  string
	}{
		{"current home loan interest rate", "rbi.org.in"},
		{"latest rbi repo rate", "RBI official website"},
		{"nifty sensex outlook", "nseindia.com"},
		{"best mutual fund nav", "amfiindia.com"},
		{"income tax slab", "incometax.gov.in"},
		{"term insurance plans", "irdai.gov.in"},
		{"something entirely unrelated", "For general information"},
	}
	for _, tc := range cases {
		got, err := staticResponder{}.Search(context.Background(), tc.query)
		if err != nil {
			t.Fatalf("static responder errored for %q: %v", tc.query, err)
		}
		if !strings.Contains(got, tc.want) {
			t.Errorf("query %q: expected %q in response:\n%s", tc.query, tc.want, got)
		}
	}
}

func TestGoogleCSEParsesResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" || r.URL.Query().Get("cx") != "test-cx" {
			t.Errorf("credentials not forwarded: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"items": [
				{"title": "RBI keeps repo rate at 6.5%", "link": "https://example.com/rbi", "snippet": "The central bank held rates steady."}
			],
			"searchInformation": {"formattedTotalResults": "1,234"}
		}`)
	}))
	defer server.Close()

	provider := newGoogleCSE(resty.New().SetTimeout(2*time.Second), "test-key", "test-cx")
	provider.url = server.URL

	got, err := provider.Search(context.Background(), "rbi repo rate")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !strings.Contains(got, "RBI keeps repo rate") || !strings.Contains(got, "https://example.com/rbi") {
		t.Errorf("result missing items:\n%s", got)
	}
}

func TestGoogleCSEEmptyItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": []}`)
	}))
	defer server.Close()

	provider := newGoogleCSE(resty.New(), "k", "cx")
	provider.url = server.URL

	got, err := provider.Search(context.Background(), "obscure query")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty result to trigger fallback, got %q", got)
	}
}

func TestNewsRSSParsesFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Google News</title>
    <item>
      <title>Sensex hits record high</title>
      <link>https://example.com/sensex</link>
      <pubDate>Mon, 31 Aug 2026 09:00:00 GMT</pubDate>
      <source url="https://et.example.com">Economic Times</source>
    </item>
  </channel>
</rss>`)
	}))
	defer server.Close()

	provider := newNewsRSS(resty.New().SetTimeout(2 * time.Second))
	provider.url = server.URL

	got, err := provider.Search(context.Background(), "sensex")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !strings.Contains(got, "Sensex hits record high") || !strings.Contains(got, "Economic Times") {
		t.Errorf("result missing feed items:\n%s", got)
	}
}
