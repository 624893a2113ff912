package websearch

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
)

const newsRSSBaseURL = "https://news.google.com/rss/search"

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title   string    `xml:"title"`
	Link    string    `xml:"link"`
	PubDate string    `xml:"pubDate"`
	Source  rssSource `xml:"source"`
}

type rssSource struct {
	URL  string `xml:"url,attr"`
	Text string `xml:",chardata"`
}

// newsRSS is the keyless fallback: the Google News RSS feed needs no
// credentials and usually has something for financial queries.
type newsRSS struct {
	http *resty.Client
	url  string
}

func newNewsRSS(http *resty.Client) *newsRSS {
	return &newsRSS{http: http, url: newsRSSBaseURL}
}

func (n *newsRSS) Name() string { return "google_news_rss" }

func (n *newsRSS) Search(ctx context.Context, query string) (string, error) {
	v := url.Values{}
	v.Set("q", query)
	v.Set("hl", "en-IN")
	v.Set("gl", "IN")
	v.Set("ceid", "IN:en")

	resp, err := n.http.R().SetContext(ctx).Get(n.url + "?" + v.Encode())
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("news rss returned status %d", resp.StatusCode())
	}

	var feed rssFeed
	if err := xml.Unmarshal(resp.Body(), &feed); err != nil {
		return "", fmt.Errorf("failed to parse RSS feed: %w", err)
	}
	if len(feed.Channel.Items) == 0 {
		return "", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Latest news for: %q\n\n", query)
	for i, item := range feed.Channel.Items {
		if i >= 5 {
			break
		}
		source := item.Source.Text
		if source == "" {
			source = "Google News"
		}
		fmt.Fprintf(&sb, "%d. %s\n   Source: %s", i+1, strings.TrimSpace(item.Title), source)
		if item.PubDate != "" {
			fmt.Fprintf(&sb, " (%s)", item.PubDate)
		}
		fmt.Fprintf(&sb, "\n   %s\n\n", item.Link)
	}
	sb.WriteString("Headlines from Google News RSS.")
	return sb.String(), nil
}
