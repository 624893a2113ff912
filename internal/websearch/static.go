package websearch

import (
	"context"
	"fmt"
	"strings"
)

// staticResponder terminates the chain. It pattern-matches the query
// against known financial-topic keyword sets and points at authoritative
// sources. Deliberately not live data.
type staticResponder struct{}

func (staticResponder) Name() string { return "static" }

type staticTopic struct {
	keywords []string
	heading  string
	sources  []string
}

var staticTopics = []staticTopic{
	{
		keywords: []string{"interest rate", "loan rate", "home loan", "personal loan", "fd rate", "fixed deposit"},
		heading:  "For current interest rates:",
		sources: []string{
			"Bank websites: SBI, HDFC, ICICI, Axis Bank for latest rates",
			"RBI website (rbi.org.in) for policy rates",
			"BankBazaar (bankbazaar.com) for rate comparison",
			"PaisaBazaar (paisabazaar.com) for loan rates",
			"Economic Times Banking section for rate updates",
		},
	},
	{
		keywords: []string{"rbi", "policy", "repo rate", "monetary policy", "inflation"},
		heading:  "For RBI policy and economic data:",
		sources: []string{
			"RBI official website: rbi.org.in",
			"RBI press releases for latest policy decisions",
			"Economic Times Policy section",
			"Ministry of Statistics (mospi.gov.in) for inflation data",
			"Bloomberg India for policy analysis",
		},
	},
	{
		keywords: []string{"stock", "share", "market", "nifty", "sensex"},
		heading:  "For stock market information:",
		sources: []string{
			"NSE India (nseindia.com) for real-time data",
			"BSE India (bseindia.com) for market updates",
			"MoneyControl (moneycontrol.com) for analysis",
			"Economic Times Markets section",
			"Yahoo Finance for a global perspective",
		},
	},
	{
		keywords: []string{"mutual fund", "mf", "fund", "nav"},
		heading:  "For mutual fund information:",
		sources: []string{
			"AMFI (amfiindia.com) for official NAV data",
			"Value Research (valueresearchonline.com) for analysis",
			"Morningstar India (morningstar.in) for ratings",
			"Fund house websites for detailed information",
		},
	},
	{
		keywords: []string{"tax", "income tax", "gst", "tds"},
		heading:  "For tax information:",
		sources: []string{
			"Income Tax Department (incometax.gov.in)",
			"GST Portal (gst.gov.in)",
			"ClearTax (cleartax.in) for tax guidance",
			"Economic Times Tax section",
		},
	},
	{
		keywords: []string{"insurance", "health insurance", "life insurance", "term insurance"},
		heading:  "For insurance information:",
		sources: []string{
			"IRDAI (irdai.gov.in) for regulations",
			"PolicyBazaar (policybazaar.com) for comparison",
			"Insurance company websites",
			"Economic Times Insurance section",
		},
	},
	{
		keywords: []string{"news", "latest", "current", "today", "update"},
		heading:  "For latest financial news:",
		sources: []string{
			"Economic Times (economictimes.indiatimes.com)",
			"Business Standard (business-standard.com)",
			"Mint (livemint.com)",
			"MoneyControl News section",
			"Bloomberg India for a global perspective",
		},
	},
}

func (staticResponder) Search(ctx context.Context, query string) (string, error) {
	queryLower := strings.ToLower(query)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Search results for: %s\n\n", query)

	matched := false
	for _, topic := range staticTopics {
		for _, kw := range topic.keywords {
			if strings.Contains(queryLower, kw) {
				sb.WriteString(topic.heading + "\n")
				for _, src := range topic.sources {
					sb.WriteString("- " + src + "\n")
				}
				sb.WriteString("\n")
				matched = true
				break
			}
		}
		if matched {
			break
		}
	}

	if !matched {
		sb.WriteString("For general information:\n")
		sb.WriteString("- Use specific financial terms for better guidance\n")
		sb.WriteString("- Include keywords like 'current', 'latest', 'today' for recent data\n")
		sb.WriteString("- Check official websites for authoritative information\n\n")
	}

	sb.WriteString("Tip: be specific in your queries for better results, e.g.\n")
	sb.WriteString("- 'Current home loan interest rates in India'\n")
	sb.WriteString("- 'Latest RBI repo rate'\n")
	sb.WriteString("- 'Best mutual funds to invest today'")
	return sb.String(), nil
}
