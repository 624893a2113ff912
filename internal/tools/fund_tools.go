package tools

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/finsage/finsage/internal/dataflows"
)

// FundDataProvider supplies mutual fund scheme search and NAV history.
type FundDataProvider interface {
	SearchFunds(query string, limit int) ([]dataflows.FundRef, error)
	GetFund(schemeCode int) (*dataflows.Fund, error)
}

// fundCodesArg reads scheme codes which LLMs supply as numbers or strings.
func fundCodesArg(args map[string]any, key string) []int {
	if codes := intSliceArg(args, key); len(codes) > 0 {
		return codes
	}
	var out []int
	for _, s := range stringSliceArg(args, key) {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// RegisterFundTools wires mutual fund analysis against a fund data provider.
func RegisterFundTools(r *Registry, provider FundDataProvider) error {
	def := &Definition{
		Name:        "mutual_fund_analysis",
		Description: "Analyze Indian mutual funds: search schemes by name, fetch NAV history, fund details, compare funds, or analyze a fund portfolio",
		Category:    CategoryPortfolioAnalysis,
		Params: map[string]*schema.ParameterInfo{
			"action": {
				Type:     schema.String,
				Desc:     "Action to perform",
				Enum:     []string{"search", "get_nav", "fund_details", "compare", "portfolio_analysis"},
				Required: true,
			},
			"fund_codes": {
				Type:     schema.Array,
				Desc:     "Mutual fund scheme codes, e.g. [120503, 119598]",
				ElemInfo: &schema.ParameterInfo{Type: schema.String},
			},
			"search_term": {
				Type: schema.String,
				Desc: "Search term for finding funds by scheme name",
			},
			"period_days": {
				Type: schema.Integer,
				Desc: "Number of days of NAV history to analyze (default 365)",
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			action := stringArg(args, "action", "")
			fundCodes := fundCodesArg(args, "fund_codes")
			periodDays := intArg(args, "period_days", 365)
			if periodDays <= 0 {
				periodDays = 365
			}

			switch action {
			case "search":
				term := stringArg(args, "search_term", "")
				if term == "" {
					return ErrorResult("search term is required for search action"), nil
				}
				return TextResult(searchFundsText(provider, term)), nil
			case "get_nav":
				if len(fundCodes) == 0 {
					return ErrorResult("fund codes are required for NAV data"), nil
				}
				return TextResult(navAnalysisText(provider, fundCodes, periodDays)), nil
			case "fund_details":
				if len(fundCodes) == 0 {
					return ErrorResult("fund codes are required for fund details"), nil
				}
				return TextResult(fundDetailsText(provider, fundCodes)), nil
			case "compare":
				if len(fundCodes) < 2 {
					return ErrorResult("at least 2 fund codes are required for comparison"), nil
				}
				return TextResult(compareFundsText(provider, fundCodes, periodDays)), nil
			case "portfolio_analysis":
				if len(fundCodes) == 0 {
					return ErrorResult("fund codes are required for portfolio analysis"), nil
				}
				return TextResult(fundPortfolioText(provider, fundCodes, periodDays)), nil
			default:
				return ErrorResult(fmt.Sprintf("invalid action: %s. Use: search, get_nav, fund_details, compare, or portfolio_analysis", action)), nil
			}
		},
	}
	return r.Register(def)
}

func searchFundsText(provider FundDataProvider, term string) string {
	matches, err := provider.SearchFunds(term, 20)
	if err != nil {
		return fmt.Sprintf("Error fetching mutual fund data: %v", err)
	}
	if len(matches) == 0 {
		return fmt.Sprintf("No mutual funds found matching %q", term)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Mutual Fund Search Results for %q\n\n", term)
	fmt.Fprintf(&sb, "Found %d matching funds (showing top 20):\n\n", len(matches))
	for _, fund := range matches {
		fmt.Fprintf(&sb, "%s\n- Scheme Code: %d\n\n", fund.SchemeName, fund.SchemeCode)
	}
	sb.WriteString("Next steps:\n")
	sb.WriteString("- Use the scheme code with 'get_nav' action for NAV data\n")
	sb.WriteString("- Use 'compare' action to compare multiple funds")
	return sb.String()
}

// fundPeriodStats holds NAV-derived figures over a trailing window.
type fundPeriodStats struct {
	Name         string
	Category     string
	CurrentNAV   float64
	PeriodReturn float64
	PeriodHigh   float64
	PeriodLow    float64
	LastUpdated  string
}

// computeFundStats derives period return and high/low from NAV history.
// Entries are newest first; the window spans from the latest NAV back to
// the entry periodDays positions earlier (periodDays+1 entries).
// Return = (latest NAV - NAV periodDays back) / NAV periodDays back * 100.
func computeFundStats(fund *dataflows.Fund, periodDays int) (*fundPeriodStats, error) {
	if len(fund.Data) == 0 {
		return nil, fmt.Errorf("no NAV data available")
	}

	window := fund.Data
	if periodDays+1 < len(window) {
		window = window[:periodDays+1]
	}

	current, err := strconv.ParseFloat(window[0].NAV, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid current NAV %q", window[0].NAV)
	}
	oldest, err := strconv.ParseFloat(window[len(window)-1].NAV, 64)
	if err != nil || oldest == 0 {
		return nil, fmt.Errorf("invalid period-start NAV %q", window[len(window)-1].NAV)
	}

	high, low := current, current
	for _, entry := range window {
		nav, err := strconv.ParseFloat(entry.NAV, 64)
		if err != nil {
			continue
		}
		if nav > high {
			high = nav
		}
		if nav < low {
			low = nav
		}
	}

	return &fundPeriodStats{
		Name:         fund.Meta.SchemeName,
		Category:     fund.Meta.SchemeCategory,
		CurrentNAV:   current,
		PeriodReturn: (current - oldest) / oldest * 100,
		PeriodHigh:   high,
		PeriodLow:    low,
		LastUpdated:  window[0].Date,
	}, nil
}

func navAnalysisText(provider FundDataProvider, fundCodes []int, periodDays int) string {
	var sb strings.Builder
	sb.WriteString("Mutual Fund NAV Analysis\n\n")

	for _, code := range fundCodes {
		fund, err := provider.GetFund(code)
		if err != nil {
			fmt.Fprintf(&sb, "Fund %d: error fetching data: %v\n\n", code, err)
			continue
		}
		stats, err := computeFundStats(fund, periodDays)
		if err != nil {
			fmt.Fprintf(&sb, "Fund %d: %v\n\n", code, err)
			continue
		}

		fmt.Fprintf(&sb, "## %s\n", stats.Name)
		fmt.Fprintf(&sb, "- Scheme Code: %d\n", code)
		fmt.Fprintf(&sb, "- Category: %s\n", stats.Category)
		fmt.Fprintf(&sb, "- Current NAV: %.4f\n", stats.CurrentNAV)
		fmt.Fprintf(&sb, "- Period Return: %+.2f%% (%d days)\n", stats.PeriodReturn, periodDays)
		fmt.Fprintf(&sb, "- Period High: %.4f\n", stats.PeriodHigh)
		fmt.Fprintf(&sb, "- Period Low: %.4f\n", stats.PeriodLow)
		fmt.Fprintf(&sb, "- Last Updated: %s\n\n", stats.LastUpdated)

		sb.WriteString("Recent NAV history:\n")
		recent := fund.Data
		if len(recent) > 5 {
			recent = recent[:5]
		}
		for _, entry := range recent {
			fmt.Fprintf(&sb, "- %s: %s\n", entry.Date, entry.NAV)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Analysis Date: %s", time.Now().Format("2006-01-02 15:04:05"))
	return sb.String()
}

func fundDetailsText(provider FundDataProvider, fundCodes []int) string {
	var sb strings.Builder
	sb.WriteString("Mutual Fund Details\n\n")

	for _, code := range fundCodes {
		fund, err := provider.GetFund(code)
		if err != nil {
			fmt.Fprintf(&sb, "Fund %d: error fetching data: %v\n\n", code, err)
			continue
		}

		fmt.Fprintf(&sb, "## %s\n", fund.Meta.SchemeName)
		fmt.Fprintf(&sb, "- Scheme Code: %d\n", fund.Meta.SchemeCode)
		fmt.Fprintf(&sb, "- Fund House: %s\n", fund.Meta.FundHouse)
		fmt.Fprintf(&sb, "- Scheme Type: %s\n", fund.Meta.SchemeType)
		fmt.Fprintf(&sb, "- Category: %s\n", fund.Meta.SchemeCategory)
		if len(fund.Data) > 0 {
			fmt.Fprintf(&sb, "- Latest NAV: %s (%s)\n", fund.Data[0].NAV, fund.Data[0].Date)
			fmt.Fprintf(&sb, "- NAV Records: %d\n", len(fund.Data))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func compareFundsText(provider FundDataProvider, fundCodes []int, periodDays int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Mutual Fund Comparison (%d days)\n\n", periodDays)

	type entry struct {
		Code  int
		Stats *fundPeriodStats
	}
	var entries []entry

	for _, code := range fundCodes {
		fund, err := provider.GetFund(code)
		if err != nil {
			fmt.Fprintf(&sb, "Fund %d: error: %v\n", code, err)
			continue
		}
		stats, err := computeFundStats(fund, periodDays)
		if err != nil {
			fmt.Fprintf(&sb, "Fund %d: %v\n", code, err)
			continue
		}
		entries = append(entries, entry{code, stats})
	}

	if len(entries) == 0 {
		return "No valid fund data found for comparison"
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Stats.PeriodReturn > entries[j].Stats.PeriodReturn
	})

	sb.WriteString("Performance Ranking:\n\n")
	for i, e := range entries {
		fmt.Fprintf(&sb, "%d. %s (%d): %+.2f%%\n", i+1, e.Stats.Name, e.Code, e.Stats.PeriodReturn)
	}

	sb.WriteString("\n| Fund | NAV | Return | High | Low |\n")
	sb.WriteString("|------|-----|--------|------|-----|\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "| %d | %.4f | %+.2f%% | %.4f | %.4f |\n",
			e.Code, e.Stats.CurrentNAV, e.Stats.PeriodReturn, e.Stats.PeriodHigh, e.Stats.PeriodLow)
	}

	best, worst := entries[0], entries[len(entries)-1]
	sb.WriteString("\nKey Insights:\n")
	fmt.Fprintf(&sb, "- Best Performer: %s (%+.2f%%)\n", best.Stats.Name, best.Stats.PeriodReturn)
	fmt.Fprintf(&sb, "- Worst Performer: %s (%+.2f%%)\n", worst.Stats.Name, worst.Stats.PeriodReturn)
	return sb.String()
}

func fundPortfolioText(provider FundDataProvider, fundCodes []int, periodDays int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Mutual Fund Portfolio Analysis (%d days)\n\n", periodDays)

	var stats []*fundPeriodStats
	for _, code := range fundCodes {
		fund, err := provider.GetFund(code)
		if err != nil {
			fmt.Fprintf(&sb, "Fund %d: error: %v\n", code, err)
			continue
		}
		s, err := computeFundStats(fund, periodDays)
		if err != nil {
			fmt.Fprintf(&sb, "Fund %d: %v\n", code, err)
			continue
		}
		stats = append(stats, s)
	}

	if len(stats) == 0 {
		return "No valid fund data found for portfolio analysis"
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].PeriodReturn > stats[j].PeriodReturn
	})

	totalReturn := 0.0
	gainers := 0
	for _, s := range stats {
		totalReturn += s.PeriodReturn
		if s.PeriodReturn > 0 {
			gainers++
		}
	}

	sb.WriteString("Portfolio Overview:\n")
	fmt.Fprintf(&sb, "- Total Funds: %d\n", len(stats))
	fmt.Fprintf(&sb, "- Average Return: %+.2f%%\n", totalReturn/float64(len(stats)))
	fmt.Fprintf(&sb, "- Win Rate: %d/%d (%.1f%%)\n\n", gainers, len(stats), float64(gainers)/float64(len(stats))*100)

	sb.WriteString("Fund Performance:\n")
	for _, s := range stats {
		fmt.Fprintf(&sb, "- %s: %+.2f%% (NAV %.4f)\n", s.Name, s.PeriodReturn, s.CurrentNAV)
	}

	sb.WriteString("\nPortfolio Insights:\n")
	fmt.Fprintf(&sb, "- Top Performer: %s (%+.2f%%)\n", stats[0].Name, stats[0].PeriodReturn)
	fmt.Fprintf(&sb, "- Worst Performer: %s (%+.2f%%)\n", stats[len(stats)-1].Name, stats[len(stats)-1].PeriodReturn)
	return sb.String()
}
