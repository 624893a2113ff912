package tools

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/finsage/finsage/internal/dataflows"
)

// MarketDataProvider supplies quotes and daily price history for analysis.
type MarketDataProvider interface {
	GetQuote(symbol string) (*dataflows.Quote, error)
	History(symbol string, days int) ([]*dataflows.PricePoint, error)
}

// indianCompanies maps lowercase company names to NSE tickers.
var indianCompanies = map[string]string{
	"reliance industries":       "RELIANCE.NS",
	"reliance":                  "RELIANCE.NS",
	"tata consultancy services": "TCS.NS",
	"tcs":                       "TCS.NS",
	"infosys":                   "INFY.NS",
	"hdfc bank":                 "HDFCBANK.NS",
	"icici bank":                "ICICIBANK.NS",
	"state bank of india":       "SBIN.NS",
	"sbi":                       "SBIN.NS",
	"bharti airtel":             "BHARTIARTL.NS",
	"airtel":                    "BHARTIARTL.NS",
	"wipro":                     "WIPRO.NS",
	"maruti suzuki":             "MARUTI.NS",
	"maruti":                    "MARUTI.NS",
	"asian paints":              "ASIANPAINT.NS",
	"mahindra":                  "M&M.NS",
	"vintron informatics":       "VINTRON.NS",
	"vintron":                   "VINTRON.NS",
}

// usCompanies maps lowercase company names to US tickers.
var usCompanies = map[string]string{
	"apple":                 "AAPL",
	"apple inc":             "AAPL",
	"microsoft":             "MSFT",
	"microsoft corporation": "MSFT",
	"google":                "GOOGL",
	"alphabet":              "GOOGL",
	"amazon":                "AMZN",
	"amazon.com":            "AMZN",
	"tesla":                 "TSLA",
	"tesla inc":             "TSLA",
	"meta":                  "META",
	"facebook":              "META",
	"netflix":               "NFLX",
	"nvidia":                "NVDA",
	"nvidia corporation":    "NVDA",
}

type symbolMatch struct {
	Symbol     string
	Company    string
	Market     string
	Confidence string
}

// searchSymbols looks up a company name in the static tables, exact match
// first, then substring in either direction.
func searchSymbols(companyName, market string) []symbolMatch {
	query := strings.ToLower(strings.TrimSpace(companyName))
	var results []symbolMatch

	if market == "IN" || market == "AUTO" {
		if symbol, ok := indianCompanies[query]; ok {
			results = append(results, symbolMatch{symbol, companyName, "NSE (India)", "high"})
		}
	}
	if market == "US" || market == "AUTO" {
		if symbol, ok := usCompanies[query]; ok {
			results = append(results, symbolMatch{symbol, companyName, "NASDAQ/NYSE (US)", "high"})
		}
	}
	if len(results) > 0 {
		return results
	}

	// Partial match, one per market. Map iteration order is random, so
	// scan sorted names for deterministic results.
	if market == "IN" || market == "AUTO" {
		if m, ok := partialMatch(indianCompanies, query, "NSE (India)"); ok {
			results = append(results, m)
		}
	}
	if market == "US" || market == "AUTO" {
		if m, ok := partialMatch(usCompanies, query, "NASDAQ/NYSE (US)"); ok {
			results = append(results, m)
		}
	}
	return results
}

func partialMatch(table map[string]string, query, market string) (symbolMatch, bool) {
	if query == "" {
		return symbolMatch{}, false
	}
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.Contains(name, query) || strings.Contains(query, name) {
			return symbolMatch{table[name], titleCase(name), market, "medium"}, true
		}
	}
	return symbolMatch{}, false
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// RegisterStockTools wires symbol search and stock analysis against a
// market data provider.
func RegisterStockTools(r *Registry, provider MarketDataProvider) error {
	searchDef := &Definition{
		Name:        "stock_symbol_search",
		Description: "Search for stock ticker symbols by company name across Indian (NSE) and US markets",
		Category:    CategoryMarketAnalysis,
		Params: map[string]*schema.ParameterInfo{
			"company_name": {
				Type:     schema.String,
				Desc:     "Company name to look up, e.g. 'Reliance Industries' or 'Apple'",
				Required: true,
			},
			"market": {
				Type: schema.String,
				Desc: "Market to search: US, IN, or AUTO (default AUTO searches both)",
				Enum: []string{"US", "IN", "AUTO"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			companyName := stringArg(args, "company_name", "")
			if companyName == "" {
				return ErrorResult("company_name parameter is required"), nil
			}
			market := strings.ToUpper(stringArg(args, "market", "AUTO"))

			results := searchSymbols(companyName, market)
			var sb strings.Builder
			if len(results) == 0 {
				fmt.Fprintf(&sb, "No stock symbols found for %q.\n\n", companyName)
				sb.WriteString("Suggestions:\n")
				sb.WriteString("- Try the full company name or a common abbreviation\n")
				sb.WriteString("- For Indian stocks use names like 'Reliance', 'TCS', 'HDFC Bank'\n")
				sb.WriteString("- Common symbols: RELIANCE.NS, TCS.NS, INFY.NS, AAPL, MSFT, GOOGL\n")
				return TextResult(sb.String()), nil
			}

			fmt.Fprintf(&sb, "Stock symbol search results for %q:\n\n", companyName)
			for i, m := range results {
				fmt.Fprintf(&sb, "%d. %s - %s\n   Market: %s\n   Confidence: %s\n\n",
					i+1, m.Symbol, m.Company, m.Market, m.Confidence)
			}
			fmt.Fprintf(&sb, "Next step: run stock_analysis with %s for detailed analysis.\n", results[0].Symbol)
			return TextResult(sb.String()), nil
		},
	}
	if err := r.Register(searchDef); err != nil {
		return err
	}

	analysisDef := &Definition{
		Name:        "stock_analysis",
		Description: "Analyze stocks: current prices, detailed metrics, historical performance, comparison, or portfolio view. Use .NS suffix for Indian NSE stocks.",
		Category:    CategoryMarketAnalysis,
		Params: map[string]*schema.ParameterInfo{
			"symbols": {
				Type:     schema.Array,
				Desc:     "Stock symbols to analyze, e.g. ['RELIANCE.NS', 'TCS.NS', 'AAPL']",
				ElemInfo: &schema.ParameterInfo{Type: schema.String},
				Required: true,
			},
			"analysis_type": {
				Type:     schema.String,
				Desc:     "Type of analysis to perform",
				Enum:     []string{"basic", "detailed", "historical", "comparison", "portfolio"},
				Required: true,
			},
			"period": {
				Type: schema.String,
				Desc: "Time period for historical data: 1mo, 3mo, 6mo, 1y, 2y, 5y (default 1y)",
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			symbols := stringSliceArg(args, "symbols")
			if len(symbols) == 0 {
				return ErrorResult("no stock symbols provided"), nil
			}
			for i, s := range symbols {
				symbols[i] = dataflows.NormalizeSymbol(s)
			}

			analysisType := stringArg(args, "analysis_type", "basic")
			period := stringArg(args, "period", "1y")

			var text string
			switch analysisType {
			case "detailed":
				text = detailedStockAnalysis(provider, symbols)
			case "historical":
				text = historicalStockAnalysis(provider, symbols, period)
			case "comparison":
				text = compareStocks(provider, symbols, period)
			case "portfolio":
				text = analyzeStockPortfolio(provider, symbols, period)
			default:
				text = basicStockInfo(provider, symbols)
			}
			return TextResult(text), nil
		},
	}
	return r.Register(analysisDef)
}

// periodToDays converts yfinance-style period strings to calendar days.
func periodToDays(period string) int {
	switch strings.ToLower(period) {
	case "1mo":
		return 30
	case "3mo":
		return 90
	case "6mo":
		return 180
	case "2y":
		return 730
	case "5y":
		return 1825
	default:
		return 365
	}
}

func basicStockInfo(provider MarketDataProvider, symbols []string) string {
	var sb strings.Builder
	sb.WriteString("Stock Analysis - Basic Information\n\n")

	for _, symbol := range symbols {
		q, err := provider.GetQuote(symbol)
		if err != nil {
			fmt.Fprintf(&sb, "%s: error fetching data: %v\n\n", symbol, err)
			continue
		}
		price, _ := q.Price.Float64()
		change, _ := q.Change.Float64()
		changePct, _ := q.ChangePercent.Float64()

		fmt.Fprintf(&sb, "%s\n", symbol)
		fmt.Fprintf(&sb, "- Current Price: %.2f %s\n", price, q.Currency)
		fmt.Fprintf(&sb, "- Change: %+.2f (%+.2f%%)\n", change, changePct)
		if q.CompanyName != "" {
			fmt.Fprintf(&sb, "- Company: %s\n", q.CompanyName)
		}
		if q.Exchange != "" {
			fmt.Fprintf(&sb, "- Exchange: %s\n", q.Exchange)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Data as of: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	sb.WriteString("Use 'detailed' analysis for comprehensive metrics.")
	return sb.String()
}

func detailedStockAnalysis(provider MarketDataProvider, symbols []string) string {
	var sb strings.Builder
	sb.WriteString("Detailed Stock Analysis\n\n")

	for _, symbol := range symbols {
		q, err := provider.GetQuote(symbol)
		if err != nil {
			fmt.Fprintf(&sb, "%s: error in detailed analysis: %v\n\n", symbol, err)
			continue
		}
		history, err := provider.History(symbol, 365)
		if err != nil || len(history) == 0 {
			fmt.Fprintf(&sb, "%s: no historical data available\n\n", symbol)
			continue
		}

		price, _ := q.Price.Float64()
		yearHigh, yearLow := history[0].High, history[0].Low
		var totalVolume int64
		for _, bar := range history {
			if bar.High.GreaterThan(yearHigh) {
				yearHigh = bar.High
			}
			if bar.Low.LessThan(yearLow) {
				yearLow = bar.Low
			}
			totalVolume += bar.Volume
		}
		high, _ := yearHigh.Float64()
		low, _ := yearLow.Float64()

		fmt.Fprintf(&sb, "## %s - %s\n\n", symbol, q.CompanyName)
		sb.WriteString("Price Information:\n")
		fmt.Fprintf(&sb, "- Current Price: %.2f %s\n", price, q.Currency)
		fmt.Fprintf(&sb, "- 52W High: %.2f\n", high)
		fmt.Fprintf(&sb, "- 52W Low: %.2f\n", low)
		if high > low {
			fmt.Fprintf(&sb, "- Price Position: %.1f%% of 52W range\n", (price-low)/(high-low)*100)
		}
		fmt.Fprintf(&sb, "- Avg Daily Volume: %d\n", totalVolume/int64(len(history)))
		fmt.Fprintf(&sb, "- Market State: %s\n\n", q.MarketState)

		sb.WriteString("Valuation Metrics:\n")
		if q.MarketCap > 0 {
			fmt.Fprintf(&sb, "- Market Cap: %s %s\n", formatMarketCap(q.MarketCap), q.Currency)
		}
		if q.TrailingPE > 0 {
			fmt.Fprintf(&sb, "- P/E (trailing): %.2f\n", q.TrailingPE)
		}
		if q.ForwardPE > 0 {
			fmt.Fprintf(&sb, "- P/E (forward): %.2f\n", q.ForwardPE)
		}
		if q.PriceToBook > 0 {
			fmt.Fprintf(&sb, "- P/B Ratio: %.2f\n", q.PriceToBook)
		}
		if q.EPS != 0 {
			fmt.Fprintf(&sb, "- EPS (trailing): %.2f\n", q.EPS)
		}
		if q.DividendYield > 0 {
			fmt.Fprintf(&sb, "- Dividend Yield: %.2f%%\n", q.DividendYield*100)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Analysis Date: %s", time.Now().Format("2006-01-02 15:04:05"))
	return sb.String()
}

// formatMarketCap renders a market cap in trillions, billions or millions.
func formatMarketCap(cap int64) string {
	v := float64(cap)
	switch {
	case v >= 1e12:
		return fmt.Sprintf("%.2fT", v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	default:
		return fmt.Sprintf("%d", cap)
	}
}

// historyStats holds the derived figures for one symbol over a period.
type historyStats struct {
	StartPrice  float64
	EndPrice    float64
	TotalReturn float64
	Volatility  float64
	BestDay     float64
	WorstDay    float64
	AvgVolume   int64
	FirstDate   time.Time
	LastDate    time.Time
}

// computeHistoryStats derives return, annualized volatility and best/worst
// day from daily bars. Volatility is the sample standard deviation of
// simple daily returns scaled by sqrt(252), expressed in percent.
func computeHistoryStats(history []*dataflows.PricePoint) (*historyStats, error) {
	if len(history) < 2 {
		return nil, fmt.Errorf("insufficient history: %d bars", len(history))
	}

	closes := make([]float64, len(history))
	var totalVolume int64
	for i, bar := range history {
		c, _ := bar.Close.Float64()
		closes[i] = c
		totalVolume += bar.Volume
	}
	if closes[0] == 0 {
		return nil, fmt.Errorf("invalid start price")
	}

	dailyReturns := make([]float64, 0, len(closes)-1)
	bestDay, worstDay := math.Inf(-1), math.Inf(1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		r := (closes[i] - closes[i-1]) / closes[i-1]
		dailyReturns = append(dailyReturns, r)
		if r > bestDay {
			bestDay = r
		}
		if r < worstDay {
			worstDay = r
		}
	}
	if len(dailyReturns) == 0 {
		return nil, fmt.Errorf("no usable daily returns")
	}

	mean := 0.0
	for _, r := range dailyReturns {
		mean += r
	}
	mean /= float64(len(dailyReturns))

	variance := 0.0
	for _, r := range dailyReturns {
		diff := r - mean
		variance += diff * diff
	}
	if len(dailyReturns) > 1 {
		variance /= float64(len(dailyReturns) - 1)
	}

	return &historyStats{
		StartPrice:  closes[0],
		EndPrice:    closes[len(closes)-1],
		TotalReturn: (closes[len(closes)-1] - closes[0]) / closes[0] * 100,
		Volatility:  math.Sqrt(variance) * math.Sqrt(252) * 100,
		BestDay:     bestDay * 100,
		WorstDay:    worstDay * 100,
		AvgVolume:   totalVolume / int64(len(history)),
		FirstDate:   history[0].Date,
		LastDate:    history[len(history)-1].Date,
	}, nil
}

func historicalStockAnalysis(provider MarketDataProvider, symbols []string, period string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Historical Stock Analysis (%s)\n\n", strings.ToUpper(period))

	days := periodToDays(period)
	for _, symbol := range symbols {
		history, err := provider.History(symbol, days)
		if err != nil {
			fmt.Fprintf(&sb, "%s: error in historical analysis: %v\n\n", symbol, err)
			continue
		}
		stats, err := computeHistoryStats(history)
		if err != nil {
			fmt.Fprintf(&sb, "%s: no historical data available: %v\n\n", symbol, err)
			continue
		}

		fmt.Fprintf(&sb, "## %s\n", symbol)
		fmt.Fprintf(&sb, "- Period: %s to %s\n", stats.FirstDate.Format("2006-01-02"), stats.LastDate.Format("2006-01-02"))
		fmt.Fprintf(&sb, "- Start Price: %.2f\n", stats.StartPrice)
		fmt.Fprintf(&sb, "- End Price: %.2f\n", stats.EndPrice)
		fmt.Fprintf(&sb, "- Total Return: %+.2f%%\n", stats.TotalReturn)
		fmt.Fprintf(&sb, "- Volatility (annualized): %.2f%%\n", stats.Volatility)
		fmt.Fprintf(&sb, "- Best Day: %+.2f%%\n", stats.BestDay)
		fmt.Fprintf(&sb, "- Worst Day: %+.2f%%\n", stats.WorstDay)
		fmt.Fprintf(&sb, "- Average Volume: %d\n\n", stats.AvgVolume)
	}
	return sb.String()
}

func compareStocks(provider MarketDataProvider, symbols []string, period string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Stock Comparison Analysis (%s)\n\n", strings.ToUpper(period))

	type entry struct {
		Symbol string
		Stats  *historyStats
	}
	var entries []entry

	days := periodToDays(period)
	for _, symbol := range symbols {
		history, err := provider.History(symbol, days)
		if err != nil {
			fmt.Fprintf(&sb, "%s: error: %v\n", symbol, err)
			continue
		}
		stats, err := computeHistoryStats(history)
		if err != nil {
			fmt.Fprintf(&sb, "%s: error: %v\n", symbol, err)
			continue
		}
		entries = append(entries, entry{symbol, stats})
	}

	if len(entries) == 0 {
		return "No valid stock data found for comparison"
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Stats.TotalReturn > entries[j].Stats.TotalReturn
	})

	sb.WriteString("Performance Ranking:\n\n")
	for i, e := range entries {
		fmt.Fprintf(&sb, "%d. %s: %+.2f%%\n", i+1, e.Symbol, e.Stats.TotalReturn)
	}

	sb.WriteString("\nDetailed Comparison:\n\n")
	sb.WriteString("| Stock | Price | Return | Volatility |\n")
	sb.WriteString("|-------|-------|--------|------------|\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "| %s | %.2f | %+.1f%% | %.1f%% |\n",
			e.Symbol, e.Stats.EndPrice, e.Stats.TotalReturn, e.Stats.Volatility)
	}

	best, worst := entries[0], entries[len(entries)-1]
	sb.WriteString("\nKey Insights:\n")
	fmt.Fprintf(&sb, "- Best Performer: %s (%+.2f%%)\n", best.Symbol, best.Stats.TotalReturn)
	fmt.Fprintf(&sb, "- Worst Performer: %s (%+.2f%%)\n", worst.Symbol, worst.Stats.TotalReturn)
	fmt.Fprintf(&sb, "- Performance Gap: %.2f%%\n", best.Stats.TotalReturn-worst.Stats.TotalReturn)
	return sb.String()
}

func analyzeStockPortfolio(provider MarketDataProvider, symbols []string, period string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Portfolio Analysis (%s)\n\n", strings.ToUpper(period))

	type entry struct {
		Symbol string
		Stats  *historyStats
	}
	var entries []entry

	days := periodToDays(period)
	for _, symbol := range symbols {
		history, err := provider.History(symbol, days)
		if err != nil {
			fmt.Fprintf(&sb, "%s: error: %v\n", symbol, err)
			continue
		}
		stats, err := computeHistoryStats(history)
		if err != nil {
			fmt.Fprintf(&sb, "%s: error: %v\n", symbol, err)
			continue
		}
		entries = append(entries, entry{symbol, stats})
	}

	if len(entries) == 0 {
		return "No valid portfolio data found"
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Stats.TotalReturn > entries[j].Stats.TotalReturn
	})

	totalReturn := 0.0
	var gainers, losers []entry
	for _, e := range entries {
		totalReturn += e.Stats.TotalReturn
		if e.Stats.TotalReturn > 0 {
			gainers = append(gainers, e)
		} else if e.Stats.TotalReturn < 0 {
			losers = append(losers, e)
		}
	}

	sb.WriteString("Portfolio Overview:\n")
	fmt.Fprintf(&sb, "- Total Stocks: %d\n", len(entries))
	fmt.Fprintf(&sb, "- Average Return: %+.2f%%\n\n", totalReturn/float64(len(entries)))

	fmt.Fprintf(&sb, "Gainers (%d stocks):\n", len(gainers))
	for _, e := range gainers {
		fmt.Fprintf(&sb, "- %s: %+.2f%% (%.2f)\n", e.Symbol, e.Stats.TotalReturn, e.Stats.EndPrice)
	}
	if len(losers) > 0 {
		fmt.Fprintf(&sb, "\nLosers (%d stocks):\n", len(losers))
		for _, e := range losers {
			fmt.Fprintf(&sb, "- %s: %+.2f%% (%.2f)\n", e.Symbol, e.Stats.TotalReturn, e.Stats.EndPrice)
		}
	}

	sb.WriteString("\nPortfolio Insights:\n")
	if len(gainers) > 0 {
		fmt.Fprintf(&sb, "- Top Performer: %s (%+.2f%%)\n", gainers[0].Symbol, gainers[0].Stats.TotalReturn)
	}
	if len(losers) > 0 {
		worst := losers[len(losers)-1]
		fmt.Fprintf(&sb, "- Worst Performer: %s (%+.2f%%)\n", worst.Symbol, worst.Stats.TotalReturn)
	}
	fmt.Fprintf(&sb, "- Win Rate: %d/%d (%.1f%%)\n",
		len(gainers), len(entries), float64(len(gainers))/float64(len(entries))*100)
	return sb.String()
}
