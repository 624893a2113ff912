package tools

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsage/finsage/internal/dataflows"
)

func TestSearchSymbolsExactMatchHighConfidence(t *testing.T) {
	results := searchSymbols("Reliance", "IN")
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Symbol != "RELIANCE.NS" || results[0].Confidence != "high" {
		t.Errorf("got %+v", results[0])
	}
}

func TestSearchSymbolsPartialMatchMediumConfidence(t *testing.T) {
	results := searchSymbols("reliance industries limited", "AUTO")
	if len(results) == 0 {
		t.Fatal("expected a partial match")
	}
	if results[0].Symbol != "RELIANCE.NS" || results[0].Confidence != "medium" {
		t.Errorf("got %+v", results[0])
	}
}

func TestSearchSymbolsAutoSearchesBothMarkets(t *testing.T) {
	results := searchSymbols("apple", "AUTO")
	if len(results) != 1 || results[0].Symbol != "AAPL" {
		t.Fatalf("got %+v", results)
	}
	if searchSymbols("apple", "IN") != nil {
		t.Error("apple should not match the Indian table exactly")
	}
}

func TestSearchSymbolsNoMatchGivesGuidance(t *testing.T) {
	r := NewRegistry()
	if err := RegisterStockTools(r, &fakeMarket{}); err != nil {
		t.Fatalf("RegisterStockTools failed: %v", err)
	}
	def, _ := r.Get("stock_symbol_search")
	result, err := def.Handler(context.Background(), map[string]any{"company_name": "nonexistent corp xyz"})
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	text := envelopeText(t, result)
	if !strings.Contains(text, "No stock symbols found") || !strings.Contains(text, "Suggestions") {
		t.Errorf("expected guidance message, got %q", text)
	}
}

// fakeMarket serves canned history and quotes for the analysis tests.
type fakeMarket struct {
	closes map[string][]float64
	quotes map[string]*dataflows.Quote
	fail   map[string]bool
}

func (f *fakeMarket) GetQuote(symbol string) (*dataflows.Quote, error) {
	if f.fail[symbol] {
		return nil, fmt.Errorf("provider down")
	}
	if q, ok := f.quotes[symbol]; ok {
		return q, nil
	}
	return nil, fmt.Errorf("no quote for %s", symbol)
}

func (f *fakeMarket) History(symbol string, days int) ([]*dataflows.PricePoint, error) {
	if f.fail[symbol] {
		return nil, fmt.Errorf("provider down")
	}
	closes, ok := f.closes[symbol]
	if !ok {
		return nil, fmt.Errorf("no history for %s", symbol)
	}
	points := make([]*dataflows.PricePoint, len(closes))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		d := decimal.NewFromFloat(c)
		points[i] = &dataflows.PricePoint{
			Symbol: symbol, Date: base.AddDate(0, 0, i),
			Open: d, High: d, Low: d, Close: d, AdjClose: d, Volume: 1000,
		}
	}
	return points, nil
}

func envelopeText(t *testing.T, result map[string]any) string {
	t.Helper()
	content, ok := result["content"].([]any)
	if !ok || len(content) == 0 {
		t.Fatalf("not a content envelope: %v", result)
	}
	first := content[0].(map[string]any)
	return first["text"].(string)
}

func TestComputeHistoryStats(t *testing.T) {
	closes := []float64{100, 110, 99}
	points, _ := (&fakeMarket{closes: map[string][]float64{"X": closes}}).History("X", 3)

	stats, err := computeHistoryStats(points)
	if err != nil {
		t.Fatalf("computeHistoryStats failed: %v", err)
	}

	if math.Abs(stats.TotalReturn-(-1.0)) > 1e-9 {
		t.Errorf("total return = %f, want -1.0", stats.TotalReturn)
	}
	if math.Abs(stats.BestDay-10.0) > 1e-9 {
		t.Errorf("best day = %f, want 10.0", stats.BestDay)
	}
	if math.Abs(stats.WorstDay-(-10.0)) > 1e-9 {
		t.Errorf("worst day = %f, want -10.0", stats.WorstDay)
	}

	// Daily returns are +0.10 and -0.10: mean 0, sample stdev 0.1*sqrt(2),
	// annualized by sqrt(252) and expressed in percent.
	wantVol := 0.1 * math.Sqrt2 * math.Sqrt(252) * 100
	if math.Abs(stats.Volatility-wantVol) > 1e-6 {
		t.Errorf("volatility = %f, want %f", stats.Volatility, wantVol)
	}
}

func TestComputeHistoryStatsInsufficientData(t *testing.T) {
	if _, err := computeHistoryStats(nil); err == nil {
		t.Error("nil history accepted")
	}
	one, _ := (&fakeMarket{closes: map[string][]float64{"X": {100}}}).History("X", 1)
	if _, err := computeHistoryStats(one); err == nil {
		t.Error("single bar accepted")
	}
}

func TestStockAnalysisPerSymbolFailuresInline(t *testing.T) {
	market := &fakeMarket{
		closes: map[string][]float64{"GOOD.NS": {100, 105, 110}},
		fail:   map[string]bool{"BAD.NS": true},
	}
	r := NewRegistry()
	if err := RegisterStockTools(r, market); err != nil {
		t.Fatalf("RegisterStockTools failed: %v", err)
	}
	def, _ := r.Get("stock_analysis")

	result, err := def.Handler(context.Background(), map[string]any{
		"symbols":       []any{"GOOD.NS", "BAD.NS"},
		"analysis_type": "historical",
		"period":        "1y",
	})
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	text := envelopeText(t, result)
	if !strings.Contains(text, "GOOD.NS") || !strings.Contains(text, "Total Return: +10.00%") {
		t.Errorf("good symbol missing from output: %q", text)
	}
	if !strings.Contains(text, "BAD.NS") || !strings.Contains(text, "provider down") {
		t.Errorf("failed symbol not reported inline: %q", text)
	}
}

func TestDetailedAnalysisIncludesValuationMetrics(t *testing.T) {
	market := &fakeMarket{
		closes: map[string][]float64{"AAPL": {180, 200, 190}},
		quotes: map[string]*dataflows.Quote{
			"AAPL": {
				Symbol:        "AAPL",
				CompanyName:   "Apple Inc.",
				Currency:      "USD",
				Price:         decimal.NewFromFloat(190),
				MarketCap:     2_900_000_000_000,
				TrailingPE:    29.5,
				ForwardPE:     26.1,
				PriceToBook:   45.2,
				DividendYield: 0.0055,
				EPS:           6.44,
			},
		},
	}
	text := detailedStockAnalysis(market, []string{"AAPL"})

	for _, want := range []string{
		"Valuation Metrics:",
		"Market Cap: 2.90T USD",
		"P/E (trailing): 29.50",
		"P/E (forward): 26.10",
		"P/B Ratio: 45.20",
		"EPS (trailing): 6.44",
		"Dividend Yield: 0.55%",
		"52W High: 200.00",
		"52W Low: 180.00",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("detailed output missing %q:\n%s", want, text)
		}
	}
}

func TestFormatMarketCap(t *testing.T) {
	cases := []struct {
		cap  int64
		want string
	}{
		{2_900_000_000_000, "2.90T"},
		{15_500_000_000, "15.50B"},
		{820_000_000, "820.00M"},
		{950_000, "950000"},
	}
	for _, c := range cases {
		if got := formatMarketCap(c.cap); got != c.want {
			t.Errorf("formatMarketCap(%d) = %q, want %q", c.cap, got, c.want)
		}
	}
}

func TestStockComparisonRanksbyReturn(t *testing.T) {
	market := &fakeMarket{closes: map[string][]float64{
		"UP.NS":   {100, 120},
		"DOWN.NS": {100, 90},
		"FLAT.NS": {100, 100},
	}}
	text := compareStocks(market, []string{"DOWN.NS", "FLAT.NS", "UP.NS"}, "1y")

	up := strings.Index(text, "1. UP.NS")
	flat := strings.Index(text, "2. FLAT.NS")
	down := strings.Index(text, "3. DOWN.NS")
	if up < 0 || flat < 0 || down < 0 || !(up < flat && flat < down) {
		t.Errorf("ranking order wrong:\n%s", text)
	}
	if !strings.Contains(text, "Best Performer: UP.NS") || !strings.Contains(text, "Worst Performer: DOWN.NS") {
		t.Errorf("insights missing:\n%s", text)
	}
}

func TestStockPortfolioWinRate(t *testing.T) {
	market := &fakeMarket{closes: map[string][]float64{
		"A.NS": {100, 110},
		"B.NS": {100, 95},
		"C.NS": {100, 101},
		"D.NS": {100, 80},
	}}
	text := analyzeStockPortfolio(market, []string{"A.NS", "B.NS", "C.NS", "D.NS"}, "1y")
	if !strings.Contains(text, "Win Rate: 2/4 (50.0%)") {
		t.Errorf("win rate missing:\n%s", text)
	}
	if !strings.Contains(text, "Top Performer: A.NS") {
		t.Errorf("top performer missing:\n%s", text)
	}
}
