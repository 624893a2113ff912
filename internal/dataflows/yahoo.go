package dataflows

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/equity"
	"github.com/shopspring/decimal"
)

// MarketClient fetches quotes and daily price history from Yahoo Finance.
type MarketClient struct {
	cache *CacheManager
}

// NewMarketClient creates a market data client caching under cacheDir.
// Quote lookups cache briefly, history for a full day.
func NewMarketClient(cacheDir string, cacheEnabled bool) *MarketClient {
	cache := NewCacheManager(filepath.Join(cacheDir, "market"), 24*time.Hour, cacheEnabled)
	return &MarketClient{cache: cache}
}

// GetQuote gets current quote data for a symbol
func (mc *MarketClient) GetQuote(symbol string) (*Quote, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	var result *Quote
	err := WithRetry(DefaultRetryConfig(), func() error {
		q, err := equity.Get(symbol)
		if err != nil {
			return fmt.Errorf("failed to get quote for %s: %w", symbol, err)
		}
		if q == nil {
			return fmt.Errorf("no quote data for %s", symbol)
		}

		result = &Quote{
			Symbol:        symbol,
			CompanyName:   q.ShortName,
			Exchange:      q.FullExchangeName,
			Currency:      q.CurrencyID,
			Price:         decimal.NewFromFloat(q.RegularMarketPrice),
			Open:          decimal.NewFromFloat(q.RegularMarketOpen),
			DayHigh:       decimal.NewFromFloat(q.RegularMarketDayHigh),
			DayLow:        decimal.NewFromFloat(q.RegularMarketDayLow),
			PreviousClose: decimal.NewFromFloat(q.RegularMarketPreviousClose),
			Change:        decimal.NewFromFloat(q.RegularMarketChange),
			ChangePercent: decimal.NewFromFloat(q.RegularMarketChangePercent),
			Volume:        int64(q.RegularMarketVolume),
			MarketState:   string(q.MarketState),
			MarketCap:     q.MarketCap,
			TrailingPE:    q.TrailingPE,
			ForwardPE:     q.ForwardPE,
			PriceToBook:   q.PriceToBook,
			DividendYield: q.TrailingAnnualDividendYield,
			EPS:           q.EpsTrailingTwelveMonths,
			FetchedAt:     time.Now(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// History gets daily bars for the trailing window of calendar days.
func (mc *MarketClient) History(symbol string, days int) ([]*PricePoint, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -days)
	return mc.HistoryRange(symbol, start, end)
}

// HistoryRange gets daily bars between start and end.
func (mc *MarketClient) HistoryRange(symbol string, start, end time.Time) ([]*PricePoint, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	cacheKey := map[string]interface{}{
		"symbol": symbol,
		"start":  start.Format("2006-01-02"),
		"end":    end.Format("2006-01-02"),
	}

	var cached []*PricePoint
	if mc.cache.Get("yahoo", "historical", cacheKey, &cached) {
		return cached, nil
	}

	var result []*PricePoint
	err := WithRetry(DefaultRetryConfig(), func() error {
		params := &chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: datetime.OneDay,
		}

		iter := chart.Get(params)

		result = make([]*PricePoint, 0)
		for iter.Next() {
			bar := iter.Bar()
			result = append(result, &PricePoint{
				Symbol:    symbol,
				Date:      time.Unix(int64(bar.Timestamp), 0),
				Open:      bar.Open,
				High:      bar.High,
				Low:       bar.Low,
				Close:     bar.Close,
				AdjClose:  bar.AdjClose,
				Volume:    int64(bar.Volume),
				FetchedAt: time.Now(),
			})
		}

		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to get historical data for %s: %w", symbol, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	mc.cache.Set("yahoo", "historical", cacheKey, result)

	return result, nil
}
