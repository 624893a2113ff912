package dataflows

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is a single daily bar of market data for one symbol.
type PricePoint struct {
	Symbol    string          `json:"symbol"`
	Date      time.Time       `json:"date"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	AdjClose  decimal.Decimal `json:"adj_close"`
	Volume    int64           `json:"volume"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Quote is a current-price snapshot for one symbol.
type Quote struct {
	Symbol        string          `json:"symbol"`
	CompanyName   string          `json:"company_name"`
	Exchange      string          `json:"exchange"`
	Currency      string          `json:"currency"`
	Price         decimal.Decimal `json:"price"`
	Open          decimal.Decimal `json:"open"`
	DayHigh       decimal.Decimal `json:"day_high"`
	DayLow        decimal.Decimal `json:"day_low"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        int64           `json:"volume"`
	MarketState   string          `json:"market_state"`
	MarketCap     int64           `json:"market_cap"`
	TrailingPE    float64         `json:"trailing_pe"`
	ForwardPE     float64         `json:"forward_pe"`
	PriceToBook   float64         `json:"price_to_book"`
	DividendYield float64         `json:"dividend_yield"`
	EPS           float64         `json:"eps"`
	FetchedAt     time.Time       `json:"fetched_at"`
}

// FundRef identifies a mutual fund scheme in the public fund registry.
type FundRef struct {
	SchemeCode int    `json:"schemeCode"`
	SchemeName string `json:"schemeName"`
}

// NAVEntry is a single dated net-asset-value record. Registry responses
// list entries newest first.
type NAVEntry struct {
	Date string `json:"date"`
	NAV  string `json:"nav"`
}

// FundMeta describes a fund scheme.
type FundMeta struct {
	FundHouse      string `json:"fund_house"`
	SchemeType     string `json:"scheme_type"`
	SchemeCategory string `json:"scheme_category"`
	SchemeCode     int    `json:"scheme_code"`
	SchemeName     string `json:"scheme_name"`
}

// Fund is a fund scheme with its NAV history.
type Fund struct {
	Meta FundMeta   `json:"meta"`
	Data []NAVEntry `json:"data"`
}
