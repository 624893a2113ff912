package tools

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/finsage/finsage/internal/dataflows"
)

// fakeFunds serves canned schemes keyed by code.
type fakeFunds struct {
	funds map[int]*dataflows.Fund
	refs  []dataflows.FundRef
}

func (f *fakeFunds) SearchFunds(query string, limit int) ([]dataflows.FundRef, error) {
	query = strings.ToLower(query)
	var out []dataflows.FundRef
	for _, ref := range f.refs {
		if strings.Contains(strings.ToLower(ref.SchemeName), query) {
			out = append(out, ref)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeFunds) GetFund(code int) (*dataflows.Fund, error) {
	fund, ok := f.funds[code]
	if !ok {
		return nil, fmt.Errorf("scheme %d not found", code)
	}
	return fund, nil
}

func navFund(code int, name string, navs ...string) *dataflows.Fund {
	fund := &dataflows.Fund{
		Meta: dataflows.FundMeta{SchemeCode: code, SchemeName: name, SchemeCategory: "Equity"},
	}
	for i, nav := range navs {
		fund.Data = append(fund.Data, dataflows.NAVEntry{
			Date: fmt.Sprintf("%02d-08-2026", 30-i),
			NAV:  nav,
		})
	}
	return fund
}

func TestComputeFundStatsPeriodReturn(t *testing.T) {
	// Latest NAV 100, oldest in window 110: (100-110)/110*100.
	fund := navFund(1, "Test Fund", "100", "105", "110")
	stats, err := computeFundStats(fund, 365)
	if err != nil {
		t.Fatalf("computeFundStats failed: %v", err)
	}
	want := (100.0 - 110.0) / 110.0 * 100
	if math.Abs(stats.PeriodReturn-want) > 1e-9 {
		t.Errorf("period return = %f, want %f", stats.PeriodReturn, want)
	}
	if stats.PeriodHigh != 110 || stats.PeriodLow != 100 {
		t.Errorf("high/low = %f/%f", stats.PeriodHigh, stats.PeriodLow)
	}
}

func TestComputeFundStatsOneDayReturn(t *testing.T) {
	// period_days=1 compares the latest NAV against the one a day back.
	fund := navFund(1, "Test Fund", "100", "110")
	stats, err := computeFundStats(fund, 1)
	if err != nil {
		t.Fatalf("computeFundStats failed: %v", err)
	}
	want := (100.0 - 110.0) / 110.0 * 100
	if math.Abs(stats.PeriodReturn-want) > 1e-9 {
		t.Errorf("period return = %f, want %f", stats.PeriodReturn, want)
	}
}

func TestComputeFundStatsWindowsByPeriodDays(t *testing.T) {
	fund := navFund(1, "Test Fund", "120", "110", "100", "50", "25")
	stats, err := computeFundStats(fund, 3)
	if err != nil {
		t.Fatalf("computeFundStats failed: %v", err)
	}
	// The window reaches back 3 entries from the latest, so it ends at
	// the 50 entry and excludes the 25 one.
	want := (120.0 - 50.0) / 50.0 * 100
	if math.Abs(stats.PeriodReturn-want) > 1e-9 {
		t.Errorf("period return = %f, want %f", stats.PeriodReturn, want)
	}
	if stats.PeriodLow != 50 {
		t.Errorf("period low = %f, want 50", stats.PeriodLow)
	}
}

func TestComputeFundStatsNoData(t *testing.T) {
	if _, err := computeFundStats(&dataflows.Fund{}, 365); err == nil {
		t.Error("empty fund accepted")
	}
}

func newFundRegistry(t *testing.T, provider FundDataProvider) *Registry {
	t.Helper()
	r := NewRegistry()
	if err := RegisterFundTools(r, provider); err != nil {
		t.Fatalf("RegisterFundTools failed: %v", err)
	}
	return r
}

func TestMutualFundCompareRequiresTwoCodes(t *testing.T) {
	r := newFundRegistry(t, &fakeFunds{})
	def, _ := r.Get("mutual_fund_analysis")

	result, err := def.Handler(context.Background(), map[string]any{
		"action":     "compare",
		"fund_codes": []any{float64(120503)},
	})
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if _, hasErr := result["error"]; !hasErr {
		t.Fatalf("expected error envelope, got %v", result)
	}
}

func TestMutualFundCompareRanks(t *testing.T) {
	provider := &fakeFunds{funds: map[int]*dataflows.Fund{
		1: navFund(1, "Winner Fund", "120", "100"),
		2: navFund(2, "Loser Fund", "90", "100"),
	}}
	r := newFundRegistry(t, provider)
	def, _ := r.Get("mutual_fund_analysis")

	result, err := def.Handler(context.Background(), map[string]any{
		"action":     "compare",
		"fund_codes": []any{"1", "2"},
	})
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	text := envelopeText(t, result)
	if !strings.Contains(text, "1. Winner Fund") {
		t.Errorf("winner not ranked first:\n%s", text)
	}
	if !strings.Contains(text, "Worst Performer: Loser Fund") {
		t.Errorf("loser insight missing:\n%s", text)
	}
}

func TestMutualFundDegradesPerCode(t *testing.T) {
	provider := &fakeFunds{funds: map[int]*dataflows.Fund{
		1: navFund(1, "Good Fund", "105", "100"),
	}}
	r := newFundRegistry(t, provider)
	def, _ := r.Get("mutual_fund_analysis")

	result, err := def.Handler(context.Background(), map[string]any{
		"action":     "get_nav",
		"fund_codes": []any{float64(1), float64(999)},
	})
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	text := envelopeText(t, result)
	if !strings.Contains(text, "Good Fund") {
		t.Errorf("good fund missing:\n%s", text)
	}
	if !strings.Contains(text, "Fund 999") || !strings.Contains(text, "not found") {
		t.Errorf("failed code not reported inline:\n%s", text)
	}
}

func TestMutualFundSearchRequiresTerm(t *testing.T) {
	r := newFundRegistry(t, &fakeFunds{})
	def, _ := r.Get("mutual_fund_analysis")
	result, _ := def.Handler(context.Background(), map[string]any{"action": "search"})
	if _, hasErr := result["error"]; !hasErr {
		t.Fatalf("expected error envelope, got %v", result)
	}
}

func TestMutualFundInvalidAction(t *testing.T) {
	r := newFundRegistry(t, &fakeFunds{})
	def, _ := r.Get("mutual_fund_analysis")
	result, _ := def.Handler(context.Background(), map[string]any{"action": "liquidate"})
	msg, _ := result["error"].(string)
	if !strings.Contains(msg, "invalid action") {
		t.Fatalf("unexpected result: %v", result)
	}
}
