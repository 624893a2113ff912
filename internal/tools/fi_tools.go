package tools

import (
	"context"
)

// FinancialFetcher retrieves one of the fixed remote financial datasets for
// the current session, consulting the session cache before the remote
// gateway. The session layer provides the implementation.
type FinancialFetcher interface {
	FetchFinancialData(ctx context.Context, toolName string) (map[string]any, error)
}

// The four remote financial tools. They take no parameters; the remote
// service scopes them by session.
const (
	ToolFetchNetWorth       = "fetch_net_worth"
	ToolFetchCreditReport   = "fetch_credit_report"
	ToolFetchEPFDetails     = "fetch_epf_details"
	ToolFetchMFTransactions = "fetch_mf_transactions"
)

// FinancialToolNames lists the fixed remote tools in registration order.
var FinancialToolNames = []string{
	ToolFetchNetWorth,
	ToolFetchCreditReport,
	ToolFetchEPFDetails,
	ToolFetchMFTransactions,
}

// IsFinancialTool reports whether name is one of the four remote tools.
func IsFinancialTool(name string) bool {
	for _, n := range FinancialToolNames {
		if n == name {
			return true
		}
	}
	return false
}

var financialToolDescriptions = map[string]string{
	ToolFetchNetWorth:       "Fetch the user's comprehensive net worth including all connected accounts, assets and liabilities",
	ToolFetchCreditReport:   "Fetch the user's credit report with score, active loans and credit card utilization",
	ToolFetchEPFDetails:     "Fetch the user's EPF (Employee Provident Fund) account details and balance",
	ToolFetchMFTransactions: "Fetch the user's mutual fund transaction history across all holdings",
}

// RegisterFinancialTools wires the four remote financial tools against a
// session-scoped fetcher.
func RegisterFinancialTools(r *Registry, fetcher FinancialFetcher) error {
	for _, name := range FinancialToolNames {
		name := name
		def := &Definition{
			Name:        name,
			Description: financialToolDescriptions[name],
			Category:    CategoryFinancialData,
			Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				return fetcher.FetchFinancialData(ctx, name)
			},
		}
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}
