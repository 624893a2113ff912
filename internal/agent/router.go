package agent

import "strings"

// Router classifies a user message into a workflow. The default keyword
// router can be swapped for a model-based classifier.
type Router interface {
	Route(message, hint string) WorkflowType
}

// KeywordRouter routes on message keywords with an explicit hint override.
type KeywordRouter struct{}

func (KeywordRouter) Route(message, hint string) WorkflowType {
	return DetectWorkflow(message, hint)
}

var (
	orchestratorKeywords = []string{
		"analyze", "analyse", "compare", "recommend", "recommendation",
		"strategy", "optimize", "optimise", "rebalance", "should i",
	}
	chainKeywords = []string{
		"current", "latest", "news", "trend", "trends", "today", "recently",
	}
	parallelKeywords = []string{
		"stock price", "stocks", "market", "quote", "quotes", "nav",
	}
	simpleKeywords = []string{
		"net worth", "credit", "epf", "portfolio", "transactions", "balance",
	}
)

// DetectWorkflow picks a workflow from the message text. An explicit hint
// wins over keyword routing; unknown hints fall through to keywords.
func DetectWorkflow(message, hint string) WorkflowType {
	switch WorkflowType(strings.TrimSpace(strings.ToLower(hint))) {
	case WorkflowSimple:
		return WorkflowSimple
	case WorkflowParallel:
		return WorkflowParallel
	case WorkflowChain:
		return WorkflowChain
	case WorkflowOrchestrator:
		return WorkflowOrchestrator
	}

	text := strings.ToLower(message)

	if containsAny(text, orchestratorKeywords) {
		return WorkflowOrchestrator
	}
	if containsAny(text, chainKeywords) {
		return WorkflowChain
	}
	if containsAny(text, parallelKeywords) || countSymbols(text) > 1 {
		return WorkflowParallel
	}
	if containsAny(text, simpleKeywords) {
		return WorkflowSimple
	}
	return WorkflowSimple
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// countSymbols counts ticker-looking tokens so that questions naming
// several instruments route to the parallel workflow.
func countSymbols(text string) int {
	n := 0
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ','
	}) {
		if strings.HasSuffix(tok, ".ns") || strings.HasSuffix(tok, ".bo") {
			n++
		}
	}
	return n
}
