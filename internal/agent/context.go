package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/finsage/finsage/internal/mcp"
	"github.com/finsage/finsage/internal/session"
)

const systemPreamble = `You are a personal financial assistant for Indian users. You help with net worth,
credit reports, EPF balances, mutual fund transactions, stock analysis and
general financial questions.

Guidelines:
- Ground answers in the user's own financial data when it is available below.
- Amounts are in INR unless stated otherwise.
- Use the available tools for live market data, fund NAVs and web search.
- Be direct and practical; avoid generic disclaimers.`

// buildSystemMessage renders the session's cached financial data into the
// system prompt. It is rebuilt for every workflow so a refetch during the
// conversation is visible on the next turn.
func buildSystemMessage(sess *session.Session) *schema.Message {
	var b strings.Builder
	b.WriteString(systemPreamble)

	data := sess.FinancialData()
	if len(data) == 0 {
		b.WriteString("\n\nNo financial data is loaded for this user yet. Use the fetch tools when the question needs it.")
		return schema.SystemMessage(b.String())
	}

	b.WriteString("\n\nUser financial data:\n")
	for _, name := range sortedKeys(data) {
		b.WriteString(fmt.Sprintf("\n## %s\n%s\n", name, renderToolResult(data[name])))
	}
	return schema.SystemMessage(b.String())
}

// contextSignature fingerprints the loaded financial datasets, keys and
// rendered content both, so a workflow can report whether its tool calls
// changed the context even when a refetch overwrites an existing dataset.
func contextSignature(sess *session.Session) string {
	data := sess.FinancialData()
	h := sha256.New()
	for _, name := range sortedKeys(data) {
		io.WriteString(h, name)
		h.Write([]byte{0})
		io.WriteString(h, renderToolResult(data[name]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sortedKeys(m map[string]mcp.Result) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// renderToolResult extracts the text content from a tool envelope,
// falling back to compact JSON for unexpected shapes.
func renderToolResult(result map[string]any) string {
	if content, ok := result["content"].([]any); ok {
		var parts []string
		for _, item := range content {
			if m, ok := item.(map[string]any); ok {
				if text, ok := m["text"].(string); ok && text != "" {
					parts = append(parts, text)
				}
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n")
		}
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(raw)
}

// historyMessages converts the session's rolling window into model input.
func historyMessages(sess *session.Session) []*schema.Message {
	turns := sess.Turns()
	msgs := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case "assistant":
			msgs = append(msgs, schema.AssistantMessage(t.Content, nil))
		default:
			msgs = append(msgs, schema.UserMessage(t.Content))
		}
	}
	return msgs
}
