package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

// modelDraft mirrors the JSON objects the model is asked to return.
// Amounts may arrive as numbers or strings.
type modelDraft struct {
	Date          string          `json:"date"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
}

func buildPrompt(today core.Date) string {
	return "You extract personal finance transactions from the user's input.\n\n" +
		"Output STRICT JSON only: an array of objects with these fields:\n" +
		"- \"date\": string \"YYYY-MM-DD\" (today is " + today.String() + "; resolve relative dates against it)\n" +
		"- \"description\": short string\n" +
		"- \"category\": one or two words, e.g. \"Groceries\", \"Transport\", \"Salary\"\n" +
		"- \"amount\": number, positive for money spent and negative for money received\n" +
		"- \"payment_method\": string or empty\n\n" +
		"For a receipt, return one object for the whole receipt using its total.\n" +
		"If there is nothing to record return [].\n" +
		"Do NOT wrap the response in code fences. Output must begin with \"[\" and end with \"]\".\n"
}

// cleanModelJSON strips Markdown fences and any chatter around the array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

// decodeDrafts parses model output. Entries with a zero amount are
// dropped; an undated or badly dated entry gets today.
func decodeDrafts(raw string, today core.Date) ([]Draft, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return nil, ErrNoDrafts
	}
	if strings.HasPrefix(clean, "{") {
		clean = "[" + clean + "]"
	}

	var items []modelDraft
	if err := json.Unmarshal([]byte(clean), &items); err != nil {
		return nil, fmt.Errorf("%w: unmarshal model output: %v", ErrUpstream, err)
	}

	drafts := make([]Draft, 0, len(items))
	for _, it := range items {
		amount := core.MoneyFromDecimal(it.Amount)
		if amount.Cents == 0 {
			continue
		}
		date, err := core.ParseDate(it.Date)
		if err != nil || date.Validate() != nil {
			date = today
		}
		category := strings.TrimSpace(it.Category)
		if category == "" {
			category = "Uncategorized"
		}
		drafts = append(drafts, Draft{
			Date:          date,
			Description:   strings.TrimSpace(it.Description),
			Category:      category,
			Amount:        amount,
			PaymentMethod: strings.TrimSpace(it.PaymentMethod),
		})
	}
	if len(drafts) == 0 {
		return nil, ErrNoDrafts
	}
	return drafts, nil
}
