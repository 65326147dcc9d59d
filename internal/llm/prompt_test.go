package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcaldwell/expenseops/internal/config"
)

func TestBuildPrompt(t *testing.T) {
	categories := []config.Category{
		{Name: "Dining", Subcategories: []string{"Coffee", "Restaurants"}},
		{Name: "Income"},
	}
	txns := []TransactionInfo{
		{Merchant: "STARBUCKS", Description: "latte", Amount: "-8.45", Date: "2026-01-15"},
	}

	prompt := buildPrompt(txns, categories)

	assert.Contains(t, prompt, "- Dining: Coffee, Restaurants")
	assert.Contains(t, prompt, "- Income\n")
	assert.Contains(t, prompt, "STARBUCKS | latte | -8.45 | 2026-01-15")
	assert.Contains(t, prompt, "JSON array")
}

func TestParseResponseWithFencing(t *testing.T) {
	text := "Here are the categories:\n```json\n" +
		`[{"merchant": "STARBUCKS", "category": "Dining", "subcategory": "Coffee"}]` +
		"\n```\nLet me know if you need anything else."

	suggestions := parseResponse(text)
	require.Len(t, suggestions, 1)
	assert.Equal(t, Suggestion{Merchant: "STARBUCKS", Category: "Dining", Subcategory: "Coffee"}, suggestions[0])
}

func TestParseResponseSkipsMalformedElements(t *testing.T) {
	text := `[
		{"merchant": "A", "category": "Dining"},
		{"category": "Dining"},
		{"merchant": "B"}
	]`

	suggestions := parseResponse(text)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "A", suggestions[0].Merchant)
}

func TestParseResponseNoArray(t *testing.T) {
	assert.Empty(t, parseResponse("I could not categorize these transactions."))
	assert.Empty(t, parseResponse(""))
}
