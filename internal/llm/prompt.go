package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"k8s.io/klog"

	"github.com/bcaldwell/expenseops/internal/config"
)

// buildPrompt renders the taxonomy and a pipe-delimited transaction listing
// into the single categorization prompt.
func buildPrompt(txns []TransactionInfo, categories []config.Category) string {
	var taxonomy strings.Builder
	for _, cat := range categories {
		if len(cat.Subcategories) > 0 {
			taxonomy.WriteString(fmt.Sprintf("- %s: %s\n", cat.Name, strings.Join(cat.Subcategories, ", ")))
		} else {
			taxonomy.WriteString(fmt.Sprintf("- %s\n", cat.Name))
		}
	}

	var listing strings.Builder
	for _, txn := range txns {
		listing.WriteString(fmt.Sprintf("%s | %s | %s | %s\n",
			txn.Merchant, txn.Description, txn.Amount, txn.Date))
	}

	return fmt.Sprintf(`You are categorizing household expenses. For each transaction below,
assign the most appropriate category and subcategory from the provided taxonomy.

## Category Taxonomy
%s
## Transactions to Categorize
%s
## Response Format
Return a JSON array. Each element:
{"merchant": "...", "category": "...", "subcategory": "..."}

Use only categories and subcategories from the taxonomy above.
If no subcategory applies, use an empty string for subcategory.`,
		taxonomy.String(), listing.String())
}

// parseResponse extracts the JSON array from the response text, tolerating
// surrounding prose and markdown fencing. Malformed elements are skipped;
// any parse failure yields an empty slice.
func parseResponse(text string) []Suggestion {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end == -1 || end <= start {
		klog.Warningf("LLM response does not contain a JSON array")
		return nil
	}

	var raw []map[string]interface{}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		klog.Warningf("Failed to parse JSON from LLM response: %v", err)
		return nil
	}

	var suggestions []Suggestion
	for _, item := range raw {
		merchant, mok := item["merchant"].(string)
		category, cok := item["category"].(string)
		if !mok || !cok {
			klog.Warningf("Skipping LLM suggestion missing required keys: %v", item)
			continue
		}
		subcategory, _ := item["subcategory"].(string)
		suggestions = append(suggestions, Suggestion{
			Merchant:    merchant,
			Category:    category,
			Subcategory: subcategory,
		})
	}

	return suggestions
}
