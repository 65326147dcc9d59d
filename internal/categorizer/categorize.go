package categorizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/bcaldwell/expenseops/internal/config"
	"github.com/bcaldwell/expenseops/internal/ledger"
	"github.com/bcaldwell/expenseops/internal/llm"
)

// Categorize runs the two-tier categorization pass over transactions still
// in the Uncategorized state.
//
// Tier 1 applies the rule matcher. A generic match (no subcategory) on a
// transaction that has a description is remembered as a fallback and the
// transaction is deferred to the LLM, which may produce something more
// specific. Tier 2 sends all remaining transactions to the adapter in one
// batch; adapter failures degrade to zero suggestions and never abort the
// run. Deferred transactions the LLM could not improve get their remembered
// generic fallback.
func Categorize(ctx context.Context, txns []*ledger.Transaction, rules []Rule, categories []config.Category, adapter llm.Adapter) ledger.StageResult {
	result := ledger.StageResult{Transactions: txns}

	var uncategorized []*ledger.Transaction
	genericFallbacks := map[string]*Rule{}

	for _, txn := range txns {
		if txn.Category != ledger.Uncategorized {
			continue
		}
		rule := MatchWithDescription(txn.Merchant, txn.Description, rules)
		if rule == nil {
			uncategorized = append(uncategorized, txn)
			continue
		}
		if isGeneric(rule) && txn.Description != "" {
			genericFallbacks[txn.ID] = rule
			uncategorized = append(uncategorized, txn)
			continue
		}
		applyRule(txn, rule)
	}

	if len(uncategorized) == 0 {
		return result
	}

	if !adapter.Enabled() {
		remaining := 0
		for _, txn := range uncategorized {
			if fallback, ok := genericFallbacks[txn.ID]; ok {
				applyRule(txn, fallback)
			} else {
				remaining++
			}
		}
		if remaining > 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("LLM unavailable: %d transaction(s) left uncategorized", remaining))
		}
		return result
	}

	batch := make([]llm.TransactionInfo, 0, len(uncategorized))
	for _, txn := range uncategorized {
		batch = append(batch, llm.TransactionInfo{
			Merchant:    txn.Merchant,
			Description: txn.Description,
			Amount:      txn.Amount.String(),
			Date:        txn.Date.Format("2006-01-02"),
		})
	}

	suggestions, err := adapter.CategorizeBatch(ctx, batch, categories)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("LLM categorization failed: %v", err))
		suggestions = nil
	}

	if len(suggestions) > 0 {
		valid, rejections := filterSuggestions(suggestions, categories)
		result.Warnings = append(result.Warnings, rejections...)

		byMerchant := map[string]llm.Suggestion{}
		for _, s := range valid {
			if key := strings.ToUpper(s.Merchant); key != "" {
				byMerchant[key] = s
			}
		}

		applied := 0
		for _, txn := range uncategorized {
			s, ok := byMerchant[strings.ToUpper(txn.Merchant)]
			if !ok || s.Category == "" {
				continue
			}
			txn.Category = s.Category
			txn.Subcategory = s.Subcategory
			applied++
		}

		if unapplied := len(uncategorized) - applied; unapplied > 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("LLM: %d transaction(s) could not be parsed from response", unapplied))
		}
	}

	for _, txn := range uncategorized {
		if txn.Category != ledger.Uncategorized {
			continue
		}
		if fallback, ok := genericFallbacks[txn.ID]; ok {
			applyRule(txn, fallback)
		}
	}

	return result
}

func applyRule(txn *ledger.Transaction, rule *Rule) {
	txn.Category = rule.Category
	txn.Subcategory = rule.Subcategory
	txn.IsRecurring = rule.Recurring
}

// filterSuggestions drops suggestions naming categories or subcategories
// absent from the taxonomy, reporting each rejection.
func filterSuggestions(suggestions []llm.Suggestion, categories []config.Category) ([]llm.Suggestion, []string) {
	subsByName := make(map[string]map[string]bool, len(categories))
	for _, cat := range categories {
		subs := make(map[string]bool, len(cat.Subcategories))
		for _, s := range cat.Subcategories {
			subs[s] = true
		}
		subsByName[cat.Name] = subs
	}

	var valid []llm.Suggestion
	var rejections []string

	for _, s := range suggestions {
		subs, ok := subsByName[s.Category]
		if !ok {
			rejections = append(rejections,
				fmt.Sprintf("LLM suggestion for %q rejected: unknown category %q", s.Merchant, s.Category))
			continue
		}
		if s.Subcategory != "" && !subs[s.Subcategory] {
			rejections = append(rejections,
				fmt.Sprintf("LLM suggestion for %q rejected: unknown subcategory %q for category %q",
					s.Merchant, s.Subcategory, s.Category))
			continue
		}
		valid = append(valid, s)
	}

	return valid, rejections
}
