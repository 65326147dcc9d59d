// Package pipeline orchestrates one monthly processing run: parse, filter,
// exclude, dedup, transfer detection, enrichment splits, source tagging,
// categorization, and recurring detection, in that order. Stages accumulate
// warnings and errors into the result; a run always completes.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"k8s.io/klog"

	"github.com/bcaldwell/expenseops/internal/categorizer"
	"github.com/bcaldwell/expenseops/internal/config"
	"github.com/bcaldwell/expenseops/internal/enrichment"
	"github.com/bcaldwell/expenseops/internal/ledger"
	"github.com/bcaldwell/expenseops/internal/llm"
	"github.com/bcaldwell/expenseops/internal/parsers"
	"github.com/bcaldwell/expenseops/internal/recurring"
)

// Split amounts must sum to the parent amount within a cent.
var splitTolerance = decimal.NewFromFloat(0.01)

// retailerTags maps merchant-text variants to the canonical retailer tag.
var retailerTags = []struct {
	variants []string
	tag      string
}{
	{variants: []string{"AMAZON", "AMZN", "AMZ"}, tag: "Amazon"},
	{variants: []string{"TARGET"}, tag: "Target"},
}

// Run executes the full pipeline for one month and returns everything the
// stages produced. It never returns an error: failures are accumulated in
// the result so the caller can report them all at once.
func Run(ctx context.Context, month string, cfg *config.Config, categories []config.Category, rules []categorizer.Rule, root string, adapter llm.Adapter) ledger.PipelineResult {
	result := ledger.PipelineResult{}

	merge := func(stage ledger.StageResult) []*ledger.Transaction {
		result.Warnings = append(result.Warnings, stage.Warnings...)
		result.Errors = append(result.Errors, stage.Errors...)
		return stage.Transactions
	}

	txns := merge(parseStage(cfg.Accounts, root))
	klog.Infof("Parsed %d transactions from %d account(s)", len(txns), len(cfg.Accounts))

	txns = merge(filterMonthStage(txns, month))
	txns = merge(excludeStage(txns, cfg.ExcludePatterns))
	txns = merge(dedupStage(txns))
	txns = merge(transferStage(txns, cfg))
	txns = merge(enrichStage(txns, resolvePath(root, cfg.EnrichmentCacheDir)))
	txns = tagSourcesStage(txns)
	txns = merge(categorizer.Categorize(ctx, txns, rules, categories, adapter))
	txns = merge(recurringStage(txns, resolvePath(root, cfg.OutputDir)))

	result.Transactions = txns
	return result
}

func resolvePath(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func parseStage(accounts []config.Account, root string) ledger.StageResult {
	result := ledger.StageResult{}

	for _, account := range accounts {
		parse, err := parsers.Get(account.Parser)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("account %s: %v", account.Name, err))
			continue
		}

		dir := resolvePath(root, account.InputDir)
		files, err := discoverCSVs(dir)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("account %s: %v", account.Name, err))
			continue
		}
		if len(files) == 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("account %s: no CSV files in %s", account.Name, dir))
			continue
		}

		for _, path := range files {
			fileResult := parse(path, account.Institution, account.Name)
			result.Transactions = append(result.Transactions, fileResult.Transactions...)
			result.Warnings = append(result.Warnings, fileResult.Warnings...)
			result.Errors = append(result.Errors, fileResult.Errors...)
		}
	}

	return result
}

// discoverCSVs lists candidate files in dir: non-recursive, case-insensitive
// .csv extension, skipping hidden/temporary names. Sorted for deterministic
// row ordinals across runs.
func discoverCSVs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~") || strings.HasPrefix(name, "_") {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func filterMonthStage(txns []*ledger.Transaction, month string) ledger.StageResult {
	result := ledger.StageResult{}

	first, last, err := ledger.MonthRange(month)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	for _, txn := range txns {
		if txn.Date.Before(first) || txn.Date.After(last) {
			continue
		}
		result.Transactions = append(result.Transactions, txn)
	}

	klog.Infof("%d of %d transactions fall within %s", len(result.Transactions), len(txns), month)
	return result
}

func excludeStage(txns []*ledger.Transaction, patterns []string) ledger.StageResult {
	result := ledger.StageResult{}
	if len(patterns) == 0 {
		result.Transactions = txns
		return result
	}

	dropped := 0
	for _, txn := range txns {
		if matchesAnyPattern(txn.Merchant, patterns) {
			dropped++
			continue
		}
		result.Transactions = append(result.Transactions, txn)
	}
	if dropped > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("excluded %d transaction(s) matching exclude patterns", dropped))
	}
	return result
}

func matchesAnyPattern(merchant string, patterns []string) bool {
	m := strings.ToUpper(merchant)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if strings.Contains(m, strings.ToUpper(pattern)) {
			return true
		}
	}
	return false
}

func dedupStage(txns []*ledger.Transaction) ledger.StageResult {
	result := ledger.StageResult{}

	seen := map[string]bool{}
	dropped := 0
	for _, txn := range txns {
		if seen[txn.ID] {
			dropped++
			continue
		}
		seen[txn.ID] = true
		result.Transactions = append(result.Transactions, txn)
	}
	if dropped > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("removed %d duplicate transaction(s)", dropped))
	}
	return result
}

// transferStage pairs checking-account payment debits with credit-card
// credits of the same absolute amount within the date window. Both sides of
// a pair are flagged; each credit satisfies at most one debit.
func transferStage(txns []*ledger.Transaction, cfg *config.Config) ledger.StageResult {
	result := ledger.StageResult{Transactions: txns}

	accountTypes := map[string]string{}
	for _, account := range cfg.Accounts {
		accountTypes[account.Name] = account.AccountType
	}

	var debits, credits []*ledger.Transaction
	for _, txn := range txns {
		switch accountTypes[txn.Account] {
		case "checking":
			if txn.Amount.IsNegative() && containsTransferKeyword(txn, cfg.TransferKeywords) {
				debits = append(debits, txn)
			}
		case "credit_card":
			if txn.Amount.IsPositive() {
				credits = append(credits, txn)
			}
		}
	}

	matched := 0
	usedCredits := map[string]bool{}
	for _, debit := range debits {
		for _, credit := range credits {
			if usedCredits[credit.ID] {
				continue
			}
			if !debit.Amount.Abs().Equal(credit.Amount.Abs()) {
				continue
			}
			if !withinDays(debit.Date, credit.Date, cfg.TransferDateWindow) {
				continue
			}
			debit.IsTransfer = true
			credit.IsTransfer = true
			usedCredits[credit.ID] = true
			matched++
			break
		}
	}

	if matched > 0 {
		klog.Infof("Marked %d transfer pair(s)", matched)
	}
	return result
}

func containsTransferKeyword(txn *ledger.Transaction, keywords []string) bool {
	merchant := strings.ToUpper(txn.Merchant)
	description := strings.ToUpper(txn.Description)
	for _, keyword := range keywords {
		k := strings.ToUpper(keyword)
		if strings.Contains(merchant, k) || strings.Contains(description, k) {
			return true
		}
	}
	return false
}

func withinDays(a, b time.Time, window int) bool {
	diff := a.Unix()/86400 - b.Unix()/86400
	if diff < 0 {
		diff = -diff
	}
	return diff <= int64(window)
}

// enrichStage replaces transactions that have a cache artifact with their
// itemized splits. A cache whose items do not sum to the parent amount
// within tolerance is reported once and ignored.
func enrichStage(txns []*ledger.Transaction, cacheDir string) ledger.StageResult {
	result := ledger.StageResult{}

	for _, txn := range txns {
		cache, err := enrichment.ReadCache(filepath.Join(cacheDir, txn.ID+".json"))
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("enrichment cache for %s: %v", txn.ID, err))
			result.Transactions = append(result.Transactions, txn)
			continue
		}
		if cache == nil || len(cache.Items) == 0 {
			result.Transactions = append(result.Transactions, txn)
			continue
		}

		splits, err := buildSplits(txn, cache)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("enrichment cache for %s: %v", txn.ID, err))
			result.Transactions = append(result.Transactions, txn)
			continue
		}
		result.Transactions = append(result.Transactions, splits...)
	}

	return result
}

func buildSplits(parent *ledger.Transaction, cache *enrichment.CacheData) ([]*ledger.Transaction, error) {
	amounts := make([]decimal.Decimal, 0, len(cache.Items))
	total := decimal.Zero
	for _, item := range cache.Items {
		amount, err := decimal.NewFromString(item.Amount)
		if err != nil {
			return nil, fmt.Errorf("invalid item amount %q: %w", item.Amount, err)
		}
		amounts = append(amounts, amount)
		total = total.Add(amount)
	}

	if total.Sub(parent.Amount).Abs().GreaterThan(splitTolerance) {
		return nil, fmt.Errorf("items sum to %s but transaction amount is %s, keeping original", total, parent.Amount)
	}

	tag := retailerTag(parent.Merchant)
	if tag == "" {
		tag = retailerTag(cache.Source)
	}

	splits := make([]*ledger.Transaction, 0, len(cache.Items))
	for i, item := range cache.Items {
		merchant := item.Merchant
		if tag != "" {
			merchant = tag
		}
		description := item.Description
		if description == "" {
			description = parent.Description
		}
		splits = append(splits, &ledger.Transaction{
			ID:          fmt.Sprintf("%s-%d", parent.ID, i+1),
			Date:        parent.Date,
			Merchant:    merchant,
			Description: description,
			Amount:      amounts[i],
			Institution: parent.Institution,
			Account:     parent.Account,
			Category:    ledger.Uncategorized,
			IsTransfer:  parent.IsTransfer,
			IsReturn:    amounts[i].IsPositive(),
			SplitFrom:   parent.ID,
			Source:      tag,
			SourceFile:  parent.SourceFile,
		})
	}
	return splits, nil
}

func retailerTag(text string) string {
	t := strings.ToUpper(text)
	for _, retailer := range retailerTags {
		for _, variant := range retailer.variants {
			if strings.Contains(t, variant) {
				return retailer.tag
			}
		}
	}
	return ""
}

// tagSourcesStage fills in the retailer tag for untagged transactions.
// Enrichment-assigned tags are left alone.
func tagSourcesStage(txns []*ledger.Transaction) []*ledger.Transaction {
	for _, txn := range txns {
		if txn.Source != "" {
			continue
		}
		txn.Source = retailerTag(txn.Merchant)
	}
	return txns
}

// recurringStage flags merchants the detector reports as recurring.
// Explicit rule flags set during categorization are never overridden; a
// detector failure downgrades to a warning.
func recurringStage(txns []*ledger.Transaction, outputDir string) ledger.StageResult {
	result := ledger.StageResult{Transactions: txns}

	detected, err := recurring.Detect(outputDir)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("recurring detection failed: %v", err))
		return result
	}

	flagged := 0
	for _, txn := range txns {
		if txn.IsRecurring {
			continue
		}
		if detected[strings.ToUpper(strings.TrimSpace(txn.Merchant))] {
			txn.IsRecurring = true
			flagged++
		}
	}

	if flagged > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("flagged %d transaction(s) as recurring from history", flagged))
	}
	return result
}
