// Package export writes the monthly CSV and prints the run summary.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"k8s.io/klog"

	"github.com/bcaldwell/expenseops/internal/ledger"
)

var header = []string{
	"transaction_id", "date", "month", "merchant", "description", "amount",
	"institution", "account", "category", "subcategory",
	"is_return", "is_recurring", "split_from",
}

// Write writes the month's export file, overwriting any previous export for
// the same month. Transfers are excluded; rows are sorted by date, then
// institution, then amount ascending.
func Write(txns []*ledger.Transaction, outputDir, month string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	rows := make([]*ledger.Transaction, 0, len(txns))
	for _, txn := range txns {
		if txn.IsTransfer {
			continue
		}
		rows = append(rows, txn)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		if rows[i].Institution != rows[j].Institution {
			return rows[i].Institution < rows[j].Institution
		}
		return rows[i].Amount.Cmp(rows[j].Amount) < 0
	})

	path := filepath.Join(outputDir, month+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		return "", fmt.Errorf("failed to write header: %w", err)
	}

	for _, txn := range rows {
		record := []string{
			txn.ID,
			txn.Date.Format("2006-01-02"),
			month,
			txn.Merchant,
			txn.Description,
			txn.Amount.String(),
			txn.Institution,
			txn.Account,
			txn.Category,
			txn.Subcategory,
			strconv.FormatBool(txn.IsReturn),
			strconv.FormatBool(txn.IsRecurring),
			txn.SplitFrom,
		}
		if err := writer.Write(record); err != nil {
			return "", fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to flush %s: %w", path, err)
	}

	klog.Infof("Wrote %d transactions to %s", len(rows), path)
	return path, nil
}

// PrintSummary prints the human-readable run report to stdout: per-source
// counts, transfer exclusions, enrichment splits, categorization coverage,
// the largest uncategorized merchants, and spending by category, followed
// by every accumulated warning and error.
func PrintSummary(result ledger.PipelineResult, month string) {
	fmt.Printf("\n=== %s ===\n", month)

	byInstitution := map[string]int{}
	transfers := 0
	splits := 0
	categorized := 0
	total := 0

	uncategorizedCount := map[string]int{}
	uncategorizedTotal := map[string]decimal.Decimal{}
	categoryTotal := map[string]decimal.Decimal{}

	for _, txn := range result.Transactions {
		byInstitution[txn.Institution]++
		if txn.IsTransfer {
			transfers++
			continue
		}

		total++
		if txn.SplitFrom != "" {
			splits++
		}

		if txn.Category != ledger.Uncategorized && txn.Category != "" {
			categorized++
			if txn.Amount.IsNegative() {
				categoryTotal[txn.Category] = categoryTotal[txn.Category].Add(txn.Amount)
			}
		} else {
			merchant := strings.ToUpper(txn.Merchant)
			uncategorizedCount[merchant]++
			uncategorizedTotal[merchant] = uncategorizedTotal[merchant].Add(txn.Amount)
		}
	}

	fmt.Println("\nSources:")
	for _, institution := range sortedKeys(byInstitution) {
		fmt.Printf("  %-20s %d transactions\n", institution, byInstitution[institution])
	}

	fmt.Printf("\nTotal: %d transactions (%d transfers excluded, %d from enrichment splits)\n",
		total, transfers, splits)

	if total > 0 {
		pct := float64(categorized) / float64(total) * 100
		fmt.Printf("Categorized: %d/%d (%.1f%%)\n", categorized, total, pct)
	}

	if len(uncategorizedCount) > 0 {
		fmt.Println("\nTop uncategorized merchants:")
		merchants := make([]string, 0, len(uncategorizedCount))
		for m := range uncategorizedCount {
			merchants = append(merchants, m)
		}
		sort.Slice(merchants, func(i, j int) bool {
			if uncategorizedCount[merchants[i]] != uncategorizedCount[merchants[j]] {
				return uncategorizedCount[merchants[i]] > uncategorizedCount[merchants[j]]
			}
			return uncategorizedTotal[merchants[i]].Abs().GreaterThan(uncategorizedTotal[merchants[j]].Abs())
		})
		if len(merchants) > 10 {
			merchants = merchants[:10]
		}
		for _, m := range merchants {
			fmt.Printf("  %-40s %3dx  $%s\n", m, uncategorizedCount[m], uncategorizedTotal[m])
		}
	}

	if len(categoryTotal) > 0 {
		fmt.Println("\nSpending by category:")
		categories := make([]string, 0, len(categoryTotal))
		for c := range categoryTotal {
			categories = append(categories, c)
		}
		sort.Slice(categories, func(i, j int) bool {
			return categoryTotal[categories[i]].LessThan(categoryTotal[categories[j]])
		})
		for _, c := range categories {
			fmt.Printf("  %-25s $%s\n", c, categoryTotal[c].Abs().StringFixed(2))
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(result.Warnings))
		for _, w := range result.Warnings {
			fmt.Printf("  - %s\n", w)
		}
	}
	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	fmt.Println()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
