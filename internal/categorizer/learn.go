package categorizer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// LearnResult reports what the learn workflow did with one original/
// corrected CSV pair.
type LearnResult struct {
	Added   int
	Updated int
	Skipped int
	Rules   []Rule
}

// Learn compares a pipeline output CSV against a user-corrected copy,
// indexed by transaction ID, and folds category corrections into the
// learned rules. User rules are never shadowed: a correction whose merchant
// already matches a user rule is skipped. The corrected merchant string
// becomes the rule pattern verbatim.
func Learn(originalPath, correctedPath string, rules []Rule) (LearnResult, error) {
	original, _, err := readCSVIndexed(originalPath)
	if err != nil {
		return LearnResult{}, fmt.Errorf("failed to read original csv: %w", err)
	}
	corrected, correctedOrder, err := readCSVIndexed(correctedPath)
	if err != nil {
		return LearnResult{}, fmt.Errorf("failed to read corrected csv: %w", err)
	}

	result := LearnResult{}

	learnedByPattern := map[string]int{}
	for i, rule := range rules {
		if rule.Source == SourceLearned {
			learnedByPattern[rule.Pattern] = i
		}
	}

	// Walk corrections in CSV row order so new learned rules keep a stable
	// insertion order across runs.
	for _, txnID := range correctedOrder {
		corr := corrected[txnID]
		orig, ok := original[txnID]
		if !ok {
			continue
		}

		if orig["category"] == corr["category"] && orig["subcategory"] == corr["subcategory"] {
			continue
		}

		merchant := corr["merchant"]
		if merchant == "" {
			continue
		}

		if hasUserRuleMatch(merchant, rules) {
			result.Skipped++
			continue
		}

		if idx, ok := learnedByPattern[merchant]; ok {
			rules[idx].Category = corr["category"]
			rules[idx].Subcategory = corr["subcategory"]
			result.Updated++
		} else {
			rules = append(rules, Rule{
				Pattern:     merchant,
				Category:    corr["category"],
				Subcategory: corr["subcategory"],
				Source:      SourceLearned,
			})
			learnedByPattern[merchant] = len(rules) - 1
			result.Added++
		}
	}

	result.Rules = rules
	return result, nil
}

func hasUserRuleMatch(merchant string, rules []Rule) bool {
	merchantUpper := strings.ToUpper(merchant)
	for _, rule := range rules {
		if rule.Source == SourceUser && strings.Contains(merchantUpper, strings.ToUpper(rule.Pattern)) {
			return true
		}
	}
	return false
}

// readCSVIndexed reads a pipeline output CSV and indexes rows by their
// transaction_id column, also returning the IDs in file order.
func readCSVIndexed(path string) (map[string]map[string]string, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	idCol := -1
	for i, name := range header {
		if name == "transaction_id" {
			idCol = i
			break
		}
	}
	if idCol == -1 {
		return nil, nil, fmt.Errorf("%s: missing transaction_id column", path)
	}

	indexed := map[string]map[string]string{}
	var order []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, nil, fmt.Errorf("failed to read row: %w", err)
		}

		row := map[string]string{}
		for i, name := range header {
			if i < len(record) {
				row[name] = record[i]
			}
		}
		if _, seen := indexed[record[idCol]]; !seen {
			order = append(order, record[idCol])
		}
		indexed[record[idCol]] = row
	}

	return indexed, order, nil
}
